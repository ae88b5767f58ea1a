package marketdata

import (
	"sync"
	"sync/atomic"
)

// Publisher fans ticks out to subscribers. Sends never block: a
// subscriber that falls behind loses ticks rather than stalling the
// feed.
type Publisher struct {
	mu      sync.RWMutex
	subs    []chan Tick
	bufSize int
	dropped atomic.Uint64
}

// NewPublisher returns a publisher whose subscriber channels buffer
// bufSize ticks.
func NewPublisher(bufSize int) *Publisher {
	if bufSize < 1 {
		bufSize = 1
	}
	return &Publisher{bufSize: bufSize}
}

// Subscribe registers a new tick consumer.
func (p *Publisher) Subscribe() <-chan Tick {
	ch := make(chan Tick, p.bufSize)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Publish delivers the tick to every subscriber that has room.
func (p *Publisher) Publish(t Tick) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- t:
		default:
			p.dropped.Add(1)
		}
	}
}

// Dropped returns how many sends were discarded on full buffers.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close closes all subscriber channels. Publish must not be called
// after Close.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}
