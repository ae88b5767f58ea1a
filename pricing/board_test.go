package pricing

import (
	"sync"
	"testing"
	"time"
)

func TestBoardPublishAndCurrent(t *testing.T) {
	b := NewBoard()
	if b.Current() == nil {
		t.Fatalf("fresh board must not return nil snapshot")
	}

	s := NewSnapshot(time.Now())
	s.Spots["BTC"] = 50000
	s.Theos["BTC-20261225-50000-C"] = TheoreticalValue{Price: 2500, Greeks: Greeks{Delta: 0.55}}
	b.Publish(s)

	got := b.Current()
	if spot, ok := got.Spot("BTC"); !ok || spot != 50000 {
		t.Fatalf("expected spot 50000 got %f ok=%v", spot, ok)
	}
	if tv, ok := got.Theo("BTC-20261225-50000-C"); !ok || tv.Greeks.Delta != 0.55 {
		t.Fatalf("unexpected theo %+v ok=%v", tv, ok)
	}
}

// Readers pin one snapshot per cycle; a concurrent publish must never
// expose a half-built map.
func TestBoardNoTearingUnderConcurrentPublish(t *testing.T) {
	b := NewBoard()
	const symbol = "ETH-20261225-3000-C"

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s := NewSnapshot(time.Now())
			s.Spots["ETH"] = float64(3000 + i)
			s.Theos[symbol] = TheoreticalValue{
				Price:  float64(100 + i),
				Greeks: Greeks{Delta: 0.5, Vega: float64(i)},
			}
			b.Publish(s)
		}
		close(done)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			snap := b.Current()
			tv, ok := snap.Theo(symbol)
			if !ok {
				continue // initial empty snapshot
			}
			spot, _ := snap.Spot("ETH")
			// spot and vega advance in lockstep inside one snapshot
			if spot-3000 != tv.Greeks.Vega {
				t.Errorf("torn snapshot: spot %f vega %f", spot, tv.Greeks.Vega)
				return
			}
		}
	}()

	wg.Wait()
}
