package pricing

import (
	"sync/atomic"
	"time"
)

// Snapshot is one pricing tick: theoretical values per contract symbol
// plus the underlying spots and vols the tick was computed from. A
// published Snapshot must never be mutated; the next tick builds a new
// one and replaces the whole thing.
type Snapshot struct {
	AsOf  time.Time
	Spots map[string]float64
	Vols  map[string]float64
	Theos map[string]TheoreticalValue
}

// NewSnapshot allocates an empty snapshot for the given tick time.
func NewSnapshot(asOf time.Time) *Snapshot {
	return &Snapshot{
		AsOf:  asOf,
		Spots: make(map[string]float64),
		Vols:  make(map[string]float64),
		Theos: make(map[string]TheoreticalValue),
	}
}

// Clone copies the snapshot into a fresh one stamped asOf, so a
// publisher can carry forward prices it is not recomputing this tick.
func (s *Snapshot) Clone(asOf time.Time) *Snapshot {
	next := NewSnapshot(asOf)
	for k, v := range s.Spots {
		next.Spots[k] = v
	}
	for k, v := range s.Vols {
		next.Vols[k] = v
	}
	for k, v := range s.Theos {
		next.Theos[k] = v
	}
	return next
}

// Theo returns the theoretical value for a contract symbol.
func (s *Snapshot) Theo(symbol string) (TheoreticalValue, bool) {
	tv, ok := s.Theos[symbol]
	return tv, ok
}

// Spot returns the underlying spot the snapshot was priced from.
func (s *Snapshot) Spot(underlying string) (float64, bool) {
	px, ok := s.Spots[underlying]
	return px, ok
}

// Vol returns the underlying volatility the snapshot was priced from.
func (s *Snapshot) Vol(underlying string) (float64, bool) {
	v, ok := s.Vols[underlying]
	return v, ok
}

// Board publishes pricing snapshots to concurrent readers. Readers load
// the pointer once per evaluation cycle so every Greek they touch comes
// from the same tick.
type Board struct {
	snap atomic.Pointer[Snapshot]
}

// NewBoard starts with an empty snapshot so Current never returns nil.
func NewBoard() *Board {
	b := &Board{}
	b.snap.Store(NewSnapshot(time.Time{}))
	return b
}

// Publish replaces the current snapshot wholesale.
func (b *Board) Publish(s *Snapshot) {
	if s == nil {
		return
	}
	b.snap.Store(s)
}

// Current returns the latest published snapshot.
func (b *Board) Current() *Snapshot {
	return b.snap.Load()
}
