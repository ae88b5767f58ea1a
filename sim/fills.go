package sim

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"options-mm-go/pricing"
	"options-mm-go/venue"
)

// BookSet hands out in-memory books and remembers every one it created,
// so the flow model can walk all resting orders. Its Factory method is
// the chain.BookFactory the app is built with.
type BookSet struct {
	mu    sync.Mutex
	books map[string]*venue.MemBook
}

// NewBookSet returns an empty set.
func NewBookSet() *BookSet {
	return &BookSet{books: make(map[string]*venue.MemBook)}
}

// Factory creates (or returns) the book for a symbol.
func (s *BookSet) Factory(symbol string) venue.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[symbol]; ok {
		return b
	}
	b := venue.NewMemBook()
	s.books[symbol] = b
	return b
}

// Book looks up one symbol's book.
func (s *BookSet) Book(symbol string) (*venue.MemBook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[symbol]
	return b, ok
}

// Symbols returns the booked symbols in sorted order.
func (s *BookSet) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.books))
	for sym := range s.books {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// FillConfig tunes the counterparty flow model.
type FillConfig struct {
	// Intensity is the per-order fill probability per step for a quote
	// resting exactly at theo.
	Intensity float64 `yaml:"intensity"`
	// DecayBps is the e-folding distance: a quote DecayBps away from
	// theo fills e times less often.
	DecayBps float64 `yaml:"decay_bps"`
	// FeeBps is the taker fee charged on fill notional.
	FeeBps float64 `yaml:"fee_bps"`
	// Seed fixes the random source; zero seeds from the wall clock.
	Seed int64 `yaml:"seed"`
}

// DefaultFillConfig trades often enough for short runs to see flow.
func DefaultFillConfig() FillConfig {
	return FillConfig{Intensity: 0.4, DecayBps: 25, FeeBps: 2}
}

// FillModel is Poisson-style counterparty flow: each step, every
// resting order fills with a probability that decays exponentially in
// its distance from the current theo. Filled orders are removed from
// their book and reported to the sink in full. Not safe for concurrent
// use.
type FillModel struct {
	cfg   FillConfig
	rng   *rand.Rand
	board *pricing.Board
	sink  func(venue.Fill)

	fills    int
	notional float64
}

// NewFillModel wires the model to the board it marks distance against
// and the sink that receives executions.
func NewFillModel(cfg FillConfig, board *pricing.Board, sink func(venue.Fill)) *FillModel {
	def := DefaultFillConfig()
	if cfg.Intensity <= 0 {
		cfg.Intensity = def.Intensity
	}
	if cfg.DecayBps <= 0 {
		cfg.DecayBps = def.DecayBps
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &FillModel{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		board: board,
		sink:  sink,
	}
}

// Step draws arrivals against every resting order in the set and
// returns the number of fills emitted. Symbols without a theo on the
// board see no flow.
func (m *FillModel) Step(books *BookSet, at time.Time) int {
	snap := m.board.Current()
	emitted := 0
	for _, sym := range books.Symbols() {
		book, ok := books.Book(sym)
		if !ok {
			continue
		}
		theo, ok := snap.Theo(sym)
		if !ok || theo.Price <= 0 {
			continue
		}
		for _, o := range book.Orders() {
			if m.rng.Float64() >= m.prob(o, theo.Price) {
				continue
			}
			if err := book.CancelOrder(o.ID); err != nil {
				continue
			}
			fill := venue.Fill{
				Symbol:   sym,
				OrderID:  o.ID,
				Side:     o.Side,
				Quantity: o.Size,
				Price:    o.Price,
				Fee:      o.Price * o.Size * m.cfg.FeeBps / 10000,
				At:       at,
			}
			m.fills++
			m.notional += o.Price * o.Size
			if m.sink != nil {
				m.sink(fill)
			}
			emitted++
		}
	}
	return emitted
}

// prob maps an order's distance from theo onto a fill probability.
// Quotes at or through theo trade at the intensity cap.
func (m *FillModel) prob(o venue.Order, theo float64) float64 {
	var distBps float64
	if o.Side == venue.Buy {
		distBps = (theo - o.Price) / theo * 10000
	} else {
		distBps = (o.Price - theo) / theo * 10000
	}
	if distBps < 0 {
		distBps = 0
	}
	p := m.cfg.Intensity * math.Exp(-distBps/m.cfg.DecayBps)
	if p > 1 {
		p = 1
	}
	return p
}

// Fills reports the total number of executions emitted so far.
func (m *FillModel) Fills() int { return m.fills }

// Notional reports the gross traded notional so far.
func (m *FillModel) Notional() float64 { return m.notional }
