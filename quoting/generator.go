package quoting

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"options-mm-go/risk"
	"options-mm-go/venue"
)

// Action describes what Refresh did with a freshly built quote.
type Action string

const (
	// ActionSubmitted means old orders were cancelled and new ones rest.
	ActionSubmitted Action = "submitted"
	// ActionUnchanged means the new quote was within tolerance of the
	// resting one and nothing was sent.
	ActionUnchanged Action = "unchanged"
	// ActionThrottled means the rate limiter refused the submission;
	// the resting quote stays up.
	ActionThrottled Action = "throttled"
	// ActionBlocked means a pre-order guard refused the submission.
	ActionBlocked Action = "blocked"
	// ActionPulled means resting orders were cancelled with no
	// replacement.
	ActionPulled Action = "pulled"
)

// Result reports the outcome of one Refresh call.
type Result struct {
	Quote      Quote
	Action     Action
	BidOrderID string
	AskOrderID string
}

// GeneratorConfig tunes the churn behavior around the spread model.
type GeneratorConfig struct {
	// PriceTolerance is the fractional mid move below which a resting
	// quote is left alone.
	PriceTolerance float64 `yaml:"price_tolerance" json:"price_tolerance"`
	// SizeTolerance is the absolute size change below which a resting
	// quote is left alone.
	SizeTolerance float64 `yaml:"size_tolerance" json:"size_tolerance"`
	// MaxQuotesPerSec caps quote submissions across all contracts.
	// Zero or negative disables the cap.
	MaxQuotesPerSec float64 `yaml:"max_quotes_per_sec" json:"max_quotes_per_sec"`
	// Burst is the submission bucket depth when the cap is active.
	Burst int `yaml:"burst" json:"burst"`
}

// DefaultGeneratorConfig returns the standard churn settings.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		PriceTolerance:  0.001,
		SizeTolerance:   1,
		MaxQuotesPerSec: 50,
		Burst:           10,
	}
}

// Generator owns quote placement for a set of contracts: it builds the
// model quote, decides whether it differs enough from what is resting,
// and performs the cancel and resubmit against the venue book.
type Generator struct {
	calc        *Calculator
	cfg         GeneratorConfig
	active      *ActiveQuotes
	guard       risk.Guard
	limiter     *rate.Limiter
	constraints func(symbol string) (venue.Constraints, bool)
	clock       risk.Clock
}

// NewGenerator wires a generator around the given calculator.
func NewGenerator(calc *Calculator, cfg GeneratorConfig) *Generator {
	g := &Generator{
		calc:   calc,
		cfg:    cfg,
		active: NewActiveQuotes(),
		clock:  risk.NowUTC,
	}
	if cfg.MaxQuotesPerSec > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.MaxQuotesPerSec), burst)
	}
	return g
}

// SetGuard installs a pre-order guard consulted before every
// submission.
func (g *Generator) SetGuard(guard risk.Guard) { g.guard = guard }

// SetConstraints installs the per-symbol venue constraints lookup used
// to snap prices and sizes.
func (g *Generator) SetConstraints(fn func(symbol string) (venue.Constraints, bool)) {
	g.constraints = fn
}

// SetClock overrides the clock, for tests.
func (g *Generator) SetClock(c risk.Clock) { g.clock = c }

// Active exposes the resting-quote table.
func (g *Generator) Active() *ActiveQuotes { return g.active }

// Refresh builds a quote for symbol from the model inputs and
// reconciles it against whatever is resting on book. It returns the
// built quote together with what was done about it.
func (g *Generator) Refresh(book venue.Book, symbol string, in Inputs) (Result, error) {
	quote, err := g.calc.BuildQuote(symbol, in, g.clock.Now())
	if err != nil {
		return Result{}, err
	}
	g.snap(symbol, &quote)
	if err := quote.Check(); err != nil {
		return Result{Quote: quote}, err
	}

	if quote.Empty() {
		if err := g.Pull(book, symbol); err != nil {
			return Result{Quote: quote, Action: ActionPulled}, err
		}
		return Result{Quote: quote, Action: ActionPulled}, nil
	}

	if prev, ok := g.active.Get(symbol); ok {
		if !NeedsRefresh(prev.Last, quote, g.cfg.PriceTolerance, g.cfg.SizeTolerance) {
			return Result{Quote: quote, Action: ActionUnchanged, BidOrderID: prev.BidOrderID, AskOrderID: prev.AskOrderID}, nil
		}
	}

	if g.guard != nil {
		if err := g.preCheck(symbol, quote); err != nil {
			return Result{Quote: quote, Action: ActionBlocked}, err
		}
	}

	if g.limiter != nil && !g.limiter.Allow() {
		return Result{Quote: quote, Action: ActionThrottled}, nil
	}

	if err := g.cancelResting(book, symbol); err != nil {
		return Result{Quote: quote}, err
	}

	entry := Entry{Symbol: symbol, Last: quote, SubmittedAt: quote.AsOf}
	if quote.BidSize > 0 {
		id := uuid.NewString()
		if err := book.AddLimitOrder(id, venue.Buy, quote.BidPrice, quote.BidSize); err != nil {
			return Result{Quote: quote}, fmt.Errorf("submit bid %s: %w", symbol, err)
		}
		entry.BidOrderID = id
	}
	if quote.AskSize > 0 {
		id := uuid.NewString()
		if err := book.AddLimitOrder(id, venue.Sell, quote.AskPrice, quote.AskSize); err != nil {
			// Leave the bid resting; the next cycle reconciles it.
			if entry.BidOrderID != "" {
				g.active.Set(entry)
			}
			return Result{Quote: quote, BidOrderID: entry.BidOrderID}, fmt.Errorf("submit ask %s: %w", symbol, err)
		}
		entry.AskOrderID = id
	}
	g.active.Set(entry)

	return Result{Quote: quote, Action: ActionSubmitted, BidOrderID: entry.BidOrderID, AskOrderID: entry.AskOrderID}, nil
}

// Pull cancels any resting orders for symbol and forgets the entry.
func (g *Generator) Pull(book venue.Book, symbol string) error {
	err := g.cancelResting(book, symbol)
	g.active.Remove(symbol)
	return err
}

// PullAll cancels every resting quote, resolving books through bookFor.
// It keeps going on errors and returns the first one.
func (g *Generator) PullAll(bookFor func(symbol string) (venue.Book, bool)) error {
	var first error
	for _, symbol := range g.active.Symbols() {
		book, ok := bookFor(symbol)
		if !ok {
			g.active.Remove(symbol)
			continue
		}
		if err := g.Pull(book, symbol); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OnFill marks the filled order as no longer resting so it is not
// cancelled on the next refresh.
func (g *Generator) OnFill(symbol, orderID string) {
	g.active.ClearFill(symbol, orderID)
}

func (g *Generator) preCheck(symbol string, q Quote) error {
	if q.BidSize > 0 {
		if err := g.guard.PreOrder(symbol, q.BidSize, q.BidPrice); err != nil {
			return err
		}
	}
	if q.AskSize > 0 {
		if err := g.guard.PreOrder(symbol, -q.AskSize, q.AskPrice); err != nil {
			return err
		}
	}
	return nil
}

// snap rounds the quote onto the venue grid. Sizes that fall below the
// venue minimum are zeroed, and a bid and ask that collide after
// rounding are pushed one tick apart.
func (g *Generator) snap(symbol string, q *Quote) {
	if g.constraints == nil {
		return
	}
	c, ok := g.constraints(symbol)
	if !ok {
		return
	}
	q.BidPrice = c.SnapPrice(q.BidPrice)
	q.AskPrice = c.SnapPrice(q.AskPrice)
	q.BidSize = c.SnapSize(q.BidSize)
	q.AskSize = c.SnapSize(q.AskSize)
	if c.MinSize > 0 {
		if q.BidSize < c.MinSize {
			q.BidSize = 0
		}
		if q.AskSize < c.MinSize {
			q.AskSize = 0
		}
	}
	if c.TickSize > 0 && q.BidSize > 0 && q.AskSize > 0 && q.AskPrice <= q.BidPrice {
		q.AskPrice = q.BidPrice + c.TickSize
	}
}

func (g *Generator) cancelResting(book venue.Book, symbol string) error {
	entry, ok := g.active.Get(symbol)
	if !ok {
		return nil
	}
	for _, id := range []string{entry.BidOrderID, entry.AskOrderID} {
		if id == "" {
			continue
		}
		if err := book.CancelOrder(id); err != nil && !errors.Is(err, venue.ErrOrderNotFound) {
			return fmt.Errorf("cancel %s on %s: %w", id, symbol, err)
		}
	}
	return nil
}
