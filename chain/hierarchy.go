package chain

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"options-mm-go/venue"
)

// BookFactory builds the order book collaborator for a newly listed
// contract. Called at most once per contract, under the strike lock, so
// it must not block.
type BookFactory func(symbol string) venue.Book

// Contract is a leaf node: the immutable identity plus the contract's
// order book handle.
type Contract struct {
	OptionContract
	book venue.Book
}

// Book returns the contract's order book; nil when the chain was built
// without a book factory.
func (c *Contract) Book() venue.Book { return c.book }

// Strike groups the call and put listed at one price. The parent keys
// are carried as values for key-based upward lookup.
type Strike struct {
	Underlying string
	Expiry     time.Time
	Price      float64

	mu   sync.RWMutex
	call *Contract
	put  *Contract
}

// Expiration holds the strikes listed for one expiry date.
type Expiration struct {
	Underlying string
	Expiry     time.Time

	mu      sync.RWMutex
	strikes map[int64]*Strike
}

// Underlying is the root of one product's subtree.
type Underlying struct {
	Symbol string

	mu          sync.RWMutex
	expirations map[int64]*Expiration
}

// Chain is the forest of all quoted underlyings plus a flat symbol
// index for direct contract lookup.
type Chain struct {
	newBook BookFactory

	mu          sync.RWMutex
	underlyings map[string]*Underlying

	idxMu sync.RWMutex
	index map[string]*Contract
}

// NewChain creates an empty chain. factory may be nil when contracts
// need no order book (pure bookkeeping, tests).
func NewChain(factory BookFactory) *Chain {
	return &Chain{
		newBook:     factory,
		underlyings: make(map[string]*Underlying),
		index:       make(map[string]*Contract),
	}
}

// GetOrCreateUnderlying is idempotent: one node per symbol, ever.
func (c *Chain) GetOrCreateUnderlying(symbol string) *Underlying {
	c.mu.RLock()
	u := c.underlyings[symbol]
	c.mu.RUnlock()
	if u != nil {
		return u
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if u = c.underlyings[symbol]; u != nil {
		return u
	}
	u = &Underlying{Symbol: symbol, expirations: make(map[int64]*Expiration)}
	c.underlyings[symbol] = u
	return u
}

// Underlying looks up an existing subtree root.
func (c *Chain) Underlying(symbol string) (*Underlying, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.underlyings[symbol]
	return u, ok
}

// Underlyings returns the listed underlying symbols, sorted.
func (c *Chain) Underlyings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]string, 0, len(c.underlyings))
	for sym := range c.underlyings {
		res = append(res, sym)
	}
	sort.Strings(res)
	return res
}

// GetOrCreateExpiration is idempotent per UTC expiry date.
func (u *Underlying) GetOrCreateExpiration(expiry time.Time) *Expiration {
	key := dayKey(expiry)
	u.mu.RLock()
	e := u.expirations[key]
	u.mu.RUnlock()
	if e != nil {
		return e
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if e = u.expirations[key]; e != nil {
		return e
	}
	e = &Expiration{Underlying: u.Symbol, Expiry: expiry.UTC(), strikes: make(map[int64]*Strike)}
	u.expirations[key] = e
	return e
}

// Expiration looks up an existing expiry node by date.
func (u *Underlying) Expiration(expiry time.Time) (*Expiration, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	e, ok := u.expirations[dayKey(expiry)]
	return e, ok
}

// Expirations returns the expiry dates, ascending.
func (u *Underlying) Expirations() []time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	res := make([]time.Time, 0, len(u.expirations))
	for _, e := range u.expirations {
		res = append(res, e.Expiry)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Before(res[j]) })
	return res
}

// NearestExpiry returns the earliest expiry at or after now.
func (u *Underlying) NearestExpiry(now time.Time) (time.Time, bool) {
	var best time.Time
	for _, exp := range u.Expirations() {
		if exp.Before(now) {
			continue
		}
		if best.IsZero() || exp.Before(best) {
			best = exp
		}
	}
	return best, !best.IsZero()
}

// FarthestExpiry returns the latest listed expiry.
func (u *Underlying) FarthestExpiry() (time.Time, bool) {
	exps := u.Expirations()
	if len(exps) == 0 {
		return time.Time{}, false
	}
	return exps[len(exps)-1], true
}

// GetOrCreateStrike is idempotent on the 1e-4 strike grid.
func (e *Expiration) GetOrCreateStrike(price float64) *Strike {
	key := strikeKey(price)
	e.mu.RLock()
	s := e.strikes[key]
	e.mu.RUnlock()
	if s != nil {
		return s
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s = e.strikes[key]; s != nil {
		return s
	}
	s = &Strike{Underlying: e.Underlying, Expiry: e.Expiry, Price: price}
	e.strikes[key] = s
	return s
}

// Strike looks up an existing strike node.
func (e *Expiration) Strike(price float64) (*Strike, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.strikes[strikeKey(price)]
	return s, ok
}

// Strikes returns the listed strike prices, ascending.
func (e *Expiration) Strikes() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	res := make([]float64, 0, len(e.strikes))
	for _, s := range e.strikes {
		res = append(res, s.Price)
	}
	sort.Float64s(res)
	return res
}

// ATMStrike returns the listed strike nearest to spot.
func (e *Expiration) ATMStrike(spot float64) (float64, bool) {
	strikes := e.Strikes()
	if len(strikes) == 0 {
		return 0, false
	}
	best := strikes[0]
	for _, k := range strikes[1:] {
		if math.Abs(k-spot) < math.Abs(best-spot) {
			best = k
		}
	}
	return best, true
}

// getOrCreateContract is the single creation point for a leg; both
// racing callers receive the same node.
func (s *Strike) getOrCreateContract(style Style, factory BookFactory) (*Contract, error) {
	s.mu.RLock()
	if c := s.leg(style); c != nil {
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	oc, err := NewOptionContract(s.Underlying, s.Price, s.Expiry, style)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.leg(style); c != nil {
		return c, nil
	}
	c := &Contract{OptionContract: oc}
	if factory != nil {
		c.book = factory(oc.Symbol)
	}
	switch style {
	case Call:
		s.call = c
	case Put:
		s.put = c
	}
	return c, nil
}

// caller must hold s.mu
func (s *Strike) leg(style Style) *Contract {
	if style == Call {
		return s.call
	}
	return s.put
}

// Contracts returns the listed legs at this strike: call first.
func (s *Strike) Contracts() []*Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*Contract, 0, 2)
	if s.call != nil {
		res = append(res, s.call)
	}
	if s.put != nil {
		res = append(res, s.put)
	}
	return res
}

// Ensure walks every level, creating missing nodes, and returns the
// contract node. Repeated calls with the same identity return the same
// handle.
func (c *Chain) Ensure(underlying string, strike float64, expiry time.Time, style Style) (*Contract, error) {
	oc, err := NewOptionContract(underlying, strike, expiry, style)
	if err != nil {
		return nil, err
	}
	u := c.GetOrCreateUnderlying(oc.Underlying)
	return c.ensureUnder(u, oc)
}

// EnsureContract registers a pre-built identity under its underlying.
func (c *Chain) EnsureContract(oc OptionContract) (*Contract, error) {
	if oc.Symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol", ErrInvalidContract)
	}
	u := c.GetOrCreateUnderlying(oc.Underlying)
	return c.ensureUnder(u, oc)
}

// EnsureFor registers a contract under an explicitly named underlying,
// failing when the two identities disagree. Config-driven listings go
// through here so a misfiled contract surfaces as an error instead of a
// silent new subtree.
func (c *Chain) EnsureFor(underlying string, oc OptionContract) (*Contract, error) {
	if oc.Symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol", ErrInvalidContract)
	}
	u := c.GetOrCreateUnderlying(underlying)
	return c.ensureUnder(u, oc)
}

func (c *Chain) ensureUnder(u *Underlying, oc OptionContract) (*Contract, error) {
	if oc.Underlying != u.Symbol {
		return nil, fmt.Errorf("%w: %s registered under %s", ErrUnderlyingMismatch, oc.Underlying, u.Symbol)
	}
	e := u.GetOrCreateExpiration(oc.Expiry)
	s := e.GetOrCreateStrike(oc.Strike)
	node, err := s.getOrCreateContract(oc.Style, c.newBook)
	if err != nil {
		return nil, err
	}
	c.idxMu.Lock()
	c.index[node.Symbol] = node
	c.idxMu.Unlock()
	return node, nil
}

// Contract resolves a canonical symbol via the flat index.
func (c *Chain) Contract(symbol string) (*Contract, error) {
	c.idxMu.RLock()
	defer c.idxMu.RUnlock()
	node, ok := c.index[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, symbol)
	}
	return node, nil
}

// ContractsUnder enumerates every contract in the subtree addressed by
// key, sorted by symbol for deterministic walks.
func (c *Chain) ContractsUnder(key LevelKey) ([]*Contract, error) {
	var out []*Contract
	switch key.Level() {
	case LevelContract:
		node, err := c.Contract(key.Symbol())
		if err != nil {
			return nil, err
		}
		return []*Contract{node}, nil
	case LevelUnderlying:
		u, ok := c.Underlying(key.Underlying())
		if !ok {
			return nil, fmt.Errorf("%w: underlying %s", ErrContractNotFound, key.Underlying())
		}
		for _, exp := range u.Expirations() {
			e, ok := u.Expiration(exp)
			if !ok {
				continue
			}
			out = append(out, contractsOfExpiration(e)...)
		}
	case LevelExpiration:
		e, err := c.expiration(key)
		if err != nil {
			return nil, err
		}
		out = contractsOfExpiration(e)
	case LevelStrike:
		e, err := c.expiration(key)
		if err != nil {
			return nil, err
		}
		s, ok := e.Strike(key.Strike())
		if !ok {
			return nil, fmt.Errorf("%w: strike %s", ErrContractNotFound, key.String())
		}
		out = s.Contracts()
	default:
		return nil, fmt.Errorf("%w: bad level key", ErrContractNotFound)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (c *Chain) expiration(key LevelKey) (*Expiration, error) {
	u, ok := c.Underlying(key.Underlying())
	if !ok {
		return nil, fmt.Errorf("%w: underlying %s", ErrContractNotFound, key.Underlying())
	}
	e, ok := u.Expiration(key.Expiry())
	if !ok {
		return nil, fmt.Errorf("%w: expiration %s", ErrContractNotFound, key.String())
	}
	return e, nil
}

func contractsOfExpiration(e *Expiration) []*Contract {
	var out []*Contract
	for _, price := range e.Strikes() {
		if s, ok := e.Strike(price); ok {
			out = append(out, s.Contracts()...)
		}
	}
	return out
}

// RemoveExpired prunes every expiration strictly before now and returns
// the removed contract symbols.
func (c *Chain) RemoveExpired(now time.Time) []string {
	var removed []string
	c.mu.RLock()
	subtrees := make([]*Underlying, 0, len(c.underlyings))
	for _, u := range c.underlyings {
		subtrees = append(subtrees, u)
	}
	c.mu.RUnlock()

	for _, u := range subtrees {
		u.mu.Lock()
		for key, e := range u.expirations {
			if !e.Expiry.Before(now) {
				continue
			}
			for _, node := range contractsOfExpiration(e) {
				removed = append(removed, node.Symbol)
			}
			delete(u.expirations, key)
		}
		u.mu.Unlock()
	}

	if len(removed) > 0 {
		c.idxMu.Lock()
		for _, sym := range removed {
			delete(c.index, sym)
		}
		c.idxMu.Unlock()
	}
	sort.Strings(removed)
	return removed
}
