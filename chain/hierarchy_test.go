package chain

import (
	"errors"
	"sync"
	"testing"
	"time"

	"options-mm-go/venue"
)

var testExpiry = time.Date(2026, 12, 25, 8, 0, 0, 0, time.UTC)

func TestNewOptionContractSymbol(t *testing.T) {
	oc, err := NewOptionContract("btc", 50000, testExpiry, Call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oc.Symbol != "BTC-20261225-50000-C" {
		t.Fatalf("unexpected symbol %s", oc.Symbol)
	}

	oc2, err := NewOptionContract("AAPL", 132.5, testExpiry, Put)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oc2.Symbol != "AAPL-20261225-132.5-P" {
		t.Fatalf("unexpected symbol %s", oc2.Symbol)
	}
}

func TestNewOptionContractValidation(t *testing.T) {
	cases := []struct {
		name       string
		underlying string
		strike     float64
		expiry     time.Time
		style      Style
	}{
		{"empty underlying", "", 100, testExpiry, Call},
		{"zero strike", "BTC", 0, testExpiry, Call},
		{"negative strike", "BTC", -5, testExpiry, Put},
		{"zero expiry", "BTC", 100, time.Time{}, Call},
		{"bad style", "BTC", 100, testExpiry, Style("X")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewOptionContract(tc.underlying, tc.strike, tc.expiry, tc.style); !errors.Is(err, ErrInvalidContract) {
				t.Fatalf("expected ErrInvalidContract got %v", err)
			}
		})
	}
}

func TestTimeToExpiryFloorsAtZero(t *testing.T) {
	oc, _ := NewOptionContract("BTC", 50000, testExpiry, Call)
	now := testExpiry.Add(-365 * 24 * time.Hour)
	ttm := oc.TimeToExpiry(now)
	if ttm < 0.999 || ttm > 1.001 {
		t.Fatalf("expected ~1y got %f", ttm)
	}
	if got := oc.TimeToExpiry(testExpiry.Add(time.Hour)); got != 0 {
		t.Fatalf("expired contract should report 0, got %f", got)
	}
	if !oc.IsExpired(testExpiry.Add(time.Second)) {
		t.Fatalf("expected expired")
	}
}

func TestGetOrCreateReturnsSameHandle(t *testing.T) {
	c := NewChain(nil)

	u1 := c.GetOrCreateUnderlying("BTC")
	u2 := c.GetOrCreateUnderlying("BTC")
	if u1 != u2 {
		t.Fatalf("underlying handles differ")
	}

	e1 := u1.GetOrCreateExpiration(testExpiry)
	e2 := u2.GetOrCreateExpiration(testExpiry)
	if e1 != e2 {
		t.Fatalf("expiration handles differ")
	}

	s1 := e1.GetOrCreateStrike(50000)
	s2 := e2.GetOrCreateStrike(50000)
	if s1 != s2 {
		t.Fatalf("strike handles differ")
	}

	// a structural mutation through one handle is visible via the other
	if _, err := s1.getOrCreateContract(Call, nil); err != nil {
		t.Fatalf("create contract: %v", err)
	}
	if got := len(s2.Contracts()); got != 1 {
		t.Fatalf("mutation not visible through second handle, %d contracts", got)
	}

	c1, err := c.Ensure("BTC", 50000, testExpiry, Call)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	c2, err := c.Ensure("BTC", 50000, testExpiry, Call)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("contract handles differ")
	}
}

func TestEnsureBuildsBooksAndIndex(t *testing.T) {
	c := NewChain(func(string) venue.Book { return venue.NewMemBook() })
	node, err := c.Ensure("ETH", 3000, testExpiry, Put)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if node.Book() == nil {
		t.Fatalf("expected book from factory")
	}

	got, err := c.Contract("ETH-20261225-3000-P")
	if err != nil {
		t.Fatalf("index lookup: %v", err)
	}
	if got != node {
		t.Fatalf("index returned different node")
	}
	if _, err := c.Contract("ETH-20261225-9999-P"); !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound got %v", err)
	}
}

func TestEnsureForRejectsMismatch(t *testing.T) {
	c := NewChain(nil)
	oc, _ := NewOptionContract("BTC", 50000, testExpiry, Call)
	if _, err := c.EnsureFor("ETH", oc); !errors.Is(err, ErrUnderlyingMismatch) {
		t.Fatalf("expected ErrUnderlyingMismatch got %v", err)
	}
	if _, err := c.EnsureFor("BTC", oc); err != nil {
		t.Fatalf("matched registration failed: %v", err)
	}
}

func TestContractsUnderLevels(t *testing.T) {
	c := NewChain(nil)
	later := testExpiry.AddDate(0, 1, 0)
	for _, strike := range []float64{45000, 50000, 55000} {
		for _, style := range []Style{Call, Put} {
			if _, err := c.Ensure("BTC", strike, testExpiry, style); err != nil {
				t.Fatalf("ensure: %v", err)
			}
		}
	}
	if _, err := c.Ensure("BTC", 50000, later, Call); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	all, err := c.ContractsUnder(UnderlyingLevel("BTC"))
	if err != nil {
		t.Fatalf("underlying level: %v", err)
	}
	if len(all) != 7 {
		t.Fatalf("expected 7 contracts got %d", len(all))
	}

	exp, err := c.ContractsUnder(ExpirationLevel("BTC", testExpiry))
	if err != nil {
		t.Fatalf("expiration level: %v", err)
	}
	if len(exp) != 6 {
		t.Fatalf("expected 6 contracts got %d", len(exp))
	}

	strike, err := c.ContractsUnder(StrikeLevel("BTC", testExpiry, 50000))
	if err != nil {
		t.Fatalf("strike level: %v", err)
	}
	if len(strike) != 2 {
		t.Fatalf("expected 2 contracts got %d", len(strike))
	}

	one, err := c.ContractsUnder(ContractLevel("BTC-20261225-45000-C"))
	if err != nil {
		t.Fatalf("contract level: %v", err)
	}
	if len(one) != 1 || one[0].Symbol != "BTC-20261225-45000-C" {
		t.Fatalf("unexpected contract-level result %+v", one)
	}
}

func TestATMStrike(t *testing.T) {
	c := NewChain(nil)
	for _, strike := range []float64{45000, 50000, 55000} {
		if _, err := c.Ensure("BTC", strike, testExpiry, Call); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	u, _ := c.Underlying("BTC")
	e, _ := u.Expiration(testExpiry)

	if atm, ok := e.ATMStrike(51000); !ok || atm != 50000 {
		t.Fatalf("expected atm 50000 got %f", atm)
	}
	if atm, ok := e.ATMStrike(53000); !ok || atm != 55000 {
		t.Fatalf("expected atm 55000 got %f", atm)
	}
}

func TestRemoveExpired(t *testing.T) {
	c := NewChain(nil)
	past := testExpiry
	future := testExpiry.AddDate(0, 2, 0)
	if _, err := c.Ensure("BTC", 50000, past, Call); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := c.Ensure("BTC", 50000, future, Call); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	removed := c.RemoveExpired(past.Add(24 * time.Hour))
	if len(removed) != 1 || removed[0] != "BTC-20261225-50000-C" {
		t.Fatalf("unexpected removals %v", removed)
	}
	if _, err := c.Contract("BTC-20261225-50000-C"); !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("removed contract still indexed")
	}
	u, _ := c.Underlying("BTC")
	if got := len(u.Expirations()); got != 1 {
		t.Fatalf("expected 1 surviving expiration got %d", got)
	}
}

func TestStats(t *testing.T) {
	c := NewChain(nil)
	later := testExpiry.AddDate(0, 1, 0)
	for _, strike := range []float64{45000, 50000} {
		for _, style := range []Style{Call, Put} {
			if _, err := c.Ensure("BTC", strike, testExpiry, style); err != nil {
				t.Fatalf("ensure: %v", err)
			}
		}
	}
	if _, err := c.Ensure("BTC", 50000, later, Call); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	st := c.Stats()["BTC"]
	if st.Expirations != 2 || st.Strikes != 3 || st.Contracts != 5 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if !st.Nearest.Equal(testExpiry) || !st.Farthest.Equal(later) {
		t.Fatalf("unexpected expiry bounds %+v", st)
	}
}

func TestConcurrentEnsureSingleNode(t *testing.T) {
	c := NewChain(func(string) venue.Book { return venue.NewMemBook() })
	const workers = 16

	var wg sync.WaitGroup
	nodes := make([]*Contract, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			node, err := c.Ensure("BTC", 50000, testExpiry, Call)
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			nodes[slot] = node
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if nodes[i] != nodes[0] {
			t.Fatalf("worker %d got a different node", i)
		}
	}
	all, err := c.ContractsUnder(UnderlyingLevel("BTC"))
	if err != nil {
		t.Fatalf("contracts under: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single contract, got %d", len(all))
	}
}
