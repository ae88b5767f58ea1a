package inventory

import (
	"math"
	"time"

	"options-mm-go/chain"
	"options-mm-go/pricing"
)

// AggregatedSnapshot is the rolled-up exposure of one hierarchy level.
// Greeks are position Greeks in underlying units (per-unit Greek ×
// signed quantity × contract multiplier), summed over every open
// position in the subtree, all taken from a single pricing snapshot.
type AggregatedSnapshot struct {
	Level string `json:"level"`

	Greeks      pricing.Greeks `json:"greeks"`
	NetQty      float64        `json:"net_qty"`
	GrossQty    float64        `json:"gross_qty"`
	NetNotional float64        `json:"net_notional"`

	DollarDelta float64 `json:"dollar_delta"`
	DollarGamma float64 `json:"dollar_gamma"`
	DollarTheta float64 `json:"dollar_theta"`
	DollarVega  float64 `json:"dollar_vega"`

	OpenPositions  int       `json:"open_positions"`
	MissingPricing int       `json:"missing_pricing"`
	AsOf           time.Time `json:"as_of"`
}

// Aggregator walks the chain hierarchy and sums ledger exposure against
// the pricing board. Reads may lag in-flight fills on sibling contracts
// by one cycle; every Greek inside one snapshot comes from the same
// pricing tick.
type Aggregator struct {
	chain  *chain.Chain
	ledger *Ledger
	board  *pricing.Board
}

// NewAggregator wires the three collaborators.
func NewAggregator(ch *chain.Chain, ledger *Ledger, board *pricing.Board) *Aggregator {
	return &Aggregator{chain: ch, ledger: ledger, board: board}
}

// AggregateGreeks sums exposure for the subtree addressed by key. The
// pricing snapshot is pinned once for the whole walk. Open positions
// whose contract has no theo in the current snapshot contribute
// quantity but zero Greeks and are counted in MissingPricing.
func (a *Aggregator) AggregateGreeks(key chain.LevelKey) (AggregatedSnapshot, error) {
	contracts, err := a.chain.ContractsUnder(key)
	if err != nil {
		return AggregatedSnapshot{}, err
	}
	snap := a.board.Current()

	agg := AggregatedSnapshot{Level: key.String(), AsOf: snap.AsOf}
	for _, c := range contracts {
		pos, ok := a.ledger.Position(c.Symbol)
		if !ok {
			continue
		}
		view := pos.View()
		if view.Quantity == 0 {
			continue
		}
		agg.OpenPositions++
		agg.NetQty += view.Quantity
		agg.GrossQty += math.Abs(view.Quantity)

		tv, priced := snap.Theo(c.Symbol)
		if !priced {
			agg.MissingPricing++
			continue
		}
		exposure := view.Quantity * view.Multiplier
		agg.Greeks = agg.Greeks.Add(tv.Greeks.Scale(exposure))
		agg.NetNotional += exposure * tv.Price

		spot, _ := snap.Spot(c.Underlying)
		agg.DollarDelta += tv.Greeks.DollarDelta(spot, view.Multiplier) * view.Quantity
		agg.DollarGamma += tv.Greeks.DollarGamma(spot, view.Multiplier) * view.Quantity
		agg.DollarTheta += tv.Greeks.Theta * exposure
		agg.DollarVega += tv.Greeks.Vega * exposure
	}
	return agg, nil
}

// CheckLimits compares the level's current aggregate against the
// configured caps and returns every exceeded one. Advisory only: the
// fill that moved the aggregate has already been applied.
func (a *Aggregator) CheckLimits(key chain.LevelKey, limits PositionLimits) ([]LimitBreach, error) {
	agg, err := a.AggregateGreeks(key)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var breaches []LimitBreach
	add := func(kind LimitKind, current, limit float64) {
		if limit > 0 && math.Abs(current) > limit {
			breaches = append(breaches, LimitBreach{
				Kind: kind, Level: agg.Level, Current: current, Limit: limit, At: now,
			})
		}
	}
	add(LimitQuantity, agg.GrossQty, limits.quantityCap(key.Level()))
	add(LimitDollarDelta, agg.DollarDelta, limits.MaxDollarDelta)
	add(LimitDollarGamma, agg.DollarGamma, limits.MaxDollarGamma)
	add(LimitDollarTheta, agg.DollarTheta, limits.MaxDollarTheta)
	add(LimitDollarVega, agg.DollarVega, limits.MaxDollarVega)
	return breaches, nil
}
