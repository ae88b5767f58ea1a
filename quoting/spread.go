package quoting

import (
	"math"
	"time"
)

// Calculator evaluates the Avellaneda-Stoikov spread model for one set
// of parameters. It is stateless beyond the parameters and safe for
// concurrent use.
type Calculator struct {
	params Params
}

// NewCalculator validates the parameters and returns a calculator.
func NewCalculator(params Params) (*Calculator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{params: params}, nil
}

// Params returns the parameters the calculator was built with.
func (c *Calculator) Params() Params { return c.params }

// ReservationPrice shifts the mid against current inventory:
//
//	r = mid - q * gamma * sigma^2 * T
//
// Long inventory pulls the reservation below mid so the quotes lean
// toward selling, and symmetrically for short.
func (c *Calculator) ReservationPrice(in Inputs) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	return in.Mid - in.Inventory*c.params.Gamma*in.Vol*in.Vol*in.TimeToExpiry, nil
}

// OptimalSpread returns the model spread in price units,
//
//	delta = gamma * sigma^2 * T + (2/gamma) * ln(1 + gamma/k)
//
// clamped to the configured [min, max] band.
func (c *Calculator) OptimalSpread(in Inputs) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	g := c.params.Gamma
	spread := g*in.Vol*in.Vol*in.TimeToExpiry + (2/g)*math.Log(1+g/c.params.K)
	if spread < c.params.MinSpread {
		spread = c.params.MinSpread
	}
	if spread > c.params.MaxSpread {
		spread = c.params.MaxSpread
	}
	return spread, nil
}

// InventorySkew returns a signed price adjustment applied to both
// sides of the quote. It is zero when flat, grows with |inventory| and
// carries the opposite sign: long inventory pushes both prices down to
// favor selling. The tanh keeps the shift bounded at
// skew_factor * mid once inventory saturates the limit.
func (c *Calculator) InventorySkew(mid, inventory float64) float64 {
	if c.params.SkewFactor == 0 || inventory == 0 {
		return 0
	}
	return -mid * c.params.SkewFactor * math.Tanh(inventory/c.params.MaxInventory)
}

// sizeScales maps the inventory ratio to per-side size multipliers.
// The side that would grow the position shrinks linearly and reaches
// zero at the inventory limit; the reducing side stays at full size.
func (c *Calculator) sizeScales(inventory float64) (bidScale, askScale float64) {
	ratio := inventory / c.params.MaxInventory
	if ratio > 1 {
		ratio = 1
	}
	if ratio < -1 {
		ratio = -1
	}
	bidScale, askScale = 1, 1
	if ratio > 0 {
		bidScale = 1 - ratio
	}
	if ratio < 0 {
		askScale = 1 + ratio
	}
	return bidScale, askScale
}

// BuildQuote runs the full model: reservation price, clamped spread,
// inventory skew and size scaling. Sizes below the configured minimum
// are dropped to zero, which makes the quote one-sided; a quote with
// both sizes at zero is still returned and the caller decides whether
// to pull outstanding orders.
func (c *Calculator) BuildQuote(symbol string, in Inputs, asOf time.Time) (Quote, error) {
	reservation, err := c.ReservationPrice(in)
	if err != nil {
		return Quote{}, err
	}
	spread, err := c.OptimalSpread(in)
	if err != nil {
		return Quote{}, err
	}
	skew := c.InventorySkew(in.Mid, in.Inventory)

	half := spread / 2
	bid := reservation - half + skew
	ask := reservation + half + skew
	if bid < 0 {
		bid = 0
	}

	base := c.params.BaseSize()
	bidScale, askScale := c.sizeScales(in.Inventory)
	bidSize := base * bidScale
	askSize := base * askScale
	if bidSize < c.params.MinSize {
		bidSize = 0
	}
	if askSize < c.params.MinSize {
		askSize = 0
	}

	return Quote{
		Symbol:      symbol,
		BidPrice:    bid,
		BidSize:     bidSize,
		AskPrice:    ask,
		AskSize:     askSize,
		Mid:         in.Mid,
		Reservation: reservation,
		Spread:      spread,
		Skew:        skew,
		Inventory:   in.Inventory,
		AsOf:        asOf,
	}, nil
}
