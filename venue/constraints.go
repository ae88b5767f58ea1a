package venue

import (
	"fmt"
	"math"
)

// Constraints describes a contract's price/size grid and notional floor.
type Constraints struct {
	TickSize    float64 `yaml:"tick_size" json:"tick_size"`
	LotSize     float64 `yaml:"lot_size" json:"lot_size"`
	MinSize     float64 `yaml:"min_size" json:"min_size"`
	MaxSize     float64 `yaml:"max_size" json:"max_size"`
	MinNotional float64 `yaml:"min_notional" json:"min_notional"`
}

// SnapPrice rounds a price to the nearest tick.
func (c Constraints) SnapPrice(price float64) float64 {
	if c.TickSize <= 0 {
		return price
	}
	return math.Round(price/c.TickSize) * c.TickSize
}

// SnapSize rounds a size down to the lot grid. Sizes never round up so
// a snapped order cannot exceed what the caller intended.
func (c Constraints) SnapSize(size float64) float64 {
	if c.LotSize <= 0 {
		return size
	}
	return math.Floor(size/c.LotSize+1e-9) * c.LotSize
}

// Validate checks alignment, size bounds, and minimum notional.
func (c Constraints) Validate(price, size float64) error {
	if c.TickSize > 0 && !isMultiple(price, c.TickSize) {
		return fmt.Errorf("price %.8f not aligned to tick %.8f", price, c.TickSize)
	}
	if c.LotSize > 0 && !isMultiple(size, c.LotSize) {
		return fmt.Errorf("size %.8f not aligned to lot %.8f", size, c.LotSize)
	}
	if c.MinSize > 0 && size < c.MinSize {
		return fmt.Errorf("size %.8f < min size %.8f", size, c.MinSize)
	}
	if c.MaxSize > 0 && size > c.MaxSize {
		return fmt.Errorf("size %.8f > max size %.8f", size, c.MaxSize)
	}
	if c.MinNotional > 0 && price*size < c.MinNotional {
		return fmt.Errorf("notional %.8f < min notional %.8f", price*size, c.MinNotional)
	}
	return nil
}

func isMultiple(value, step float64) bool {
	if step <= 0 {
		return true
	}
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) <= 1e-8
}
