package risk

import (
	"errors"
	"fmt"
)

// ErrTradingHalted rejects pre-trade actions while the halt flag is set.
var ErrTradingHalted = errors.New("trading halted")

// Guard vets a proposed order before it reaches the venue. Guards are
// pre-trade only; fills that already happened are never rejected.
type Guard interface {
	PreOrder(symbol string, qty, price float64) error
}

// MultiGuard runs guards in order and stops at the first refusal.
type MultiGuard []Guard

func (m MultiGuard) PreOrder(symbol string, qty, price float64) error {
	for _, g := range m {
		if err := g.PreOrder(symbol, qty, price); err != nil {
			return err
		}
	}
	return nil
}

// HaltGuard refuses every order while the controller is halted.
type HaltGuard struct {
	Controller *Controller
}

func (g HaltGuard) PreOrder(symbol string, qty, price float64) error {
	if g.Controller == nil || !g.Controller.Halted() {
		return nil
	}
	reason, _, _ := g.Controller.HaltInfo()
	return fmt.Errorf("%w: %s", ErrTradingHalted, reason)
}
