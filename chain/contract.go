// Package chain models the option universe as a tree of Underlying →
// Expiration → Strike → Contract nodes, each level created on demand
// and safe for concurrent readers against occasional structural writes.
package chain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrContractNotFound   = errors.New("contract not found")
	ErrUnderlyingMismatch = errors.New("underlying mismatch")
	ErrInvalidContract    = errors.New("invalid contract")
)

// Style is the option exercise style leg: call or put.
type Style string

const (
	Call Style = "C"
	Put  Style = "P"
)

// Valid reports whether s is one of the two known styles.
func (s Style) Valid() bool { return s == Call || s == Put }

// hoursPerYear uses the ACT/365 convention shared with the pricing
// collaborator.
const hoursPerYear = 365.0 * 24.0

// OptionContract is the immutable identity of one listed option.
type OptionContract struct {
	Underlying string    `json:"underlying"`
	Strike     float64   `json:"strike"`
	Expiry     time.Time `json:"expiry"`
	Style      Style     `json:"style"`
	Symbol     string    `json:"symbol"`
}

// NewOptionContract validates the identity fields and derives the
// canonical symbol {UNDERLYING}-{YYYYMMDD}-{STRIKE}-{C|P}.
func NewOptionContract(underlying string, strike float64, expiry time.Time, style Style) (OptionContract, error) {
	underlying = strings.ToUpper(strings.TrimSpace(underlying))
	if underlying == "" {
		return OptionContract{}, fmt.Errorf("%w: empty underlying", ErrInvalidContract)
	}
	if strike <= 0 {
		return OptionContract{}, fmt.Errorf("%w: non-positive strike %.4f", ErrInvalidContract, strike)
	}
	if expiry.IsZero() {
		return OptionContract{}, fmt.Errorf("%w: zero expiry", ErrInvalidContract)
	}
	if !style.Valid() {
		return OptionContract{}, fmt.Errorf("%w: style %q", ErrInvalidContract, style)
	}
	oc := OptionContract{
		Underlying: underlying,
		Strike:     strike,
		Expiry:     expiry.UTC(),
		Style:      style,
	}
	oc.Symbol = fmt.Sprintf("%s-%s-%s-%s",
		oc.Underlying, oc.Expiry.Format("20060102"), formatStrike(strike), style)
	return oc, nil
}

// TimeToExpiry returns the remaining lifetime in years, floored at zero.
func (oc OptionContract) TimeToExpiry(now time.Time) float64 {
	h := oc.Expiry.Sub(now).Hours()
	if h <= 0 {
		return 0
	}
	return h / hoursPerYear
}

// IsExpired reports whether the contract's expiry has passed.
func (oc OptionContract) IsExpired(now time.Time) bool {
	return !oc.Expiry.After(now)
}

// IsCall reports whether the contract is a call.
func (oc OptionContract) IsCall() bool { return oc.Style == Call }

// SpotSymbol names the position that holds the underlying itself, used
// by the delta hedge. It shares the option symbol's underlying prefix
// so per-underlying reports pick it up, and can never collide with a
// listed contract.
func SpotSymbol(underlying string) string {
	return strings.ToUpper(strings.TrimSpace(underlying)) + "-SPOT"
}

func formatStrike(strike float64) string {
	return strconv.FormatFloat(strike, 'f', -1, 64)
}

// strikeKey maps a strike price onto an exact integer grid (1e-4
// resolution) so map lookups never depend on float equality.
func strikeKey(price float64) int64 {
	return int64(math.Round(price * 1e4))
}

// dayKey collapses an expiry to its UTC date; contracts expiring on the
// same day share one Expiration node.
func dayKey(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}
