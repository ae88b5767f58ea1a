// Package pnl computes realized and unrealized profit and loss from
// the position ledger and the pricing board, and decomposes unrealized
// moves into per-Greek contributions.
package pnl

import (
	"strings"
	"time"

	"options-mm-go/inventory"
	"options-mm-go/pricing"
)

// SymbolPnL is one contract's P&L at a mark.
type SymbolPnL struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	AvgEntry   float64 `json:"avg_entry"`
	Mark       float64 `json:"mark,omitempty"`
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
	Fees       float64 `json:"fees"`
	Priced     bool    `json:"priced"`
}

// Report is a portfolio P&L statement at one mark.
type Report struct {
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
	Fees       float64 `json:"fees"`
	// Net is realized plus unrealized minus fees.
	Net float64 `json:"net"`

	OpenPositions int `json:"open_positions"`
	// Unpriced counts open positions with no theo at the mark; their
	// unrealized contribution is omitted, not guessed.
	Unpriced int `json:"unpriced"`

	AsOf    time.Time   `json:"as_of"`
	Symbols []SymbolPnL `json:"symbols,omitempty"`
}

// Calculator marks the ledger against pricing snapshots.
type Calculator struct {
	ledger *inventory.Ledger
	board  *pricing.Board
}

// NewCalculator wires a calculator over the ledger and board.
func NewCalculator(ledger *inventory.Ledger, board *pricing.Board) *Calculator {
	return &Calculator{ledger: ledger, board: board}
}

// MarkToMarket marks every position against the current board snapshot.
func (c *Calculator) MarkToMarket() Report {
	return c.MarkAt(c.board.Current())
}

// MarkUnderlying restricts the report to contracts of one underlying.
// Contract symbols are prefixed with the underlying, so the filter is
// a prefix match on "UND-".
func (c *Calculator) MarkUnderlying(snap *pricing.Snapshot, underlying string) Report {
	return c.mark(snap, underlying+"-")
}

// MarkAt marks every position against the given snapshot.
func (c *Calculator) MarkAt(snap *pricing.Snapshot) Report {
	return c.mark(snap, "")
}

func (c *Calculator) mark(snap *pricing.Snapshot, prefix string) Report {
	// Views comes back sorted by symbol, so the report lines are stable.
	views := c.ledger.Views()

	report := Report{AsOf: snap.AsOf, Symbols: make([]SymbolPnL, 0, len(views))}
	for _, v := range views {
		if prefix != "" && !strings.HasPrefix(v.Symbol, prefix) {
			continue
		}
		s := SymbolPnL{
			Symbol:   v.Symbol,
			Quantity: v.Quantity,
			AvgEntry: v.AvgEntry,
			Realized: v.Realized,
			Fees:     v.Fees,
		}
		if v.Quantity != 0 {
			report.OpenPositions++
			if tv, ok := snap.Theo(v.Symbol); ok {
				s.Mark = tv.Price
				s.Priced = true
				s.Unrealized = v.Quantity * (tv.Price - v.AvgEntry) * v.Multiplier
			} else {
				report.Unpriced++
			}
		}
		report.Realized += s.Realized
		report.Unrealized += s.Unrealized
		report.Fees += s.Fees
		report.Symbols = append(report.Symbols, s)
	}
	report.Net = report.Realized + report.Unrealized - report.Fees
	return report
}
