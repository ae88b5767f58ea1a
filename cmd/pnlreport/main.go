// pnlreport replays a fills journal through the position ledger and
// prints per-symbol realized P&L, fees, and the residual position
// marked at its last traded price.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"options-mm-go/inventory"
	"options-mm-go/posttrade"
)

func main() {
	journalPath := flag.String("journal", "fills.jsonl", "fills journal path")
	symbol := flag.String("symbol", "", "only report one symbol (default all)")
	sinceStr := flag.String("since", "", "only replay fills at or after this RFC3339 instant")
	flag.Parse()

	var since time.Time
	if *sinceStr != "" {
		var err error
		if since, err = time.Parse(time.RFC3339Nano, *sinceStr); err != nil {
			fmt.Fprintf(os.Stderr, "pnlreport: bad -since: %v\n", err)
			os.Exit(1)
		}
	}

	if err := run(*journalPath, *symbol, since); err != nil {
		fmt.Fprintf(os.Stderr, "pnlreport: %v\n", err)
		os.Exit(1)
	}
}

func run(path, symbol string, since time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := posttrade.ReadJournal(f)
	if err != nil {
		return err
	}

	ledger := inventory.NewLedger(nil)
	marks := make(map[string]float64)
	replayed := 0
	for _, e := range entries {
		if symbol != "" && e.Symbol != symbol {
			continue
		}
		if !since.IsZero() && e.At.Before(since) {
			continue
		}
		if _, err := ledger.ApplyFill(e.Symbol, e.Quantity, e.Price, e.Fee); err != nil {
			return fmt.Errorf("replay %s: %w", e.Symbol, err)
		}
		marks[e.Symbol] = e.Price
		replayed++
	}

	fmt.Printf("journal: %s (%d fills replayed, %d skipped)\n\n", path, replayed, len(entries)-replayed)
	if replayed == 0 {
		return nil
	}

	fmt.Printf("%-28s %6s %12s %12s %12s %10s %12s\n",
		"symbol", "fills", "position", "avg entry", "realized", "fees", "unrl @last")

	var totalRealized, totalFees, totalUnrealized float64
	for _, v := range ledger.Views() {
		unrealized := 0.0
		if v.Quantity != 0 {
			unrealized = (marks[v.Symbol] - v.AvgEntry) * v.Quantity * v.Multiplier
		}
		totalRealized += v.Realized
		totalFees += v.Fees
		totalUnrealized += unrealized
		fmt.Printf("%-28s %6d %12.4f %12.4f %12.4f %10.4f %12.4f\n",
			v.Symbol, v.FillCount, v.Quantity, v.AvgEntry, v.Realized, v.Fees, unrealized)
	}

	fmt.Printf("\ntotal: realized %.4f, fees %.4f, unrealized %.4f, net %.4f\n",
		totalRealized, totalFees, totalUnrealized, totalRealized+totalUnrealized-totalFees)
	return nil
}
