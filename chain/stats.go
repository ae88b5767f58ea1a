package chain

import (
	"fmt"
	"strings"
	"time"
)

// UnderlyingStats summarizes one subtree.
type UnderlyingStats struct {
	Underlying  string
	Expirations int
	Strikes     int
	Contracts   int
	Nearest     time.Time
	Farthest    time.Time
}

// String renders a one-line summary for logs.
func (s UnderlyingStats) String() string {
	if s.Expirations == 0 {
		return fmt.Sprintf("%s: empty chain", s.Underlying)
	}
	return fmt.Sprintf("%s: %d expirations, %d strikes, %d contracts, nearest %s, farthest %s",
		s.Underlying, s.Expirations, s.Strikes, s.Contracts,
		s.Nearest.Format("2006-01-02"), s.Farthest.Format("2006-01-02"))
}

// Stats walks the whole forest and summarizes each underlying.
func (c *Chain) Stats() map[string]UnderlyingStats {
	out := make(map[string]UnderlyingStats)
	for _, sym := range c.Underlyings() {
		u, ok := c.Underlying(sym)
		if !ok {
			continue
		}
		st := UnderlyingStats{Underlying: sym}
		exps := u.Expirations()
		st.Expirations = len(exps)
		if len(exps) > 0 {
			st.Nearest = exps[0]
			st.Farthest = exps[len(exps)-1]
		}
		for _, exp := range exps {
			e, ok := u.Expiration(exp)
			if !ok {
				continue
			}
			st.Strikes += len(e.Strikes())
			st.Contracts += len(contractsOfExpiration(e))
		}
		out[sym] = st
	}
	return out
}

// StatsString renders every underlying summary, one per line, sorted.
func (c *Chain) StatsString() string {
	stats := c.Stats()
	lines := make([]string, 0, len(stats))
	for _, sym := range c.Underlyings() {
		lines = append(lines, stats[sym].String())
	}
	return strings.Join(lines, "\n")
}
