package chain

import (
	"fmt"
	"time"
)

// Level addresses one depth of the hierarchy.
type Level int

const (
	LevelUnderlying Level = iota
	LevelExpiration
	LevelStrike
	LevelContract
)

func (l Level) String() string {
	switch l {
	case LevelUnderlying:
		return "underlying"
	case LevelExpiration:
		return "expiration"
	case LevelStrike:
		return "strike"
	case LevelContract:
		return "contract"
	default:
		return "unknown"
	}
}

// LevelKey identifies one node at any level of the hierarchy. Parents
// are reachable by key, never by stored reference.
type LevelKey struct {
	level      Level
	underlying string
	expiry     time.Time
	strike     float64
	symbol     string
}

// UnderlyingLevel keys a whole underlying subtree.
func UnderlyingLevel(underlying string) LevelKey {
	return LevelKey{level: LevelUnderlying, underlying: underlying}
}

// ExpirationLevel keys one expiration under an underlying.
func ExpirationLevel(underlying string, expiry time.Time) LevelKey {
	return LevelKey{level: LevelExpiration, underlying: underlying, expiry: expiry.UTC()}
}

// StrikeLevel keys one strike under an expiration.
func StrikeLevel(underlying string, expiry time.Time, strike float64) LevelKey {
	return LevelKey{level: LevelStrike, underlying: underlying, expiry: expiry.UTC(), strike: strike}
}

// ContractLevel keys a single contract by its canonical symbol.
func ContractLevel(symbol string) LevelKey {
	return LevelKey{level: LevelContract, symbol: symbol}
}

func (k LevelKey) Level() Level       { return k.level }
func (k LevelKey) Underlying() string { return k.underlying }
func (k LevelKey) Expiry() time.Time  { return k.expiry }
func (k LevelKey) Strike() float64    { return k.strike }
func (k LevelKey) Symbol() string     { return k.symbol }

// String renders the key for logs and metric labels.
func (k LevelKey) String() string {
	switch k.level {
	case LevelUnderlying:
		return k.underlying
	case LevelExpiration:
		return fmt.Sprintf("%s/%s", k.underlying, k.expiry.Format("20060102"))
	case LevelStrike:
		return fmt.Sprintf("%s/%s/%s", k.underlying, k.expiry.Format("20060102"), formatStrike(k.strike))
	case LevelContract:
		return k.symbol
	default:
		return "invalid"
	}
}
