// Package posttrade keeps the after-the-fact record of executions: a
// JSONL journal of ledger fills for replay, and markout analysis of how
// marks move once a fill is on the book.
package posttrade

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"options-mm-go/inventory"
)

// Entry is one journalled fill, as written to disk.
type Entry struct {
	Symbol   string    `json:"symbol"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Fee      float64   `json:"fee"`
	Realized float64   `json:"realized"`
	Position float64   `json:"position"`
	At       time.Time `json:"at"`
}

// Journal appends fills as JSON lines. Record never fails the caller:
// the first write error is remembered and exposed through Err, and
// later entries are dropped.
type Journal struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	count  int64
	err    error
}

// NewJournal writes entries to w.
func NewJournal(w io.Writer) *Journal {
	return &Journal{w: w}
}

// OpenJournal appends to the file at path, creating it when missing.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{w: f, closer: f}, nil
}

// Record writes one ledger fill. The signature matches
// inventory.EventSink, so the ledger can call it directly.
func (j *Journal) Record(res inventory.FillResult) {
	data, merr := json.Marshal(Entry{
		Symbol:   res.Symbol,
		Quantity: res.Quantity,
		Price:    res.Price,
		Fee:      res.Fee,
		Realized: res.RealizedDelta,
		Position: res.PositionQty,
		At:       res.At,
	})

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	if merr != nil {
		j.err = merr
		return
	}
	if _, err := j.w.Write(append(data, '\n')); err != nil {
		j.err = err
		return
	}
	j.count++
}

// Count reports entries written so far.
func (j *Journal) Count() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Err returns the first write failure, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Close releases the underlying file when the journal owns one.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// ReadJournal decodes every entry in r, in order. Blank lines are
// skipped; a malformed line fails the whole read with its line number.
func ReadJournal(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []Entry
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}
