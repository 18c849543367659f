// Package memory is an in-process spreadsheet mirror used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"ledgerly/internal/core"
	ports "ledgerly/internal/sheets"
)

var _ ports.TransactionWriter = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	rows map[string]core.Transaction
	refs map[string]int
	next int
}

func New() *Store {
	return &Store{rows: map[string]core.Transaction{}, refs: map[string]int{}}
}

// Upsert stores the transaction and returns a stable synthetic row reference.
func (s *Store) Upsert(_ context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", errors.New("transaction without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.refs[tx.ID]
	if !ok {
		s.next++
		row = s.next
		s.refs[tx.ID] = row
	}
	s.rows[tx.ID] = tx
	return fmt.Sprintf("mem:%d", row), nil
}

// Remove drops the row of id when it sits in the year of date, matching the
// one-sheet-per-year layout. An empty date removes it wherever it is.
func (s *Store) Remove(_ context.Context, id, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.rows[id]
	if !ok {
		return nil
	}
	if date != "" && !sameYear(tx.Date, date) {
		return nil
	}
	delete(s.rows, id)
	return nil
}

func sameYear(a, b string) bool {
	da, errA := core.ParseDate(a)
	db, errB := core.ParseDate(b)
	if errA != nil || errB != nil {
		return true
	}
	return da.Year() == db.Year()
}

// Rows returns the mirrored transactions ordered by row.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.rows))
	for _, tx := range s.rows {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return s.refs[out[i].ID] < s.refs[out[j].ID] })
	return out
}
