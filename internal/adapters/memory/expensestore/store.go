package expensestore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/expensestore"
)

// Store is an in-memory implementation of expensestore.Store.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	expenses []domain.ExpenseRecord

	// Err, when set, is returned by every List call.
	Err error
}

func NewStore(expenses ...domain.ExpenseRecord) *Store {
	return &Store{expenses: append([]domain.ExpenseRecord(nil), expenses...)}
}

func (s *Store) Add(expenses ...domain.ExpenseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, expenses...)
}

func (s *Store) List(ctx context.Context, q expensestore.Query) ([]domain.ExpenseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	ids := make(map[domain.DriverID]struct{}, len(q.DriverIDs))
	for _, id := range q.DriverIDs {
		ids[id] = struct{}{}
	}
	cats := make(map[string]struct{}, len(q.Categories))
	for _, c := range q.Categories {
		cats[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}

	out := make([]domain.ExpenseRecord, 0)
	for _, e := range s.expenses {
		if len(ids) > 0 {
			if _, ok := ids[e.DriverID]; !ok {
				continue
			}
		}
		if len(cats) > 0 {
			if _, ok := cats[strings.ToLower(strings.TrimSpace(e.Category))]; !ok {
				continue
			}
		}
		if !q.From.IsZero() && e.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.Date.After(q.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
