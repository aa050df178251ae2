package ledgerrepo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

type dayKey struct {
	driver domain.DriverRef
	day    int64
}

func keyFor(driver domain.DriverRef, day time.Time) dayKey {
	return dayKey{driver: driver, day: day.Unix()}
}

// Repo is an in-memory implementation of ledgerrepo.Repository.
// It is safe for concurrent use; Update holds the write lock across read-modify-write.
type Repo struct {
	mu sync.RWMutex

	byID  map[domain.LedgerID]domain.DailyLedger
	byDay map[dayKey]domain.LedgerID
}

func NewRepo() *Repo {
	return &Repo{
		byID:  make(map[domain.LedgerID]domain.DailyLedger),
		byDay: make(map[dayKey]domain.LedgerID),
	}
}

func (r *Repo) Create(ctx context.Context, l domain.DailyLedger) error {
	_ = ctx
	if l.ID == "" {
		return ledgerrepo.ErrDuplicate // treat empty ID as invalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[l.ID]; ok {
		return ledgerrepo.ErrDuplicate
	}
	k := keyFor(l.Driver, l.Day)
	if _, ok := r.byDay[k]; ok {
		return ledgerrepo.ErrDuplicate
	}
	if l.Version == 0 {
		l.Version = 1
	}
	r.byID[l.ID] = l.Clone()
	r.byDay[k] = l.ID
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.LedgerID) (domain.DailyLedger, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id]
	if !ok {
		return domain.DailyLedger{}, ledgerrepo.ErrNotFound
	}
	return l.Clone(), nil
}

func (r *Repo) GetByDriverDay(ctx context.Context, driver domain.DriverRef, day time.Time) (domain.DailyLedger, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byDay[keyFor(driver, day)]
	if !ok {
		return domain.DailyLedger{}, ledgerrepo.ErrNotFound
	}
	l, ok := r.byID[id]
	if !ok {
		return domain.DailyLedger{}, ledgerrepo.ErrNotFound
	}
	return l.Clone(), nil
}

func (r *Repo) List(ctx context.Context, f ledgerrepo.Filter) ([]domain.DailyLedger, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.DailyLedger, 0)
	for _, l := range r.byID {
		if matches(l, f) {
			out = append(out, l.Clone())
		}
	}
	sortLedgers(out)
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id domain.LedgerID, fn ledgerrepo.MutateFunc) (domain.DailyLedger, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyLedger{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return domain.DailyLedger{}, ledgerrepo.ErrNotFound
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, ledgerrepo.ErrNoChange) {
			return current.Clone(), nil
		}
		return domain.DailyLedger{}, err
	}
	// Identity fields are immutable.
	next.ID = current.ID
	next.Driver = current.Driver
	next.Day = current.Day
	next.Version = current.Version + 1

	r.byID[id] = next.Clone()
	return next, nil
}

func matches(l domain.DailyLedger, f ledgerrepo.Filter) bool {
	if len(f.Drivers) > 0 {
		found := false
		for _, d := range f.Drivers {
			if d == l.Driver {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && l.Day.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && l.Day.After(f.To) {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	return true
}

func sortLedgers(ls []domain.DailyLedger) {
	sort.Slice(ls, func(i, j int) bool {
		a, b := ls[i], ls[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		if a.Driver.ID != b.Driver.ID {
			return a.Driver.ID < b.Driver.ID
		}
		return a.Driver.Source < b.Driver.Source
	})
}
