package tripstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/tripstore"
)

// Store is an in-memory implementation of tripstore.Store.
// It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	trips []domain.TripPaymentEvent

	// Err, when set, is returned by every List call.
	Err error
}

func NewStore(trips ...domain.TripPaymentEvent) *Store {
	s := &Store{}
	for _, t := range trips {
		s.trips = append(s.trips, cloneTrip(t))
	}
	return s
}

// Add appends trips. The same trip may be added more than once (e.g. under each driver id).
func (s *Store) Add(trips ...domain.TripPaymentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trips {
		s.trips = append(s.trips, cloneTrip(t))
	}
}

func (s *Store) List(ctx context.Context, q tripstore.Query) ([]domain.TripPaymentEvent, error) {
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

	out := make([]domain.TripPaymentEvent, 0)
	for _, t := range s.trips {
		if len(ids) > 0 {
			if _, ok := ids[t.DriverID]; !ok {
				continue
			}
		}
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		at, ok := rangeTime(t, q.By)
		if !ok || !within(at, q.From, q.To) {
			continue
		}
		out = append(out, cloneTrip(t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, _ := rangeTime(out[i], q.By)
		aj, _ := rangeTime(out[j], q.By)
		return ai.Before(aj)
	})
	return out, nil
}

func rangeTime(t domain.TripPaymentEvent, by tripstore.DateField) (time.Time, bool) {
	if by == tripstore.ByScheduledStart {
		return t.ScheduledStart, true
	}
	return t.SettledAt()
}

func within(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && at.After(to) {
		return false
	}
	return true
}

func cloneTrip(t domain.TripPaymentEvent) domain.TripPaymentEvent {
	out := t
	if t.Payment != nil {
		p := *t.Payment
		if t.Payment.TransactionTimestamp != nil {
			ts := *t.Payment.TransactionTimestamp
			p.TransactionTimestamp = &ts
		}
		out.Payment = &p
	}
	return out
}
