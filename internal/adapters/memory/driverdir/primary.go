package driverdir

import (
	"context"
	"sort"
	"sync"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
)

// PrimaryStore is an in-memory implementation of driverdir.PrimaryStore.
// It is safe for concurrent use.
type PrimaryStore struct {
	mu   sync.RWMutex
	byID map[domain.DriverID]driverdir.PrimaryRecord
}

func NewPrimaryStore(records ...driverdir.PrimaryRecord) *PrimaryStore {
	s := &PrimaryStore{byID: make(map[domain.DriverID]driverdir.PrimaryRecord)}
	for _, r := range records {
		s.byID[r.ID] = r
	}
	return s
}

// Put inserts or replaces a record.
func (s *PrimaryStore) Put(r driverdir.PrimaryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[r.ID] = r
}

func (s *PrimaryStore) GetByID(ctx context.Context, id domain.DriverID) (driverdir.PrimaryRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return driverdir.PrimaryRecord{}, driverdir.ErrNotFound
	}
	return r, nil
}

func (s *PrimaryStore) FindByEmail(ctx context.Context, email string) (driverdir.PrimaryRecord, error) {
	_ = ctx
	want := domain.NormalizeEmail(email)
	if want == "" {
		return driverdir.PrimaryRecord{}, driverdir.ErrNotFound
	}
	return s.first(func(r driverdir.PrimaryRecord) bool {
		return domain.NormalizeEmail(r.Email) == want
	})
}

func (s *PrimaryStore) FindByName(ctx context.Context, lastName, firstName string) (driverdir.PrimaryRecord, error) {
	_ = ctx
	last, first := domain.NameKey(lastName), domain.NameKey(firstName)
	if last == "" || first == "" {
		return driverdir.PrimaryRecord{}, driverdir.ErrNotFound
	}
	return s.first(func(r driverdir.PrimaryRecord) bool {
		return domain.NameKey(r.LastName) == last && domain.NameKey(r.FirstName) == first
	})
}

func (s *PrimaryStore) ListDrivers(ctx context.Context) ([]driverdir.PrimaryRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]driverdir.PrimaryRecord, 0)
	for _, r := range s.byID {
		if r.Role == driverdir.RoleDriver {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *PrimaryStore) first(match func(driverdir.PrimaryRecord) bool) (driverdir.PrimaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  driverdir.PrimaryRecord
		found bool
	)
	for _, r := range s.byID {
		if !match(r) {
			continue
		}
		if !found || preferred(r, best) {
			best, found = r, true
		}
	}
	if !found {
		return driverdir.PrimaryRecord{}, driverdir.ErrNotFound
	}
	return best, nil
}

// preferred orders matches: drivers before other roles, then lowest ID.
func preferred(r, than driverdir.PrimaryRecord) bool {
	rd, td := r.Role == driverdir.RoleDriver, than.Role == driverdir.RoleDriver
	if rd != td {
		return rd
	}
	return r.ID < than.ID
}
