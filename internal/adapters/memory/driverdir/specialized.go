package driverdir

import (
	"context"
	"sort"
	"sync"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
)

// SpecializedStore is an in-memory implementation of driverdir.SpecializedStore.
// It is safe for concurrent use.
type SpecializedStore struct {
	mu   sync.RWMutex
	byID map[domain.DriverID]driverdir.SpecializedRecord
}

func NewSpecializedStore(records ...driverdir.SpecializedRecord) *SpecializedStore {
	s := &SpecializedStore{byID: make(map[domain.DriverID]driverdir.SpecializedRecord)}
	for _, r := range records {
		s.byID[r.ID] = cloneSpecialized(r)
	}
	return s
}

func (s *SpecializedStore) Put(r driverdir.SpecializedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[r.ID] = cloneSpecialized(r)
}

func (s *SpecializedStore) GetByID(ctx context.Context, id domain.DriverID) (driverdir.SpecializedRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return driverdir.SpecializedRecord{}, driverdir.ErrNotFound
	}
	return cloneSpecialized(r), nil
}

func (s *SpecializedStore) FindByEmail(ctx context.Context, email string) (driverdir.SpecializedRecord, error) {
	_ = ctx
	want := domain.NormalizeEmail(email)
	if want == "" {
		return driverdir.SpecializedRecord{}, driverdir.ErrNotFound
	}
	return s.first(func(r driverdir.SpecializedRecord) bool {
		return domain.NormalizeEmail(r.Email) == want
	})
}

func (s *SpecializedStore) FindByName(ctx context.Context, lastName, firstName string) (driverdir.SpecializedRecord, error) {
	_ = ctx
	last, first := domain.NameKey(lastName), domain.NameKey(firstName)
	if last == "" || first == "" {
		return driverdir.SpecializedRecord{}, driverdir.ErrNotFound
	}
	return s.first(func(r driverdir.SpecializedRecord) bool {
		return domain.NameKey(r.LastName) == last && domain.NameKey(r.FirstName) == first
	})
}

func (s *SpecializedStore) ListDrivers(ctx context.Context) ([]driverdir.SpecializedRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]driverdir.SpecializedRecord, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, cloneSpecialized(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *SpecializedStore) first(match func(driverdir.SpecializedRecord) bool) (driverdir.SpecializedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  driverdir.SpecializedRecord
		found bool
	)
	for _, r := range s.byID {
		if !match(r) {
			continue
		}
		if !found || r.ID < best.ID {
			best, found = r, true
		}
	}
	if !found {
		return driverdir.SpecializedRecord{}, driverdir.ErrNotFound
	}
	return cloneSpecialized(best), nil
}

func cloneSpecialized(r driverdir.SpecializedRecord) driverdir.SpecializedRecord {
	out := r
	if r.AssignedVehicleID != nil {
		v := *r.AssignedVehicleID
		out.AssignedVehicleID = &v
	}
	if r.License.ExpiresAt != nil {
		v := *r.License.ExpiresAt
		out.License.ExpiresAt = &v
	}
	return out
}
