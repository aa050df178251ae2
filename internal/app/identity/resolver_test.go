package identity_test

import (
	"context"
	"errors"
	"testing"

	memdriverdir "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/driverdir"
	"github.com/Flora-Ebah/kairos-backend/internal/app/apperr"
	"github.com/Flora-Ebah/kairos-backend/internal/app/identity"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
)

func newResolver() (*identity.Resolver, *memdriverdir.PrimaryStore, *memdriverdir.SpecializedStore) {
	p := memdriverdir.NewPrimaryStore(
		driverdir.PrimaryRecord{ID: "u-awa", Email: "Awa.Diallo@example.com", LastName: "Diallo", FirstName: "Awa", Role: driverdir.RoleDriver, IsActive: true},
		driverdir.PrimaryRecord{ID: "u-ibra", Email: "ibra@old-mail.example", LastName: "Koné", FirstName: "Ibrahim", Role: driverdir.RoleDriver, IsActive: true},
		driverdir.PrimaryRecord{ID: "u-solo", Email: "solo@example.com", LastName: "Touré", FirstName: "Fatou", Role: driverdir.RoleDriver, IsActive: true},
		driverdir.PrimaryRecord{ID: "u-client", Email: "client@example.com", LastName: "Bamba", FirstName: "Yao", Role: "client", IsActive: true},
	)
	s := memdriverdir.NewSpecializedStore(
		driverdir.SpecializedRecord{ID: "c-awa", Email: "awa.diallo@EXAMPLE.com ", LastName: "DIALLO", FirstName: "Awa", IsActive: true},
		driverdir.SpecializedRecord{ID: "c-ibra", Email: "ibrahim.kone@example.com", LastName: "koné", FirstName: "  Ibrahim ", IsActive: true},
		driverdir.SpecializedRecord{ID: "c-new", Email: "new@example.com", LastName: "Ouattara", FirstName: "Jean", IsActive: true},
	)
	return identity.NewResolver(p, s, nil), p, s
}

func ids(c domain.CanonicalDriver) (string, string) {
	var p, s string
	if c.PrimaryID != nil {
		p = string(*c.PrimaryID)
	}
	if c.SpecializedID != nil {
		s = string(*c.SpecializedID)
	}
	return p, s
}

func TestResolver_SameCanonicalFromEitherID(t *testing.T) {
	t.Parallel()

	r, _, _ := newResolver()
	ctx := context.Background()

	fromSpecialized, err := r.Resolve(ctx, domain.DriverRef{ID: "c-awa"})
	if err != nil {
		t.Fatalf("Resolve(c-awa): %v", err)
	}
	fromPrim, err := r.Resolve(ctx, domain.DriverRef{ID: "u-awa"})
	if err != nil {
		t.Fatalf("Resolve(u-awa): %v", err)
	}
	if fromSpecialized.Key() != fromPrim.Key() || fromSpecialized.Email != fromPrim.Email || fromSpecialized.DisplayName != fromPrim.DisplayName {
		t.Fatalf("fromSpecialized=%+v fromPrim=%+v", fromSpecialized, fromPrim)
	}
	if p, s := ids(fromSpecialized); p != "u-awa" || s != "c-awa" {
		t.Fatalf("ids=%s/%s, want u-awa/c-awa", p, s)
	}
	if fromSpecialized.Email != "awa.diallo@example.com" {
		t.Fatalf("email=%q", fromSpecialized.Email)
	}
}

func TestResolver_FallsBackToNameMatch(t *testing.T) {
	t.Parallel()

	r, _, _ := newResolver()
	c, err := r.Resolve(context.Background(), domain.DriverRef{ID: "u-ibra", Source: domain.SourcePrimary})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p, s := ids(c); p != "u-ibra" || s != "c-ibra" {
		t.Fatalf("ids=%s/%s, want u-ibra/c-ibra", p, s)
	}
	if c.DisplayName != "Ibrahim koné" {
		t.Fatalf("displayName=%q, want specialized store's name", c.DisplayName)
	}
}

func TestResolver_SingleIDWhenNoCounterpart(t *testing.T) {
	t.Parallel()

	r, _, _ := newResolver()
	c, err := r.Resolve(context.Background(), domain.DriverRef{ID: "c-new"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p, s := ids(c); p != "" || s != "c-new" {
		t.Fatalf("ids=%s/%s, want only c-new", p, s)
	}
	if got := c.IDs(); len(got) != 1 || got[0] != "c-new" {
		t.Fatalf("IDs()=%v", got)
	}
}

func TestResolver_DriverNotFound(t *testing.T) {
	t.Parallel()

	r, _, _ := newResolver()
	ctx := context.Background()

	if _, err := r.Resolve(ctx, domain.DriverRef{ID: "ghost"}); !apperr.Is(err, apperr.KindDriverNotFound) {
		t.Fatalf("Resolve(ghost) err=%v, want DRIVER_NOT_FOUND", err)
	}
	if _, err := r.Resolve(ctx, domain.DriverRef{ID: "u-client"}); !apperr.Is(err, apperr.KindDriverNotFound) {
		t.Fatalf("Resolve(client) err=%v, want DRIVER_NOT_FOUND", err)
	}
	// Explicit source restricts the lookup to that store.
	if _, err := r.Resolve(ctx, domain.DriverRef{ID: "u-awa", Source: domain.SourceSpecialized}); !apperr.Is(err, apperr.KindDriverNotFound) {
		t.Fatalf("Resolve(u-awa as specialized) err=%v, want DRIVER_NOT_FOUND", err)
	}
	if _, err := r.Resolve(ctx, domain.DriverRef{ID: ""}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Resolve(\"\") err=%v, want validation", err)
	}
}

type failingPrimary struct{ driverdir.PrimaryStore }

func (failingPrimary) FindByEmail(context.Context, string) (driverdir.PrimaryRecord, error) {
	return driverdir.PrimaryRecord{}, errors.New("connection reset")
}

func TestResolver_StoreFailureIsCollaboratorUnavailable(t *testing.T) {
	t.Parallel()

	_, p, s := newResolver()
	r := identity.NewResolver(failingPrimary{p}, s, nil)

	_, err := r.Resolve(context.Background(), domain.DriverRef{ID: "c-awa"})
	if !apperr.Is(err, apperr.KindCollaboratorUnavailable) {
		t.Fatalf("err=%v, want COLLABORATOR_UNAVAILABLE", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || !ae.Retryable() {
		t.Fatalf("err=%v, want retryable", err)
	}
}

func TestResolver_ListCanonicalDrivers_Deduplicates(t *testing.T) {
	t.Parallel()

	r, _, _ := newResolver()
	got, err := r.ListCanonicalDrivers(context.Background())
	if err != nil {
		t.Fatalf("ListCanonicalDrivers: %v", err)
	}

	want := map[string]bool{
		"p:u-awa|s:c-awa":   true,
		"p:u-ibra|s:c-ibra": true,
		"|s:c-new":          true,
		"p:u-solo|":         true,
	}
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d: %+v", len(got), len(want), got)
	}
	for _, c := range got {
		if !want[c.Key()] {
			t.Fatalf("unexpected canonical driver %s", c.Key())
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].DisplayName > got[i].DisplayName {
			t.Fatalf("not sorted by display name: %q before %q", got[i-1].DisplayName, got[i].DisplayName)
		}
	}
}

func TestResolver_ListCanonicalDrivers_SpecializedClaimedOnce(t *testing.T) {
	t.Parallel()

	// Two primary drivers share a name with one specialized record; only the email match claims it.
	p := memdriverdir.NewPrimaryStore(
		driverdir.PrimaryRecord{ID: "u1", Email: "a@example.com", LastName: "Sow", FirstName: "Ali", Role: driverdir.RoleDriver},
		driverdir.PrimaryRecord{ID: "u2", Email: "other@example.com", LastName: "Sow", FirstName: "Ali", Role: driverdir.RoleDriver},
	)
	s := memdriverdir.NewSpecializedStore(driverdir.SpecializedRecord{ID: "c1", Email: "a@example.com", LastName: "Sow", FirstName: "Ali"})
	r := identity.NewResolver(p, s, nil)

	got, err := r.ListCanonicalDrivers(context.Background())
	if err != nil {
		t.Fatalf("ListCanonicalDrivers: %v", err)
	}
	claims := 0
	for _, c := range got {
		if c.SpecializedID != nil && *c.SpecializedID == "c1" {
			claims++
		}
	}
	if len(got) != 2 || claims != 1 {
		t.Fatalf("got=%+v, want 2 drivers with c1 claimed once", got)
	}
}

func TestResolver_NameTwinClientNotMatched(t *testing.T) {
	t.Parallel()

	p := memdriverdir.NewPrimaryStore(
		driverdir.PrimaryRecord{ID: "a-client", Email: "client@example.com", LastName: "Kouassi", FirstName: "Jean", Role: "client", IsActive: true},
		driverdir.PrimaryRecord{ID: "b-driver", Email: "jean@example.com", LastName: "Kouassi", FirstName: "Jean", Role: driverdir.RoleDriver, IsActive: true},
	)
	s := memdriverdir.NewSpecializedStore(
		driverdir.SpecializedRecord{ID: "c-jean", LastName: "Kouassi", FirstName: "Jean", IsActive: true},
	)
	r := identity.NewResolver(p, s, nil)
	ctx := context.Background()

	fromPrimary, err := r.Resolve(ctx, domain.DriverRef{ID: "b-driver"})
	if err != nil {
		t.Fatalf("Resolve(b-driver): %v", err)
	}
	fromSpecialized, err := r.Resolve(ctx, domain.DriverRef{ID: "c-jean"})
	if err != nil {
		t.Fatalf("Resolve(c-jean): %v", err)
	}
	if fromPrimary.Key() != fromSpecialized.Key() {
		t.Fatalf("fromPrimary=%s fromSpecialized=%s", fromPrimary.Key(), fromSpecialized.Key())
	}
	if pid, sid := ids(fromSpecialized); pid != "b-driver" || sid != "c-jean" {
		t.Fatalf("ids=(%s,%s), want (b-driver,c-jean)", pid, sid)
	}
	if fromSpecialized.Email != "jean@example.com" {
		t.Fatalf("email=%q", fromSpecialized.Email)
	}

	all, err := r.ListCanonicalDrivers(ctx)
	if err != nil {
		t.Fatalf("ListCanonicalDrivers: %v", err)
	}
	if len(all) != 1 || all[0].Key() != "p:b-driver|s:c-jean" {
		t.Fatalf("ListCanonicalDrivers=%+v", all)
	}
}
