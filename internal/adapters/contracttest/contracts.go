package contracttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	driverdirport "github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
	idempotencyport "github.com/Flora-Ebah/kairos-backend/internal/ports/out/idempotency"
	ledgerrepoport "github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

type CleanupFunc = func()

type LedgerRepoFactory func(t *testing.T) (ledgerrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

// DirectoryFactory builds both identity stores pre-populated with the given records.
type DirectoryFactory func(t *testing.T, primary []driverdirport.PrimaryRecord, specialized []driverdirport.SpecializedRecord) (driverdirport.PrimaryStore, driverdirport.SpecializedStore, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Actor:    domain.ActorID("dispatcher-1"),
		Method:   "POST",
		Route:    "/ledgers/{ledgerId}/entries",
		BodyHash: "b1",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"balance":1000}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"balance":1000}` || got.ContentType != "application/json" || got.StatusCode != 201 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// A different actor with the same key is a different request.
	other := fp
	other.Actor = "dispatcher-2"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other actor: ok=%v err=%v", ok, err)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"balance":2000}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"balance":2000}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Prune only removes records older than the cutoff.
	if _, err := store.Prune(ctx, rec.CreatedAt); err != nil {
		t.Fatalf("Prune at createdAt: %v", err)
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || !ok {
		t.Fatalf("record pruned too early: ok=%v err=%v", ok, err)
	}
	if _, err := store.Prune(ctx, rec.CreatedAt.Add(time.Second)); err != nil {
		t.Fatalf("Prune after createdAt: %v", err)
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("record survived prune: ok=%v err=%v", ok, err)
	}
}

func RunLedgerRepo(t *testing.T, newRepo LedgerRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1_710_000_000, 0).UTC()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	driver := domain.DriverRef{ID: domain.DriverID("drv-" + uuid.NewString()), Source: domain.SourceSpecialized}

	l, err := domain.NewDailyLedger(domain.LedgerID(uuid.NewString()), driver, day, 5000, "dispatcher-1", now)
	if err != nil {
		t.Fatalf("NewDailyLedger: %v", err)
	}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Driver != driver || !got.Day.Equal(day) || got.OpeningAmount != 5000 || got.RunningBalance != 5000 || got.Status != domain.LedgerStatusActive {
		t.Fatalf("GetByID unexpected ledger: %+v", got)
	}
	if got.Version != 1 {
		t.Fatalf("GetByID version=%d, want 1", got.Version)
	}
	if _, err := repo.GetByDriverDay(ctx, driver, day); err != nil {
		t.Fatalf("GetByDriverDay: %v", err)
	}
	if _, err := repo.GetByDriverDay(ctx, driver, day.AddDate(0, 0, 1)); !errors.Is(err, ledgerrepoport.ErrNotFound) {
		t.Fatalf("GetByDriverDay other day err=%v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, domain.LedgerID(uuid.NewString())); !errors.Is(err, ledgerrepoport.ErrNotFound) {
		t.Fatalf("GetByID unknown err=%v, want ErrNotFound", err)
	}

	// (driver, day) uniqueness.
	dup, _ := domain.NewDailyLedger(domain.LedgerID(uuid.NewString()), driver, day, 0, "dispatcher-2", now)
	if err := repo.Create(ctx, dup); !errors.Is(err, ledgerrepoport.ErrDuplicate) {
		t.Fatalf("Create duplicate day err=%v, want ErrDuplicate", err)
	}

	// Update appends and bumps the version.
	trip := domain.TripID("trip-1")
	updated, err := repo.Update(ctx, l.ID, func(x *domain.DailyLedger) error {
		_, err := x.Append(domain.LedgerEntry{
			ID:           domain.EntryID(uuid.NewString()),
			Type:         domain.EntryRecette,
			Amount:       1500,
			Description:  "course",
			LinkedTripID: &trip,
			Timestamp:    now.Add(time.Hour),
			CreatedBy:    "dispatcher-1",
		}, now.Add(time.Hour))
		return err
	})
	if err != nil {
		t.Fatalf("Update append: %v", err)
	}
	if updated.Version != 2 || updated.RunningBalance != 6500 || len(updated.Entries) != 1 {
		t.Fatalf("Update returned %+v", updated)
	}
	got, err = repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.Version != 2 || got.RunningBalance != 6500 || len(got.Entries) != 1 {
		t.Fatalf("persisted ledger %+v", got)
	}
	if e := got.Entries[0]; e.Type != domain.EntryRecette || e.Amount != 1500 || e.LinkedTripID == nil || *e.LinkedTripID != trip || !e.Timestamp.Equal(now.Add(time.Hour)) {
		t.Fatalf("persisted entry %+v", e)
	}

	// ErrNoChange returns current state without writing.
	same, err := repo.Update(ctx, l.ID, func(*domain.DailyLedger) error { return ledgerrepoport.ErrNoChange })
	if err != nil {
		t.Fatalf("Update no change: %v", err)
	}
	if same.Version != 2 {
		t.Fatalf("Update no change version=%d, want 2", same.Version)
	}

	// A failing mutation persists nothing.
	boom := errors.New("boom")
	if _, err := repo.Update(ctx, l.ID, func(x *domain.DailyLedger) error {
		x.RunningBalance = 0
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Update failing fn err=%v, want boom", err)
	}
	got, _ = repo.GetByID(ctx, l.ID)
	if got.RunningBalance != 6500 || got.Version != 2 {
		t.Fatalf("failed mutation leaked: %+v", got)
	}

	if _, err := repo.Update(ctx, domain.LedgerID(uuid.NewString()), func(*domain.DailyLedger) error { return nil }); !errors.Is(err, ledgerrepoport.ErrNotFound) {
		t.Fatalf("Update unknown err=%v, want ErrNotFound", err)
	}

	// Close round-trips status, notes and closedAt.
	if _, err := repo.Update(ctx, l.ID, func(x *domain.DailyLedger) error { return x.Close("fin de journée", now.Add(10*time.Hour)) }); err != nil {
		t.Fatalf("Update close: %v", err)
	}
	got, _ = repo.GetByID(ctx, l.ID)
	if !got.IsClosed() || got.Notes == nil || *got.Notes != "fin de journée" || got.ClosedAt == nil || !got.ClosedAt.Equal(now.Add(10*time.Hour)) {
		t.Fatalf("closed ledger %+v", got)
	}

	// Same id under the other source is a distinct driver key.
	otherSource := domain.DriverRef{ID: driver.ID, Source: domain.SourcePrimary}
	l2, _ := domain.NewDailyLedger(domain.LedgerID(uuid.NewString()), otherSource, day, 0, "dispatcher-1", now)
	if err := repo.Create(ctx, l2); err != nil {
		t.Fatalf("Create other source: %v", err)
	}
	l3, _ := domain.NewDailyLedger(domain.LedgerID(uuid.NewString()), driver, day.AddDate(0, 0, 1), 100, "dispatcher-1", now)
	if err := repo.Create(ctx, l3); err != nil {
		t.Fatalf("Create next day: %v", err)
	}

	// List: filter by driver and range; ordered by day then driver.
	all, err := repo.List(ctx, ledgerrepoport.Filter{Drivers: []domain.DriverRef{driver, otherSource}, From: day, To: day.AddDate(0, 0, 1)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List len=%d, want 3", len(all))
	}
	if !all[0].Day.Equal(day) || !all[2].Day.Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("List not ordered by day: %v %v %v", all[0].Day, all[1].Day, all[2].Day)
	}
	active, err := repo.List(ctx, ledgerrepoport.Filter{Drivers: []domain.DriverRef{driver}, Status: domain.LedgerStatusActive})
	if err != nil {
		t.Fatalf("List active: %v", err)
	}
	if len(active) != 1 || active[0].ID != l3.ID {
		t.Fatalf("List active=%+v, want only %s", active, l3.ID)
	}
	onlyFirstDay, err := repo.List(ctx, ledgerrepoport.Filter{Drivers: []domain.DriverRef{driver}, From: day, To: day})
	if err != nil {
		t.Fatalf("List one day: %v", err)
	}
	if len(onlyFirstDay) != 1 || onlyFirstDay[0].ID != l.ID {
		t.Fatalf("List one day=%+v, want only %s", onlyFirstDay, l.ID)
	}

	runConcurrentAppends(t, repo, l3.ID, now)
}

// runConcurrentAppends verifies that concurrent Update calls serialize and none is lost.
func runConcurrentAppends(t *testing.T, repo ledgerrepoport.Repository, id domain.LedgerID, now time.Time) {
	t.Helper()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Update(ctx, id, func(x *domain.DailyLedger) error {
				_, err := x.Append(domain.LedgerEntry{
					ID:          domain.EntryID(uuid.NewString()),
					Type:        domain.EntryRecette,
					Amount:      10,
					Description: fmt.Sprintf("course %d", i),
					Timestamp:   now,
					CreatedBy:   "dispatcher-1",
				}, now)
				return err
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Update: %v", err)
		}
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Entries) != n || got.RunningBalance != 100+10*n || got.Drift() != 0 {
		t.Fatalf("after concurrent appends entries=%d balance=%d drift=%d", len(got.Entries), got.RunningBalance, got.Drift())
	}
	if got.Version != 1+n {
		t.Fatalf("version=%d, want %d", got.Version, 1+n)
	}
}

func RunDriverDirectory(t *testing.T, newDirectory DirectoryFactory) {
	t.Helper()
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	email := "awa." + suffix + "@example.com"
	expires := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)
	vehicle := "veh-" + suffix

	primary := []driverdirport.PrimaryRecord{
		{ID: domain.DriverID("p-b-" + suffix), Email: "Awa." + suffix + "@Example.com", LastName: "Diallo", FirstName: "Awa", Role: driverdirport.RoleDriver, IsActive: true},
		{ID: domain.DriverID("p-c-" + suffix), Email: "client." + suffix + "@example.com", LastName: "Traore", FirstName: "Moussa", Role: "client", IsActive: true},
		{ID: domain.DriverID("p-a-" + suffix), Email: "awa.client." + suffix + "@example.com", LastName: "Diallo", FirstName: "Awa", Role: "client", IsActive: true},
	}
	specialized := []driverdirport.SpecializedRecord{
		{
			ID:                domain.DriverID("s-a-" + suffix),
			Email:             email,
			LastName:          "DIALLO",
			FirstName:         " awa ",
			License:           driverdirport.License{Number: "L-" + suffix, Class: "B", ExpiresAt: &expires},
			AssignedVehicleID: &vehicle,
			Situation:         "en service",
			IsActive:          true,
		},
	}
	p, s, cleanup := newDirectory(t, primary, specialized)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	got, err := p.GetByID(ctx, primary[0].ID)
	if err != nil {
		t.Fatalf("primary GetByID: %v", err)
	}
	if got.Email != primary[0].Email || got.Role != driverdirport.RoleDriver {
		t.Fatalf("primary GetByID=%+v", got)
	}
	if _, err := p.GetByID(ctx, "missing-"+domain.DriverID(suffix)); !errors.Is(err, driverdirport.ErrNotFound) {
		t.Fatalf("primary GetByID missing err=%v, want ErrNotFound", err)
	}

	byEmail, err := p.FindByEmail(ctx, email)
	if err != nil || byEmail.ID != primary[0].ID {
		t.Fatalf("primary FindByEmail=%+v err=%v", byEmail, err)
	}
	primaryByName, err := p.FindByName(ctx, " DIALLO", "awa")
	if err != nil || primaryByName.ID != primary[0].ID {
		t.Fatalf("primary FindByName=%+v err=%v, want the driver over the lower-id client", primaryByName, err)
	}
	byName, err := s.FindByName(ctx, "diallo", "Awa")
	if err != nil || byName.ID != specialized[0].ID {
		t.Fatalf("specialized FindByName=%+v err=%v", byName, err)
	}
	if byName.License.ExpiresAt == nil || !byName.License.ExpiresAt.Equal(expires) || byName.AssignedVehicleID == nil || *byName.AssignedVehicleID != vehicle {
		t.Fatalf("specialized record fields not round-tripped: %+v", byName)
	}
	if _, err := s.FindByEmail(ctx, "nobody-"+suffix+"@example.com"); !errors.Is(err, driverdirport.ErrNotFound) {
		t.Fatalf("specialized FindByEmail missing err=%v, want ErrNotFound", err)
	}

	drivers, err := p.ListDrivers(ctx)
	if err != nil {
		t.Fatalf("primary ListDrivers: %v", err)
	}
	for _, d := range drivers {
		if d.Role != driverdirport.RoleDriver {
			t.Fatalf("primary ListDrivers returned role %q", d.Role)
		}
	}
	if !containsPrimary(drivers, primary[0].ID) || containsPrimary(drivers, primary[1].ID) {
		t.Fatalf("primary ListDrivers=%+v", drivers)
	}
}

func containsPrimary(rs []driverdirport.PrimaryRecord, id domain.DriverID) bool {
	for _, r := range rs {
		if r.ID == id {
			return true
		}
	}
	return false
}
