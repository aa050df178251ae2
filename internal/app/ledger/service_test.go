package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	memclock "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/clock"
	memevents "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/events"
	memledgerrepo "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/ledgerrepo"
	"github.com/Flora-Ebah/kairos-backend/internal/app/apperr"
	"github.com/Flora-Ebah/kairos-backend/internal/app/ledger"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/events"
	portledgerrepo "github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

var wat = time.FixedZone("WAT", 3600)

var driverX = domain.DriverRef{ID: "drv-x", Source: domain.SourceSpecialized}

type fixture struct {
	svc    *ledger.Service
	repo   *memledgerrepo.Repo
	clock  *memclock.Clock
	events *memevents.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memledgerrepo.NewRepo()
	clk := memclock.New(time.Date(2024, 5, 1, 7, 30, 0, 0, wat), wat)
	rec := memevents.NewRecorder()
	svc := ledger.NewService(repo, rec, clk, nil)
	n := 0
	var mu sync.Mutex
	svc.SetNewLedgerIDForTest(func() domain.LedgerID {
		mu.Lock()
		defer mu.Unlock()
		n++
		return domain.LedgerID(fmt.Sprintf("l%d", n))
	})
	return fixture{svc: svc, repo: repo, clock: clk, events: rec}
}

func (f fixture) open(t *testing.T, opening domain.Amount) domain.DailyLedger {
	t.Helper()
	l, err := f.svc.GetOrCreateDailyLedger(context.Background(), driverX, f.clock.Now(), opening, "dispatcher-1")
	if err != nil {
		t.Fatalf("GetOrCreateDailyLedger: %v", err)
	}
	return l
}

func tripID(s string) *domain.TripID {
	id := domain.TripID(s)
	return &id
}

func TestService_ScenarioA_AppendUpdatesBalance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	l := f.open(t, 50000)

	l, err := f.svc.AppendEntry(context.Background(), l.ID, ledger.NewEntry{Type: domain.EntryRecette, Amount: 15000, Description: "course Plateau - Cocody", CreatedBy: "dispatcher-1"})
	if err != nil {
		t.Fatalf("AppendEntry recette: %v", err)
	}
	l, err = f.svc.AppendEntry(context.Background(), l.ID, ledger.NewEntry{Type: domain.EntryDepense, Amount: 3000, Description: "carburant", CreatedBy: "dispatcher-1"})
	if err != nil {
		t.Fatalf("AppendEntry depense: %v", err)
	}

	if l.RunningBalance != 62000 || l.Status != domain.LedgerStatusActive {
		t.Fatalf("balance=%d status=%s, want 62000 active", l.RunningBalance, l.Status)
	}
	if len(l.Entries) != 2 || l.Version != 3 {
		t.Fatalf("entries=%d version=%d, want 2 and 3", len(l.Entries), l.Version)
	}
}

func TestService_ScenarioB_FirstOpeningWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	morning := time.Date(2024, 5, 1, 6, 0, 0, 0, wat)
	night := time.Date(2024, 5, 1, 23, 30, 0, 0, wat)

	first, err := f.svc.GetOrCreateDailyLedger(ctx, driverX, morning, 50000, "dispatcher-1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.svc.GetOrCreateDailyLedger(ctx, driverX, night, 90000, "dispatcher-2")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.ID != first.ID || second.OpeningAmount != 50000 {
		t.Fatalf("second=%s/%d, want %s/50000", second.ID, second.OpeningAmount, first.ID)
	}
	if !first.Day.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, wat)) {
		t.Fatalf("day=%v, want local midnight", first.Day)
	}
	if got := f.events.Kinds(); len(got) != 1 || got[0] != events.KindLedgerCreated {
		t.Fatalf("events=%v, want one ledger.created", got)
	}
}

func TestService_GetOrCreate_ExistingLedgerIgnoresBadOpening(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	first := f.open(t, 50000)

	again, err := f.svc.GetOrCreateDailyLedger(ctx, driverX, f.clock.Now(), -1, "dispatcher-2")
	if err != nil {
		t.Fatalf("GetOrCreateDailyLedger(-1) on existing ledger err=%v", err)
	}
	if again.ID != first.ID || again.OpeningAmount != 50000 || again.RunningBalance != 50000 {
		t.Fatalf("again=%s/%d/%d, want %s/50000/50000", again.ID, again.OpeningAmount, again.RunningBalance, first.ID)
	}
}

func TestService_GetOrCreate_DayIsCutInBusinessLocation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// 23:30 UTC on April 30 is 00:30 on May 1 in WAT.
	l, err := f.svc.GetOrCreateDailyLedger(context.Background(), driverX, time.Date(2024, 4, 30, 23, 30, 0, 0, time.UTC), 0, "")
	if err != nil {
		t.Fatalf("GetOrCreateDailyLedger: %v", err)
	}
	if !l.Day.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, wat)) {
		t.Fatalf("day=%v, want 2024-05-01 WAT", l.Day)
	}
	if l.CreatedBy != domain.ActorSystem {
		t.Fatalf("createdBy=%q, want system", l.CreatedBy)
	}
}

func TestService_GetOrCreate_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		name    string
		driver  domain.DriverRef
		opening domain.Amount
	}{
		{"negative opening", driverX, -1},
		{"empty driver id", domain.DriverRef{Source: domain.SourcePrimary}, 0},
		{"unknown source", domain.DriverRef{ID: "d", Source: "legacy"}, 0},
	}
	for _, tc := range cases {
		if _, err := f.svc.GetOrCreateDailyLedger(ctx, tc.driver, f.clock.Now(), tc.opening, ""); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: err=%v, want validation", tc.name, err)
		}
	}
}

func TestService_ScenarioE_AppendAfterCloseFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	l := f.open(t, 50000)
	if _, err := f.svc.AppendEntry(ctx, l.ID, ledger.NewEntry{Type: domain.EntryRecette, Amount: 1000, Description: "course"}); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	closed, err := f.svc.Close(ctx, l.ID, "fin de service", "dispatcher-1")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = f.svc.AppendEntry(ctx, l.ID, ledger.NewEntry{Type: domain.EntryRecette, Amount: 5000, Description: "course tardive"})
	if !apperr.Is(err, apperr.KindLedgerClosed) {
		t.Fatalf("AppendEntry after close err=%v, want LEDGER_CLOSED", err)
	}
	after, err := f.svc.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.RunningBalance != closed.RunningBalance || len(after.Entries) != len(closed.Entries) || after.Version != closed.Version {
		t.Fatalf("state changed after rejected append: before=%+v after=%+v", closed, after)
	}

	if _, err := f.svc.Close(ctx, l.ID, "", "dispatcher-1"); !apperr.Is(err, apperr.KindAlreadyClosed) {
		t.Fatalf("second Close err=%v, want ALREADY_CLOSED", err)
	}
	if _, err := f.svc.UpdateOpeningAmount(ctx, l.ID, 1, "dispatcher-1"); !apperr.Is(err, apperr.KindLedgerClosed) {
		t.Fatalf("UpdateOpeningAmount after close err=%v, want LEDGER_CLOSED", err)
	}
}

func TestService_BalanceInvariantHoldsAfterEveryAppend(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	l := f.open(t, 20000)

	types := []domain.EntryType{domain.EntryRecette, domain.EntryDepense, domain.EntryCommission, domain.EntryRemboursement}
	rng := rand.New(rand.NewSource(42))
	var recettes, remboursements, depenses, commissions domain.Amount
	for i := 0; i < 200; i++ {
		typ := types[rng.Intn(len(types))]
		amt := domain.Amount(1 + rng.Intn(10000))
		var err error
		l, err = f.svc.AppendEntry(ctx, l.ID, ledger.NewEntry{Type: typ, Amount: amt, Description: fmt.Sprintf("op %d", i)})
		if err != nil {
			t.Fatalf("AppendEntry %d: %v", i, err)
		}
		switch typ {
		case domain.EntryRecette:
			recettes += amt
		case domain.EntryRemboursement:
			remboursements += amt
		case domain.EntryDepense:
			depenses += amt
		case domain.EntryCommission:
			commissions += amt
		}
		want := 20000 + recettes + remboursements - depenses - commissions
		if l.RunningBalance != want || l.Drift() != 0 {
			t.Fatalf("after %d appends balance=%d drift=%d, want %d", i+1, l.RunningBalance, l.Drift(), want)
		}
	}
}

func TestService_AppendEntry_LinkedTripReplayIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	l := f.open(t, 0)

	in := ledger.NewEntry{Type: domain.EntryRecette, Amount: 25000, Description: "course", LinkedTripID: tripID("trip-9")}
	first, err := f.svc.AppendEntry(ctx, l.ID, in)
	if err != nil {
		t.Fatalf("first AppendEntry: %v", err)
	}
	second, err := f.svc.AppendEntry(ctx, l.ID, in)
	if err != nil {
		t.Fatalf("replayed AppendEntry: %v", err)
	}
	if second.RunningBalance != 25000 || len(second.Entries) != 1 || second.Version != first.Version {
		t.Fatalf("replay applied: balance=%d entries=%d version=%d", second.RunningBalance, len(second.Entries), second.Version)
	}

	// Same trip, different type is a distinct movement.
	third, err := f.svc.AppendEntry(ctx, l.ID, ledger.NewEntry{Type: domain.EntryCommission, Amount: 2500, Description: "commission", LinkedTripID: tripID("trip-9")})
	if err != nil {
		t.Fatalf("commission AppendEntry: %v", err)
	}
	if third.RunningBalance != 22500 || len(third.Entries) != 2 {
		t.Fatalf("commission: balance=%d entries=%d", third.RunningBalance, len(third.Entries))
	}

	appended := 0
	for _, k := range f.events.Kinds() {
		if k == events.KindEntryAppended {
			appended++
		}
	}
	if appended != 2 {
		t.Fatalf("entry_appended events=%d, want 2", appended)
	}
}

func TestService_AppendEntry_ConcurrentCallbacksApplyOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	l := f.open(t, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every trip callback fires twice.
			trip := tripID(fmt.Sprintf("trip-%d", i%10))
			if _, err := f.svc.AppendEntry(ctx, l.ID, ledger.NewEntry{Type: domain.EntryRecette, Amount: 100, Description: "course", LinkedTripID: trip}); err != nil {
				t.Errorf("AppendEntry: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Entries) != 10 || got.RunningBalance != 2000 {
		t.Fatalf("entries=%d balance=%d, want 10 and 2000", len(got.Entries), got.RunningBalance)
	}
}

func TestService_GetOrCreate_ConcurrentCallsShareOneLedger(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	ids := make(chan domain.LedgerID, 16)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := f.svc.GetOrCreateDailyLedger(ctx, driverX, f.clock.Now(), domain.Amount(1000*i), "dispatcher")
			if err != nil {
				t.Errorf("GetOrCreateDailyLedger: %v", err)
				return
			}
			ids <- l.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	var first domain.LedgerID
	for id := range ids {
		if first == "" {
			first = id
		}
		if id != first {
			t.Fatalf("got ledgers %s and %s for the same driver and day", first, id)
		}
	}
	all, err := f.repo.List(ctx, portledgerrepo.Filter{Drivers: []domain.DriverRef{driverX}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ledgers=%d, want 1", len(all))
	}
}

// racingRepo makes the first GetByDriverDay miss so the create collides with a ledger that already exists.
type racingRepo struct {
	*memledgerrepo.Repo
	mu     sync.Mutex
	missed bool
}

func (r *racingRepo) GetByDriverDay(ctx context.Context, driver domain.DriverRef, day time.Time) (domain.DailyLedger, error) {
	r.mu.Lock()
	miss := !r.missed
	r.missed = true
	r.mu.Unlock()
	if miss {
		return domain.DailyLedger{}, portledgerrepo.ErrNotFound
	}
	return r.Repo.GetByDriverDay(ctx, driver, day)
}

func TestService_GetOrCreate_LosingRaceRereads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := memledgerrepo.NewRepo()
	clk := memclock.New(time.Date(2024, 5, 1, 8, 0, 0, 0, wat), wat)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, wat)
	winner, _ := domain.NewDailyLedger("winner", driverX, day, 50000, "dispatcher-1", clk.Now())
	if err := inner.Create(ctx, winner); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := ledger.NewService(&racingRepo{Repo: inner}, nil, clk, nil)
	got, err := svc.GetOrCreateDailyLedger(ctx, driverX, clk.Now(), 90000, "dispatcher-2")
	if err != nil {
		t.Fatalf("GetOrCreateDailyLedger: %v", err)
	}
	if got.ID != "winner" || got.OpeningAmount != 50000 {
		t.Fatalf("got %s/%d, want winner/50000", got.ID, got.OpeningAmount)
	}
}

func TestService_AppendEntry_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	l := f.open(t, 0)

	bad := []ledger.NewEntry{
		{Type: domain.EntryRecette, Amount: 0, Description: "zero"},
		{Type: domain.EntryRecette, Amount: -5, Description: "negative"},
		{Type: "bonus", Amount: 5, Description: "unknown type"},
		{Type: domain.EntryDepense, Amount: 5, Description: "   "},
	}
	for _, in := range bad {
		if _, err := f.svc.AppendEntry(ctx, l.ID, in); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("AppendEntry(%+v) err=%v, want validation", in, err)
		}
	}
	if _, err := f.svc.AppendEntry(ctx, "missing", ledger.NewEntry{Type: domain.EntryRecette, Amount: 5, Description: "x"}); !apperr.Is(err, apperr.KindLedgerNotFound) {
		t.Fatalf("AppendEntry unknown ledger err=%v, want LEDGER_NOT_FOUND", err)
	}
	got, _ := f.svc.Get(ctx, l.ID)
	if len(got.Entries) != 0 || got.Version != 1 {
		t.Fatalf("rejected entries changed ledger: %+v", got)
	}
}

func TestService_UpdateOpeningAmount_ShiftsBalanceByDelta(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	l := f.open(t, 50000)
	if _, err := f.svc.AppendEntry(ctx, l.ID, ledger.NewEntry{Type: domain.EntryDepense, Amount: 4000, Description: "péage"}); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}

	got, err := f.svc.UpdateOpeningAmount(ctx, l.ID, 45000, "dispatcher-1")
	if err != nil {
		t.Fatalf("UpdateOpeningAmount: %v", err)
	}
	if got.OpeningAmount != 45000 || got.RunningBalance != 41000 || got.Drift() != 0 {
		t.Fatalf("opening=%d balance=%d drift=%d", got.OpeningAmount, got.RunningBalance, got.Drift())
	}

	same, err := f.svc.UpdateOpeningAmount(ctx, l.ID, 45000, "dispatcher-1")
	if err != nil {
		t.Fatalf("UpdateOpeningAmount no-op: %v", err)
	}
	if same.Version != got.Version {
		t.Fatalf("no-op correction bumped version %d -> %d", got.Version, same.Version)
	}
	if _, err := f.svc.UpdateOpeningAmount(ctx, l.ID, -1, "dispatcher-1"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("negative opening err=%v, want validation", err)
	}

	var corrected []events.Event
	for _, e := range f.events.Events() {
		if e.Kind == events.KindOpeningCorrected {
			corrected = append(corrected, e)
		}
	}
	if len(corrected) != 1 || corrected[0].Amount != -5000 {
		t.Fatalf("opening_corrected events=%+v, want one with delta -5000", corrected)
	}
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.events.Err = errors.New("broker down")
	l := f.open(t, 100)

	got, err := f.svc.AppendEntry(context.Background(), l.ID, ledger.NewEntry{Type: domain.EntryRecette, Amount: 50, Description: "course"})
	if err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	if got.RunningBalance != 150 {
		t.Fatalf("balance=%d, want 150", got.RunningBalance)
	}
}

func TestService_GetForDriverDay_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.GetForDriverDay(context.Background(), driverX, f.clock.Now())
	if !apperr.Is(err, apperr.KindLedgerNotFound) {
		t.Fatalf("GetForDriverDay err=%v, want LEDGER_NOT_FOUND", err)
	}
}

func TestService_CloseActiveForDay_ClosesOnlyThatDaysActiveLedgers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, wat)

	a, _ := f.svc.GetOrCreateDailyLedger(ctx, domain.DriverRef{ID: "a", Source: domain.SourcePrimary}, day, 100, "")
	b, _ := f.svc.GetOrCreateDailyLedger(ctx, domain.DriverRef{ID: "b", Source: domain.SourceSpecialized}, day, 200, "")
	c, _ := f.svc.GetOrCreateDailyLedger(ctx, domain.DriverRef{ID: "c", Source: domain.SourceSpecialized}, day, 300, "")
	next, _ := f.svc.GetOrCreateDailyLedger(ctx, domain.DriverRef{ID: "a", Source: domain.SourcePrimary}, day.AddDate(0, 0, 1), 0, "")
	if _, err := f.svc.Close(ctx, c.ID, "manuel", "dispatcher-1"); err != nil {
		t.Fatalf("Close c: %v", err)
	}

	rep, err := f.svc.CloseActiveForDay(ctx, day.Add(15*time.Hour), "auto")
	if err != nil {
		t.Fatalf("CloseActiveForDay: %v", err)
	}
	if rep.Processed != 2 || rep.Closed != 2 || rep.Failed != 0 {
		t.Fatalf("report=%+v, want 2 processed 2 closed", rep)
	}
	for _, id := range []domain.LedgerID{a.ID, b.ID} {
		got, _ := f.svc.Get(ctx, id)
		if !got.IsClosed() || got.Notes == nil || *got.Notes != "auto" {
			t.Fatalf("ledger %s not auto-closed: %+v", id, got)
		}
	}
	if got, _ := f.svc.Get(ctx, next.ID); got.IsClosed() {
		t.Fatalf("next day's ledger was closed")
	}

	again, err := f.svc.CloseActiveForDay(ctx, day, "auto")
	if err != nil {
		t.Fatalf("second CloseActiveForDay: %v", err)
	}
	if again.Processed != 0 || again.Closed != 0 {
		t.Fatalf("second run report=%+v, want nothing to do", again)
	}
}
