package finance_test

import (
	"context"
	"testing"
	"time"

	memclock "github.com/Flora-Ebah/kairos-backend/internal/adapters/memory/clock"
	"github.com/Flora-Ebah/kairos-backend/internal/app/finance"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

func TestEngine_ComputeFleetFinancials(t *testing.T) {
	t.Parallel()

	f := newFixture(t, defaultOpts())
	ctx := context.Background()

	lAwa, _ := domain.NewDailyLedger("l-awa", domain.DriverRef{ID: "c1", Source: domain.SourceSpecialized}, day2, 50000, "d", day2)
	lIbra, _ := domain.NewDailyLedger("l-ibra", domain.DriverRef{ID: "u2", Source: domain.SourcePrimary}, day2, 20000, "d", day2)
	if err := lIbra.Close("", day2.Add(20*time.Hour)); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, l := range []domain.DailyLedger{lAwa, lIbra} {
		if err := f.ledgers.Create(ctx, l); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	settled := ptr(day2.Add(10 * time.Hour))
	mm := cashTrip("t3", "u2", day2.Add(7*time.Hour), ptr(day2.Add(8*time.Hour)), 20000, 20000)
	mm.Payment.EffectivePaymentMethod = domain.PaymentMobileMoney
	f.trips.Add(
		cashTrip("t1", "u1", day2.Add(9*time.Hour), settled, 30000, 30000),
		cashTrip("t1", "c1", day2.Add(9*time.Hour), settled, 30000, 30000),
		cashTrip("t2", "u2", day2.Add(9*time.Hour), ptr(day2.Add(9*time.Hour)), 10000, 10000),
		mm,
	)
	f.expenses.Add(
		domain.ExpenseRecord{ID: "x1", Reference: "EXP-1", Category: "Carburant", Amount: 6000, Date: day2.Add(time.Hour), DriverID: "u1"},
		domain.ExpenseRecord{ID: "x2", Reference: "EXP-1", Category: "Carburant", Amount: 6000, Date: day2.Add(time.Hour), DriverID: "c1"},
		domain.ExpenseRecord{ID: "x3", Reference: "EXP-2", Category: "Maintenance", Amount: 9000, Date: day2.Add(2 * time.Hour), DriverID: "u2"},
		domain.ExpenseRecord{ID: "x4", Reference: "EXP-3", Category: "Carburant", Amount: 5000, Date: day2.Add(3 * time.Hour), DriverID: "u2"},
	)

	got, err := f.engine.ComputeFleetFinancials(ctx, day2, endOf(day2))
	if err != nil {
		t.Fatalf("ComputeFleetFinancials: %v", err)
	}
	if len(got.Drivers) != 2 {
		t.Fatalf("drivers=%d, want 2", len(got.Drivers))
	}
	if got.TripsCompleted != 3 || got.TotalRevenue != 60000 {
		t.Fatalf("trips=%d revenue=%d, want 3/60000", got.TripsCompleted, got.TotalRevenue)
	}
	if got.TotalExpenses != 20000 || got.NetMargin != 40000 || got.MarginPercent != 67 {
		t.Fatalf("expenses=%d margin=%d pct=%d", got.TotalExpenses, got.NetMargin, got.MarginPercent)
	}
	if len(got.RevenueByMethod) != 2 || got.RevenueByMethod[0].Method != domain.PaymentCash || got.RevenueByMethod[0].Amount != 40000 || got.RevenueByMethod[0].Percent != 67 {
		t.Fatalf("revenueByMethod=%+v", got.RevenueByMethod)
	}
	if len(got.ExpensesByCategory) != 2 || got.ExpensesByCategory[0].Category != "Carburant" || got.ExpensesByCategory[0].Amount != 11000 {
		t.Fatalf("expensesByCategory=%+v", got.ExpensesByCategory)
	}
	if got.TotalOpening != 70000 || got.ActiveTreasury != 50000 || got.LedgerDays != 2 {
		t.Fatalf("opening=%d treasury=%d ledgerDays=%d", got.TotalOpening, got.ActiveTreasury, got.LedgerDays)
	}
	if got.UrgentDrivers != 0 {
		t.Fatalf("urgentDrivers=%d, want 0", got.UrgentDrivers)
	}
}

func TestEngine_ComputeFleetFinancials_NoDrivers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, defaultOpts())
	e := finance.NewEngine(f.ledgers, f.trips, f.expenses, emptyLister{}, memclock.New(day2, time.UTC), nil, defaultOpts())
	got, err := e.ComputeFleetFinancials(context.Background(), day2, endOf(day2))
	if err != nil {
		t.Fatalf("ComputeFleetFinancials: %v", err)
	}
	if len(got.Drivers) != 0 || got.MarginPercent != 0 || got.TotalRevenue != 0 {
		t.Fatalf("got=%+v", got)
	}
}

type emptyLister struct{}

func (emptyLister) ListCanonicalDrivers(context.Context) ([]domain.CanonicalDriver, error) {
	return nil, nil
}
