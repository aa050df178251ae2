package finance

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/expensestore"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/tripstore"
)

const diagnosticLabel = "out-of-period"

// driverFigures is a snapshot plus the records it was computed from, for fleet roll-ups.
type driverFigures struct {
	snapshot domain.DriverFinancialSnapshot
	ledgers  []domain.DailyLedger
	trips    []domain.TripPaymentEvent
	expenses []domain.ExpenseRecord
}

// ComputeDriverFinancials returns the driver's cash position over [start, end].
//
// Trips count in the period their payment settled in, not the period they were scheduled in.
// Records filed under either of the driver's ids are merged and counted once.
func (e *Engine) ComputeDriverFinancials(ctx context.Context, driver domain.CanonicalDriver, start, end time.Time) (domain.DriverFinancialSnapshot, error) {
	if err := validatePeriod(start, end); err != nil {
		return domain.DriverFinancialSnapshot{}, err
	}
	f, err := e.driverFigures(ctx, driver, start, end)
	if err != nil {
		e.log.WarnContext(ctx, "driver_financials_failed", "driver", driver.Key(), logging.Err(err))
		return domain.DriverFinancialSnapshot{}, err
	}
	return f.snapshot, nil
}

func (e *Engine) driverFigures(ctx context.Context, driver domain.CanonicalDriver, start, end time.Time) (driverFigures, error) {
	ids := driver.IDs()
	refs := driver.Refs()
	if len(ids) == 0 {
		return driverFigures{}, validationNoIDs()
	}

	var (
		ledgers  []domain.DailyLedger
		trips    []domain.TripPaymentEvent
		expenses []domain.ExpenseRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ledgers, err = e.listLedgers(gctx, ledgerrepo.Filter{
			Drivers: refs,
			From:    domain.NormalizeDay(start, e.clock.Location()),
			To:      end,
		})
		return err
	})
	g.Go(func() error {
		var err error
		trips, err = e.listTrips(gctx, tripstore.Query{
			DriverIDs: ids,
			Status:    domain.TripStatusCompleted,
			From:      start,
			To:        end,
			By:        tripstore.BySettledAt,
		})
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = e.listExpenses(gctx, expensestore.Query{DriverIDs: ids, From: start, To: end})
		return err
	})
	if err := g.Wait(); err != nil {
		return driverFigures{}, err
	}

	trips = onlyDrivers(settledTrips(trips, start, end), driver)
	expenses = uniqueExpenses(expenses, start, end)

	s := domain.DriverFinancialSnapshot{
		Driver:             driver,
		PeriodStart:        start,
		PeriodEnd:          end,
		OpeningWasRecorded: len(ledgers) > 0,
		MethodChanges:      []domain.TripID{},
	}
	for _, l := range ledgers {
		s.OpeningAmount += l.OpeningAmount
	}
	for _, t := range trips {
		s.TripsCompleted++
		amount, fallback := t.Collected()
		if t.EffectiveMethod() == domain.PaymentCash {
			s.CashCollected += amount
			if fallback {
				s.FallbackTrips++
			}
		} else {
			s.CreditCollected += amount
		}
		if t.MethodChanged() {
			s.MethodChanges = append(s.MethodChanges, t.TripID)
		}
	}
	for _, x := range expenses {
		s.ExpensesTotal += x.Amount
		s.Charges.Add(x.Category, x.Amount)
	}
	s.CashBalance = s.OpeningAmount + s.CashCollected - s.ExpensesTotal
	s.Status = domain.CashStatusPositive
	if s.CashBalance.IsNegative() {
		s.Status = domain.CashStatusUrgent
	}

	if s.TripsCompleted == 0 && e.opts.DiagnosticWindow > 0 {
		d, err := e.diagnostic(ctx, driver, start, end)
		if err != nil {
			return driverFigures{}, err
		}
		s.Diagnostic = d
	}

	if s.FallbackTrips > 0 {
		e.log.InfoContext(ctx, "driver_financials_billed_fallback", "driver", driver.Key(), "trips", s.FallbackTrips)
	}
	return driverFigures{snapshot: s, ledgers: ledgers, trips: trips, expenses: expenses}, nil
}

// diagnostic looks at completed trips scheduled over the trailing window ending at end, settled or not.
// Its figures are reported apart and are never part of the period totals.
func (e *Engine) diagnostic(ctx context.Context, driver domain.CanonicalDriver, start, end time.Time) (*domain.DiagnosticWindow, error) {
	from := start.Add(-e.opts.DiagnosticWindow)
	ts, err := e.listTrips(ctx, tripstore.Query{
		DriverIDs: driver.IDs(),
		Status:    domain.TripStatusCompleted,
		From:      from,
		To:        end,
		By:        tripstore.ByScheduledStart,
	})
	if err != nil {
		return nil, err
	}

	d := &domain.DiagnosticWindow{Label: diagnosticLabel, From: from, To: end}
	seen := make(map[domain.TripID]struct{}, len(ts))
	for _, t := range onlyDrivers(ts, driver) {
		if _, dup := seen[t.TripID]; dup {
			continue
		}
		seen[t.TripID] = struct{}{}
		d.TripsFound++
		if t.EffectiveMethod() == domain.PaymentCash {
			amount, _ := t.Collected()
			d.CashSeen += amount
		}
	}
	if d.TripsFound > 0 {
		e.log.InfoContext(ctx, "driver_financials_diagnostic_window", "driver", driver.Key(), "trips_found", d.TripsFound, "from", from.Format(time.DateOnly))
	}
	return d, nil
}

func onlyDrivers(ts []domain.TripPaymentEvent, driver domain.CanonicalDriver) []domain.TripPaymentEvent {
	out := make([]domain.TripPaymentEvent, 0, len(ts))
	for _, t := range ts {
		if driver.Has(t.DriverID) {
			out = append(out, t)
		}
	}
	return out
}
