package finance

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
)

// ComputeFleetFinancials aggregates every canonical driver's snapshot over [start, end] and adds
// fleet-wide breakdowns. Trips and expenses seen through more than one driver count once.
func (e *Engine) ComputeFleetFinancials(ctx context.Context, start, end time.Time) (domain.FleetFinancials, error) {
	if err := validatePeriod(start, end); err != nil {
		return domain.FleetFinancials{}, err
	}
	drivers, err := e.listDrivers(ctx)
	if err != nil {
		return domain.FleetFinancials{}, err
	}

	figures := make([]driverFigures, len(drivers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.FleetParallelism)
	for i, d := range drivers {
		i, d := i, d
		g.Go(func() error {
			f, err := e.driverFigures(gctx, d, start, end)
			if err != nil {
				return err
			}
			figures[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.WarnContext(ctx, "fleet_financials_failed", "drivers", len(drivers), logging.Err(err))
		return domain.FleetFinancials{}, err
	}

	out := rollUp(figures, start, end)
	e.log.InfoContext(ctx, "fleet_financials_computed",
		"drivers", len(out.Drivers),
		"trips", out.TripsCompleted,
		"revenue", int64(out.TotalRevenue),
		"expenses", int64(out.TotalExpenses),
	)
	return out, nil
}

func rollUp(figures []driverFigures, start, end time.Time) domain.FleetFinancials {
	out := domain.FleetFinancials{
		PeriodStart: start,
		PeriodEnd:   end,
		Drivers:     make([]domain.DriverFinancialSnapshot, 0, len(figures)),
	}

	seenTrips := make(map[domain.TripID]struct{})
	seenExpenses := make(map[string]struct{})
	seenLedgers := make(map[domain.LedgerID]struct{})
	byMethod := make(map[domain.PaymentMethod]domain.Amount)
	byCategory := make(map[string]domain.Amount)

	for _, f := range figures {
		out.Drivers = append(out.Drivers, f.snapshot)
		if f.snapshot.Status == domain.CashStatusUrgent {
			out.UrgentDrivers++
		}
		for _, l := range f.ledgers {
			if _, dup := seenLedgers[l.ID]; dup {
				continue
			}
			seenLedgers[l.ID] = struct{}{}
			out.LedgerDays++
			out.TotalOpening += l.OpeningAmount
			if !l.IsClosed() {
				out.ActiveTreasury += l.RunningBalance
			}
		}
		for _, t := range f.trips {
			if _, dup := seenTrips[t.TripID]; dup {
				continue
			}
			seenTrips[t.TripID] = struct{}{}
			amount, _ := t.Collected()
			out.TripsCompleted++
			out.TotalRevenue += amount
			byMethod[t.EffectiveMethod()] += amount
		}
		for _, x := range f.expenses {
			k := x.DedupKey()
			if _, dup := seenExpenses[k]; dup {
				continue
			}
			seenExpenses[k] = struct{}{}
			out.TotalExpenses += x.Amount
			byCategory[categoryLabel(x.Category)] += x.Amount
		}
	}

	out.RevenueByMethod = make([]domain.MethodTotal, 0, len(byMethod))
	for m, a := range byMethod {
		out.RevenueByMethod = append(out.RevenueByMethod, domain.MethodTotal{Method: m, Amount: a, Percent: domain.Percent(a, out.TotalRevenue)})
	}
	sort.Slice(out.RevenueByMethod, func(i, j int) bool {
		a, b := out.RevenueByMethod[i], out.RevenueByMethod[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Method < b.Method
	})

	out.ExpensesByCategory = make([]domain.CategoryTotal, 0, len(byCategory))
	for c, a := range byCategory {
		out.ExpensesByCategory = append(out.ExpensesByCategory, domain.CategoryTotal{Category: c, Amount: a, Percent: domain.Percent(a, out.TotalExpenses)})
	}
	sort.Slice(out.ExpensesByCategory, func(i, j int) bool {
		a, b := out.ExpensesByCategory[i], out.ExpensesByCategory[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Category < b.Category
	})

	out.NetMargin = out.TotalRevenue - out.TotalExpenses
	out.MarginPercent = domain.Percent(out.NetMargin, out.TotalRevenue)
	return out
}

func categoryLabel(c string) string {
	if c = domain.NormalizeHumanName(c); c != "" {
		return c
	}
	return "Autre"
}
