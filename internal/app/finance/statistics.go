package finance

import (
	"context"
	"sort"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

// DriverStatistics summarizes the driver's ledgers for the calendar days from..to.
// Ledgers kept under both of the driver's ids on the same day are merged into one day.
func (e *Engine) DriverStatistics(ctx context.Context, driver domain.CanonicalDriver, from, to time.Time) (domain.DriverStatistics, error) {
	start, end := e.Period(from, to)
	if err := validatePeriod(start, end); err != nil {
		return domain.DriverStatistics{}, err
	}
	if len(driver.IDs()) == 0 {
		return domain.DriverStatistics{}, validationNoIDs()
	}

	ledgers, err := e.listLedgers(ctx, ledgerrepo.Filter{Drivers: driver.Refs(), From: start, To: end})
	if err != nil {
		return domain.DriverStatistics{}, err
	}

	byDay := make(map[int64]*domain.DayStatistics)
	for _, l := range ledgers {
		k := l.Day.Unix()
		d, ok := byDay[k]
		if !ok {
			d = &domain.DayStatistics{Day: l.Day, Status: l.Status}
			byDay[k] = d
		}
		t := l.Totals()
		d.Opening += l.OpeningAmount
		d.Balance += l.RunningBalance
		d.Totals.Recettes += t.Recettes
		d.Totals.Depenses += t.Depenses
		d.Totals.Commissions += t.Commissions
		d.Totals.Remboursements += t.Remboursements
		d.Totals.Count += t.Count
		d.EntriesApplied += len(l.Entries)
		if !l.IsClosed() {
			d.Status = domain.LedgerStatusActive
		}
	}

	out := domain.DriverStatistics{
		Driver:    driver,
		From:      start,
		To:        end,
		Evolution: make([]domain.DayStatistics, 0, len(byDay)),
	}
	for _, d := range byDay {
		out.Evolution = append(out.Evolution, *d)
	}
	sort.Slice(out.Evolution, func(i, j int) bool { return out.Evolution[i].Day.Before(out.Evolution[j].Day) })

	for _, d := range out.Evolution {
		out.Opening += d.Opening
		out.Balance += d.Balance
		out.Totals.Recettes += d.Totals.Recettes
		out.Totals.Depenses += d.Totals.Depenses
		out.Totals.Commissions += d.Totals.Commissions
		out.Totals.Remboursements += d.Totals.Remboursements
		out.Totals.Count += d.Totals.Count
	}
	out.Days = len(out.Evolution)
	if out.Days > 0 {
		n := domain.Amount(out.Days)
		out.Averages = domain.DailyAverages{
			Opening:  out.Opening / n,
			Recettes: out.Totals.Recettes / n,
			Depenses: out.Totals.Depenses / n,
			Balance:  out.Balance / n,
		}
	}
	return out, nil
}
