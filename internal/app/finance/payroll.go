package finance

import (
	"context"
	"strings"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/expensestore"
)

// Expense categories that make up driver pay.
const (
	CategorySalary  = "Salaire"
	CategoryBonus   = "Bonus"
	CategoryAdvance = "Avance"
)

// Payroll sums salary, bonus and advance expenses per canonical driver over [start, end].
// Every driver gets a line; drivers with no payment in the period are pending.
func (e *Engine) Payroll(ctx context.Context, start, end time.Time) (domain.Payroll, error) {
	if err := validatePeriod(start, end); err != nil {
		return domain.Payroll{}, err
	}
	drivers, err := e.listDrivers(ctx)
	if err != nil {
		return domain.Payroll{}, err
	}
	expenses, err := e.listExpenses(ctx, expensestore.Query{
		Categories: []string{CategorySalary, CategoryBonus, CategoryAdvance},
		From:       start,
		To:         end,
	})
	if err != nil {
		return domain.Payroll{}, err
	}

	out := domain.Payroll{From: start, To: end, Lines: make([]domain.PayrollLine, len(drivers))}
	owner := make(map[domain.DriverID]int, 2*len(drivers))
	for i, d := range drivers {
		out.Lines[i] = domain.PayrollLine{Driver: d, Status: domain.PayrollPending}
		for _, id := range d.IDs() {
			if _, taken := owner[id]; !taken {
				owner[id] = i
			}
		}
	}

	unmatched := 0
	for _, x := range uniqueExpenses(expenses, start, end) {
		i, ok := owner[x.DriverID]
		if !ok {
			unmatched++
			continue
		}
		line := &out.Lines[i]
		switch payKind(x.Category) {
		case CategorySalary:
			line.Salary += x.Amount
		case CategoryBonus:
			line.Bonus += x.Amount
		case CategoryAdvance:
			line.Advances += x.Amount
		default:
			continue
		}
		line.Total += x.Amount
		line.Payments++
		if line.LastPaidAt == nil || x.Date.After(*line.LastPaidAt) {
			at := x.Date
			line.LastPaidAt = &at
		}
		line.Status = domain.PayrollPaid
	}
	if unmatched > 0 {
		e.log.InfoContext(ctx, "payroll_unmatched_expenses", "count", unmatched)
	}

	for _, l := range out.Lines {
		if l.Status == domain.PayrollPaid {
			out.PaidDrivers++
		} else {
			out.PendingDrivers++
		}
		out.TotalSalary += l.Salary
		out.TotalBonus += l.Bonus
		out.TotalAdvances += l.Advances
		out.TotalPaid += l.Total
	}
	return out, nil
}

func payKind(category string) string {
	c := strings.TrimSpace(category)
	for _, k := range []string{CategorySalary, CategoryBonus, CategoryAdvance} {
		if strings.EqualFold(c, k) {
			return k
		}
	}
	return ""
}
