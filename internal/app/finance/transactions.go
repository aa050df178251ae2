package finance

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Flora-Ebah/kairos-backend/internal/app/apperr"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/expensestore"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/tripstore"
)

const tripRevenueCategory = "Course"

// TransactionFilter narrows ConsolidatedTransactions. Zero values match everything.
type TransactionFilter struct {
	// Kind is "", revenue or expense.
	Kind domain.TransactionKind
	// Category matches case-insensitively.
	Category string
}

// ConsolidatedTransactions merges settled trip revenue and expenses over [start, end] into one
// journal, newest first.
func (e *Engine) ConsolidatedTransactions(ctx context.Context, start, end time.Time, f TransactionFilter) ([]domain.ConsolidatedTransaction, error) {
	if err := validatePeriod(start, end); err != nil {
		return nil, err
	}
	if f.Kind != "" && f.Kind != domain.TransactionRevenue && f.Kind != domain.TransactionExpense {
		return nil, apperr.Validation("invalid filter", map[string]any{"type": "must be all, revenue or expense"})
	}
	wantRevenue := f.Kind == "" || f.Kind == domain.TransactionRevenue
	wantExpense := f.Kind == "" || f.Kind == domain.TransactionExpense

	var (
		trips    []domain.TripPaymentEvent
		expenses []domain.ExpenseRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	if wantRevenue {
		g.Go(func() error {
			var err error
			trips, err = e.listTrips(gctx, tripstore.Query{Status: domain.TripStatusCompleted, From: start, To: end, By: tripstore.BySettledAt})
			return err
		})
	}
	if wantExpense {
		g.Go(func() error {
			var err error
			expenses, err = e.listExpenses(gctx, expensestore.Query{From: start, To: end})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	category := strings.TrimSpace(f.Category)
	matches := func(c string) bool {
		return category == "" || strings.EqualFold(strings.TrimSpace(c), category)
	}

	out := make([]domain.ConsolidatedTransaction, 0)
	if !matches(tripRevenueCategory) {
		trips = nil
	}
	for _, t := range settledTrips(trips, start, end) {
		at, _ := t.SettledAt()
		amount, _ := t.Collected()
		ref := t.Reference
		if ref == "" {
			ref = string(t.TripID)
		}
		out = append(out, domain.ConsolidatedTransaction{
			Kind:        domain.TransactionRevenue,
			Reference:   ref,
			Date:        at,
			Category:    tripRevenueCategory,
			Description: "Course " + ref,
			Amount:      amount,
			DriverID:    t.DriverID,
			Method:      t.EffectiveMethod(),
		})
	}
	for _, x := range uniqueExpenses(expenses, start, end) {
		if !matches(x.Category) {
			continue
		}
		ref := x.Reference
		if ref == "" {
			ref = string(x.ID)
		}
		out = append(out, domain.ConsolidatedTransaction{
			Kind:        domain.TransactionExpense,
			Reference:   ref,
			Date:        x.Date,
			Category:    categoryLabel(x.Category),
			Description: x.Description,
			Amount:      x.Amount,
			DriverID:    x.DriverID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Reference < out[j].Reference
	})
	return out, nil
}
