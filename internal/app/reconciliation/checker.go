// Package reconciliation recomputes cached ledger balances from their entry logs and corrects drift.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/app/apperr"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/clock"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/events"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

// Result describes one reconciliation.
type Result struct {
	LedgerID   domain.LedgerID
	Reconciled bool
	// Delta is Expected minus Previous; zero when the ledger was already consistent.
	Delta    domain.Amount
	Previous domain.Amount
	Expected domain.Amount

	// Drift is set when a correction was made. It is a report, not a failure.
	Drift *apperr.Error
}

// DayReport summarizes ReconcileDay.
type DayReport struct {
	Day       time.Time
	Checked   int
	Corrected int
	Results   []Result
}

type Checker struct {
	ledgers   ledgerrepo.Repository
	publisher events.Publisher
	clock     clock.Clock
	log       *slog.Logger
}

func NewChecker(ledgers ledgerrepo.Repository, publisher events.Publisher, clk clock.Clock, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Checker{ledgers: ledgers, publisher: publisher, clock: clk, log: log}
}

// Reconcile recomputes the ledger's balance from its entries and overwrites the stored balance if
// they differ. A second call on the same ledger reports Reconciled=false.
func (c *Checker) Reconcile(ctx context.Context, id domain.LedgerID) (Result, error) {
	now := c.clock.Now()
	res := Result{LedgerID: id}

	l, err := c.ledgers.Update(ctx, id, func(l *domain.DailyLedger) error {
		res.Reconciled = false
		res.Expected = l.ExpectedBalance()
		res.Previous = l.RunningBalance
		if l.Drift() == 0 {
			return ledgerrepo.ErrNoChange
		}
		l.RepairBalance(now)
		res.Reconciled = true
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ledgerrepo.ErrNotFound):
			return Result{}, &apperr.Error{Kind: apperr.KindLedgerNotFound, Message: "ledger not found", Details: map[string]any{"ledgerId": string(id)}, Err: err}
		case errors.Is(err, ledgerrepo.ErrConflict):
			return Result{}, apperr.Wrap(apperr.KindConflict, "ledger is being modified, retry", err)
		default:
			return Result{}, err
		}
	}
	if !res.Reconciled {
		return res, nil
	}

	res.Delta = res.Expected - res.Previous
	res.Drift = &apperr.Error{
		Kind:    apperr.KindReconciliationDrift,
		Message: fmt.Sprintf("running balance drifted by %d", int64(res.Delta)),
		Details: map[string]any{
			"ledgerId": string(id),
			"previous": int64(res.Previous),
			"expected": int64(res.Expected),
		},
	}
	c.log.WarnContext(ctx, "ledger_balance_reconciled",
		"ledger_id", id,
		"driver", l.Driver.String(),
		"previous", int64(res.Previous),
		"expected", int64(res.Expected),
		"delta", int64(res.Delta),
	)
	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, events.Event{
			Kind:     events.KindBalanceReconciled,
			LedgerID: l.ID,
			Driver:   l.Driver,
			Day:      l.Day,
			Amount:   res.Delta,
			Balance:  l.RunningBalance,
			Version:  l.Version,
			At:       now,
			Actor:    domain.ActorSystem,
		}); err != nil {
			c.log.WarnContext(ctx, "ledger_event_publish_failed", "kind", string(events.KindBalanceReconciled), "ledger_id", id, logging.Err(err))
		}
	}
	return res, nil
}

// ReconcileDay reconciles every ledger of the business-local day containing day, active or closed.
func (c *Checker) ReconcileDay(ctx context.Context, day time.Time) (DayReport, error) {
	day = domain.NormalizeDay(day, c.clock.Location())
	rep := DayReport{Day: day, Results: []Result{}}

	ls, err := c.ledgers.List(ctx, ledgerrepo.Filter{From: day, To: day})
	if err != nil {
		return rep, err
	}
	for _, l := range ls {
		res, err := c.Reconcile(ctx, l.ID)
		if err != nil {
			return rep, fmt.Errorf("reconcile ledger %s: %w", l.ID, err)
		}
		rep.Checked++
		if res.Reconciled {
			rep.Corrected++
		}
		rep.Results = append(rep.Results, res)
	}
	c.log.InfoContext(ctx, "ledger_day_reconciled", "day", day.Format(time.DateOnly), "checked", rep.Checked, "corrected", rep.Corrected)
	return rep, nil
}
