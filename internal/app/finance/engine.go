// Package finance computes period-scoped cash positions for drivers and the fleet.
//
// Every figure is read-only and derived from three collaborators: the ledger store, the trip store
// and the expense store. A failed collaborator query fails the whole computation; no figure is ever
// computed from a partial read.
package finance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/app/apperr"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/clock"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/expensestore"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/tripstore"
)

// DriverLister lists every canonical driver of the fleet.
type DriverLister interface {
	ListCanonicalDrivers(ctx context.Context) ([]domain.CanonicalDriver, error)
}

type Options struct {
	// CollaboratorTimeout bounds each store query. Zero disables the bound.
	CollaboratorTimeout time.Duration
	// DiagnosticWindow is how far back the out-of-period pass looks when a period has no trips.
	// Zero disables the pass.
	DiagnosticWindow time.Duration
	// FleetParallelism caps concurrent per-driver computations.
	FleetParallelism int
}

func DefaultOptions() Options {
	return Options{
		CollaboratorTimeout: 10 * time.Second,
		DiagnosticWindow:    30 * 24 * time.Hour,
		FleetParallelism:    8,
	}
}

type Engine struct {
	ledgers  ledgerrepo.Repository
	trips    tripstore.Store
	expenses expensestore.Store
	drivers  DriverLister
	clock    clock.Clock
	log      *slog.Logger
	opts     Options
}

func NewEngine(ledgers ledgerrepo.Repository, trips tripstore.Store, expenses expensestore.Store, drivers DriverLister, clk clock.Clock, log *slog.Logger, opts Options) *Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.FleetParallelism <= 0 {
		opts.FleetParallelism = 1
	}
	return &Engine{
		ledgers:  ledgers,
		trips:    trips,
		expenses: expenses,
		drivers:  drivers,
		clock:    clk,
		log:      log,
		opts:     opts,
	}
}

// Period returns the inclusive bounds covering the business-local calendar days from..to.
func (e *Engine) Period(from, to time.Time) (time.Time, time.Time) {
	loc := e.clock.Location()
	return domain.NormalizeDay(from, loc), domain.EndOfDay(domain.NormalizeDay(to, loc))
}

func validatePeriod(start, end time.Time) error {
	details := map[string]any{}
	if start.IsZero() {
		details["from"] = "required"
	}
	if end.IsZero() {
		details["to"] = "required"
	}
	if len(details) == 0 && end.Before(start) {
		details["to"] = "must not be before from"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid period", details)
	}
	return nil
}

func validationNoIDs() error {
	return apperr.Validation("invalid driver", map[string]any{"driver": "carries no identity id"})
}

// query runs fn under the collaborator timeout and classifies its failure.
func (e *Engine) query(ctx context.Context, collaborator string, fn func(ctx context.Context) error) error {
	if e.opts.CollaboratorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.CollaboratorTimeout)
		defer cancel()
	}
	err := fn(ctx)
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	e.log.WarnContext(ctx, "aggregation_collaborator_failed", "collaborator", collaborator, logging.Err(err))
	return &apperr.Error{
		Kind:    apperr.KindCollaboratorUnavailable,
		Message: collaborator + " query failed",
		Details: map[string]any{"collaborator": collaborator},
		Err:     err,
	}
}

func (e *Engine) listDrivers(ctx context.Context) ([]domain.CanonicalDriver, error) {
	var out []domain.CanonicalDriver
	err := e.query(ctx, "driver directory", func(ctx context.Context) error {
		ds, err := e.drivers.ListCanonicalDrivers(ctx)
		out = ds
		return err
	})
	return out, err
}

func (e *Engine) listLedgers(ctx context.Context, f ledgerrepo.Filter) ([]domain.DailyLedger, error) {
	var out []domain.DailyLedger
	err := e.query(ctx, "ledger store", func(ctx context.Context) error {
		ls, err := e.ledgers.List(ctx, f)
		out = ls
		return err
	})
	return dedupLedgers(out), err
}

func (e *Engine) listTrips(ctx context.Context, q tripstore.Query) ([]domain.TripPaymentEvent, error) {
	var out []domain.TripPaymentEvent
	err := e.query(ctx, "trip store", func(ctx context.Context) error {
		ts, err := e.trips.List(ctx, q)
		out = ts
		return err
	})
	return out, err
}

func (e *Engine) listExpenses(ctx context.Context, q expensestore.Query) ([]domain.ExpenseRecord, error) {
	var out []domain.ExpenseRecord
	err := e.query(ctx, "expense store", func(ctx context.Context) error {
		xs, err := e.expenses.List(ctx, q)
		out = xs
		return err
	})
	return out, err
}

func dedupLedgers(ls []domain.DailyLedger) []domain.DailyLedger {
	seen := make(map[domain.LedgerID]struct{}, len(ls))
	out := make([]domain.DailyLedger, 0, len(ls))
	for _, l := range ls {
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out
}

// settledTrips keeps completed trips settled inside [start, end], one per trip id.
// Trips without a transaction timestamp are not settled and never count.
func settledTrips(ts []domain.TripPaymentEvent, start, end time.Time) []domain.TripPaymentEvent {
	seen := make(map[domain.TripID]struct{}, len(ts))
	out := make([]domain.TripPaymentEvent, 0, len(ts))
	for _, t := range ts {
		if t.Status != domain.TripStatusCompleted {
			continue
		}
		at, ok := t.SettledAt()
		if !ok || at.Before(start) || at.After(end) {
			continue
		}
		if _, dup := seen[t.TripID]; dup {
			continue
		}
		seen[t.TripID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// uniqueExpenses keeps one record per stable expense reference, inside [start, end].
func uniqueExpenses(xs []domain.ExpenseRecord, start, end time.Time) []domain.ExpenseRecord {
	seen := make(map[string]struct{}, len(xs))
	out := make([]domain.ExpenseRecord, 0, len(xs))
	for _, x := range xs {
		if x.Date.Before(start) || x.Date.After(end) {
			continue
		}
		k := x.DedupKey()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, x)
	}
	return out
}
