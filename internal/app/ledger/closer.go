package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/idempotency"
)

const defaultCloseNotes = "Clôture automatique de fin de journée"

// DailyCloser closes the previous day's still-active ledgers once a day at a fixed local time.
// Re-running it for a day that is already closed does nothing.
type DailyCloser struct {
	svc *Service
	log *slog.Logger

	// At is the offset from local midnight at which the run fires.
	At    time.Duration
	Notes string

	// Idempotency records older than IdempotencyRetention are pruned on each run when set.
	Idempotency          idempotency.Store
	IdempotencyRetention time.Duration

	after func(time.Duration) <-chan time.Time
}

func NewDailyCloser(svc *Service, at time.Duration, log *slog.Logger) *DailyCloser {
	if log == nil {
		log = svc.log
	}
	return &DailyCloser{
		svc:   svc,
		log:   log,
		At:    at,
		Notes: defaultCloseNotes,
		after: time.After,
	}
}

// Run blocks until ctx is done, firing RunOnce at every scheduled time.
func (c *DailyCloser) Run(ctx context.Context) error {
	for {
		now := c.svc.clock.Now()
		next := c.Next(now)
		c.log.InfoContext(ctx, "daily_close_scheduled", "next_run", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.after(next.Sub(now)):
		}

		if _, err := c.RunOnce(ctx, c.svc.clock.Now()); err != nil {
			c.log.ErrorContext(ctx, "daily_close_failed", logging.Err(err))
		}
	}
}

// RunOnce closes the active ledgers of the day before now.
func (c *DailyCloser) RunOnce(ctx context.Context, now time.Time) (CloseReport, error) {
	yesterday := c.svc.Day(now).AddDate(0, 0, -1)
	rep, err := c.svc.CloseActiveForDay(ctx, yesterday, c.Notes)
	if err != nil {
		return rep, err
	}
	if c.Idempotency != nil && c.IdempotencyRetention > 0 {
		n, err := c.Idempotency.Prune(ctx, now.Add(-c.IdempotencyRetention))
		if err != nil {
			c.log.WarnContext(ctx, "idempotency_prune_failed", logging.Err(err))
		} else if n > 0 {
			c.log.InfoContext(ctx, "idempotency_pruned", "records", n)
		}
	}
	return rep, nil
}

// Next returns the first scheduled time strictly after now.
func (c *DailyCloser) Next(now time.Time) time.Time {
	day := c.svc.Day(now)
	next := day.Add(c.At)
	if !next.After(now) {
		next = day.AddDate(0, 0, 1).Add(c.At)
	}
	return next
}
