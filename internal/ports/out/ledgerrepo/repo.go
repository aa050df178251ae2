package ledgerrepo

import (
	"context"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

// MutateFunc changes a ledger in place. It runs against a private copy; returning an error
// discards the copy.
type MutateFunc func(l *domain.DailyLedger) error

// Filter selects ledgers for listing. Zero values match everything.
type Filter struct {
	Drivers []domain.DriverRef
	// From and To bound Day, inclusive.
	From   time.Time
	To     time.Time
	Status domain.LedgerStatus
}

// Repository persists daily ledgers, one per (driver, day).
//
// Result ordering expectations:
// - List returns ledgers ordered by Day ascending, then driver id, to keep behavior deterministic.
type Repository interface {
	// Create inserts a new ledger. It returns ErrDuplicate if a ledger already exists for the
	// same (driver, day) or the same ID.
	Create(ctx context.Context, l domain.DailyLedger) error

	GetByID(ctx context.Context, id domain.LedgerID) (domain.DailyLedger, error)
	GetByDriverDay(ctx context.Context, driver domain.DriverRef, day time.Time) (domain.DailyLedger, error)

	List(ctx context.Context, f Filter) ([]domain.DailyLedger, error)

	// Update applies fn to the current state of the ledger and commits the result atomically
	// with a Version bump. No other writer can interleave between the read fn sees and the write.
	// If fn returns ErrNoChange the current state is returned with a nil error and nothing is written;
	// any other error from fn is returned unchanged.
	Update(ctx context.Context, id domain.LedgerID, fn MutateFunc) (domain.DailyLedger, error)
}
