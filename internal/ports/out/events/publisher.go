package events

import (
	"context"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

type Kind string

const (
	KindLedgerCreated     Kind = "ledger.created"
	KindEntryAppended     Kind = "ledger.entry_appended"
	KindLedgerClosed      Kind = "ledger.closed"
	KindOpeningCorrected  Kind = "ledger.opening_corrected"
	KindBalanceReconciled Kind = "ledger.reconciled"
)

// Event is a ledger state change announced to other subsystems after it has been committed.
type Event struct {
	Kind     Kind
	LedgerID domain.LedgerID
	Driver   domain.DriverRef
	Day      time.Time

	// Amount is the entry amount, opening delta or reconciliation delta, depending on Kind.
	Amount  domain.Amount
	Balance domain.Amount
	Version int64

	At    time.Time
	Actor domain.ActorID
}

// Publisher delivers events. Publishing is best-effort: a failure never rolls back the ledger write.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
