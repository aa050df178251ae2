package ledger

import (
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

// NewEntry is the input to AppendEntry.
type NewEntry struct {
	Type        domain.EntryType
	Amount      domain.Amount
	Description string

	LinkedTripID    *domain.TripID
	LinkedExpenseID *domain.ExpenseID

	CreatedBy domain.ActorID
}

// CloseDetail records the outcome for one ledger in a CloseActiveForDay run.
type CloseDetail struct {
	LedgerID domain.LedgerID
	Driver   domain.DriverRef
	Balance  domain.Amount
	Closed   bool
	Error    string
}

// CloseReport summarizes a CloseActiveForDay run.
type CloseReport struct {
	Day       time.Time
	Processed int
	Closed    int
	Failed    int
	Details   []CloseDetail
}
