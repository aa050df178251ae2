package expensestore

import (
	"context"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

// Query selects expenses by date, inclusive. Empty DriverIDs or Categories match everything.
// Categories match case-insensitively.
type Query struct {
	DriverIDs  []domain.DriverID
	Categories []string
	From       time.Time
	To         time.Time
}

// Store is the read side of the expense subsystem, normalized to ExpenseRecord.
type Store interface {
	List(ctx context.Context, q Query) ([]domain.ExpenseRecord, error)
}
