package tripstore

import (
	"context"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

// DateField selects which timestamp a Query range applies to.
type DateField string

const (
	// BySettledAt ranges over payment.transactionTimestamp; unsettled trips never match.
	BySettledAt DateField = "settled_at"
	// ByScheduledStart ranges over the trip's scheduled start.
	ByScheduledStart DateField = "scheduled_start"
)

// Query selects trips. Empty DriverIDs matches every driver; empty Status matches every status.
// From and To are inclusive.
type Query struct {
	DriverIDs []domain.DriverID
	Status    domain.TripStatus
	From      time.Time
	To        time.Time
	By        DateField
}

// Store is the read side of the trip subsystem, normalized to TripPaymentEvent.
type Store interface {
	List(ctx context.Context, q Query) ([]domain.TripPaymentEvent, error)
}
