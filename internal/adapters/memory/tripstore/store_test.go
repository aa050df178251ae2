package tripstore

import (
	"context"
	"testing"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/tripstore"
)

func settled(id domain.TripID, driver domain.DriverID, at time.Time, amount domain.Amount) domain.TripPaymentEvent {
	return domain.TripPaymentEvent{
		TripID:               id,
		DriverID:             driver,
		Status:               domain.TripStatusCompleted,
		ScheduledStart:       at.Add(-time.Hour),
		BilledAmount:         amount,
		PlannedPaymentMethod: domain.PaymentCash,
		Payment: &domain.TripPayment{
			AmountCollected:        amount,
			EffectivePaymentMethod: domain.PaymentCash,
			TransactionTimestamp:   &at,
		},
	}
}

func TestStore_List_BySettledAtInclusiveBounds(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	end := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	s := NewStore(
		settled("t-start", "d1", day, 100),
		settled("t-end", "d1", end, 200),
		settled("t-next", "d1", end.Add(time.Nanosecond), 300),
		domain.TripPaymentEvent{TripID: "t-unsettled", DriverID: "d1", Status: domain.TripStatusCompleted, ScheduledStart: day},
	)

	got, err := s.List(context.Background(), tripstore.Query{DriverIDs: []domain.DriverID{"d1"}, From: day, To: end, By: tripstore.BySettledAt})
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if len(got) != 2 || got[0].TripID != "t-start" || got[1].TripID != "t-end" {
		t.Fatalf("List()=%+v, want [t-start t-end]", got)
	}
}

func TestStore_List_ByScheduledStartIncludesUnsettled(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s := NewStore(domain.TripPaymentEvent{TripID: "t1", DriverID: "d1", Status: domain.TripStatusPending, ScheduledStart: day.Add(8 * time.Hour)})

	got, err := s.List(context.Background(), tripstore.Query{From: day, To: day.AddDate(0, 0, 1), By: tripstore.ByScheduledStart})
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() len=%d, want 1", len(got))
	}
}
