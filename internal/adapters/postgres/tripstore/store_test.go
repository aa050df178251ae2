package tripstore

import (
	"context"
	"testing"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres/testutil"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/tripstore"
)

func TestStore_ListFiltersBySettlementAndScheduledStart(t *testing.T) {
	pool := testutil.OpenMigratedPool(t, "trips")
	ctx := context.Background()
	s := NewStore(pool)

	settled := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	trips := []domain.TripPaymentEvent{
		{
			TripID:               "t-1",
			Reference:            "RES-1",
			DriverID:             "u1",
			DriverSource:         domain.SourcePrimary,
			Status:               domain.TripStatusCompleted,
			ScheduledStart:       settled.Add(-2 * time.Hour),
			BilledAmount:         25000,
			PlannedPaymentMethod: domain.PaymentCash,
			Payment:              &domain.TripPayment{AmountCollected: 25000, EffectivePaymentMethod: domain.PaymentCash, TransactionTimestamp: &settled},
		},
		{
			TripID:               "t-2",
			DriverID:             "u1",
			Status:               domain.TripStatusCompleted,
			ScheduledStart:       settled.AddDate(0, 0, -10),
			BilledAmount:         8000,
			PlannedPaymentMethod: domain.PaymentCash,
		},
		{
			TripID:               "t-3",
			DriverID:             "c1",
			DriverSource:         domain.SourceSpecialized,
			Status:               domain.TripStatusCanceled,
			ScheduledStart:       settled,
			BilledAmount:         5000,
			PlannedPaymentMethod: domain.PaymentCard,
			Payment:              &domain.TripPayment{EffectivePaymentMethod: domain.PaymentCard, TransactionTimestamp: &settled},
		},
	}
	for _, tr := range trips {
		if err := s.Upsert(ctx, tr); err != nil {
			t.Fatalf("Upsert %s: %v", tr.TripID, err)
		}
	}

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	got, err := s.List(ctx, tripstore.Query{
		DriverIDs: []domain.DriverID{"u1", "c1"},
		Status:    domain.TripStatusCompleted,
		From:      day,
		To:        domain.EndOfDay(day),
		By:        tripstore.BySettledAt,
	})
	if err != nil {
		t.Fatalf("List settled: %v", err)
	}
	if len(got) != 1 || got[0].TripID != "t-1" {
		t.Fatalf("List settled=%+v", got)
	}
	if got[0].Payment == nil || got[0].Payment.AmountCollected != 25000 || !got[0].Payment.TransactionTimestamp.Equal(settled) || got[0].DriverSource != domain.SourcePrimary {
		t.Fatalf("trip not round-tripped: %+v", got[0])
	}

	window, err := s.List(ctx, tripstore.Query{
		DriverIDs: []domain.DriverID{"u1"},
		From:      day.AddDate(0, 0, -30),
		To:        domain.EndOfDay(day),
		By:        tripstore.ByScheduledStart,
	})
	if err != nil {
		t.Fatalf("List scheduled: %v", err)
	}
	if len(window) != 2 || window[0].TripID != "t-2" || window[0].Payment != nil {
		t.Fatalf("List scheduled=%+v", window)
	}
}
