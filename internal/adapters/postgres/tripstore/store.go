package tripstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/tripstore"
)

const tripColumns = `
	id, reference, driver_id, driver_source, status, scheduled_start, billed_amount, planned_payment_method,
	has_payment, amount_collected, effective_payment_method, transaction_ts, payment_reference
`

// Store is a Postgres implementation of tripstore.Store over the trips table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert inserts or replaces a trip.
func (s *Store) Upsert(ctx context.Context, t domain.TripPaymentEvent) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	var (
		hasPayment bool
		collected  int64
		method     string
		ts         *time.Time
		ref        string
	)
	if p := t.Payment; p != nil {
		hasPayment = true
		collected = int64(p.AmountCollected)
		method = string(p.EffectivePaymentMethod)
		if p.TransactionTimestamp != nil {
			v := p.TransactionTimestamp.UTC()
			ts = &v
		}
		ref = p.PaymentReference
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trips (`+tripColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			reference = EXCLUDED.reference,
			driver_id = EXCLUDED.driver_id,
			driver_source = EXCLUDED.driver_source,
			status = EXCLUDED.status,
			scheduled_start = EXCLUDED.scheduled_start,
			billed_amount = EXCLUDED.billed_amount,
			planned_payment_method = EXCLUDED.planned_payment_method,
			has_payment = EXCLUDED.has_payment,
			amount_collected = EXCLUDED.amount_collected,
			effective_payment_method = EXCLUDED.effective_payment_method,
			transaction_ts = EXCLUDED.transaction_ts,
			payment_reference = EXCLUDED.payment_reference
	`,
		string(t.TripID), t.Reference, string(t.DriverID), string(t.DriverSource), string(t.Status),
		t.ScheduledStart.UTC(), int64(t.BilledAmount), string(t.PlannedPaymentMethod),
		hasPayment, collected, method, ts, ref,
	)
	return err
}

func (s *Store) List(ctx context.Context, q tripstore.Query) ([]domain.TripPaymentEvent, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	col := "transaction_ts"
	if q.By == tripstore.ByScheduledStart {
		col = "scheduled_start"
	} else {
		where = append(where, "transaction_ts IS NOT NULL")
	}
	if len(q.DriverIDs) > 0 {
		ids := make([]string, 0, len(q.DriverIDs))
		for _, id := range q.DriverIDs {
			ids = append(ids, string(id))
		}
		where = append(where, "driver_id = ANY("+arg(ids)+")")
	}
	if q.Status != "" {
		where = append(where, "status = "+arg(string(q.Status)))
	}
	if !q.From.IsZero() {
		where = append(where, col+" >= "+arg(q.From.UTC()))
	}
	if !q.To.IsZero() {
		where = append(where, col+" <= "+arg(q.To.UTC()))
	}

	sql := `SELECT ` + tripColumns + ` FROM trips`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY " + col + " ASC, id ASC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTrip)
}

func scanTrip(row pgx.CollectableRow) (domain.TripPaymentEvent, error) {
	var (
		t          domain.TripPaymentEvent
		id         string
		driverID   string
		source     string
		status     string
		billed     int64
		planned    string
		hasPayment bool
		collected  int64
		method     string
		ts         *time.Time
		ref        string
	)
	if err := row.Scan(
		&id, &t.Reference, &driverID, &source, &status, &t.ScheduledStart, &billed, &planned,
		&hasPayment, &collected, &method, &ts, &ref,
	); err != nil {
		return domain.TripPaymentEvent{}, err
	}
	t.TripID = domain.TripID(id)
	t.DriverID = domain.DriverID(driverID)
	t.DriverSource = domain.IdentitySource(source)
	t.Status = domain.TripStatus(status)
	t.ScheduledStart = t.ScheduledStart.UTC()
	t.BilledAmount = domain.Amount(billed)
	t.PlannedPaymentMethod = domain.PaymentMethod(planned)
	if hasPayment {
		p := &domain.TripPayment{
			AmountCollected:        domain.Amount(collected),
			EffectivePaymentMethod: domain.PaymentMethod(method),
			PaymentReference:       ref,
		}
		if ts != nil {
			v := ts.UTC()
			p.TransactionTimestamp = &v
		}
		t.Payment = p
	}
	return t, nil
}
