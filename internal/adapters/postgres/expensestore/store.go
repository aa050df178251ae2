package expensestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/expensestore"
)

const expenseColumns = `id, reference, category, description, amount, date, driver_id`

// Store is a Postgres implementation of expensestore.Store over the expenses table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert inserts or replaces an expense.
func (s *Store) Upsert(ctx context.Context, e domain.ExpenseRecord) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			reference = EXCLUDED.reference,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			amount = EXCLUDED.amount,
			date = EXCLUDED.date,
			driver_id = EXCLUDED.driver_id
	`, string(e.ID), e.Reference, e.Category, e.Description, int64(e.Amount), e.Date.UTC(), string(e.DriverID))
	return err
}

func (s *Store) List(ctx context.Context, q expensestore.Query) ([]domain.ExpenseRecord, error) {
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
	if len(q.DriverIDs) > 0 {
		ids := make([]string, 0, len(q.DriverIDs))
		for _, id := range q.DriverIDs {
			ids = append(ids, string(id))
		}
		where = append(where, "driver_id = ANY("+arg(ids)+")")
	}
	if len(q.Categories) > 0 {
		cats := make([]string, 0, len(q.Categories))
		for _, c := range q.Categories {
			cats = append(cats, strings.ToLower(strings.TrimSpace(c)))
		}
		where = append(where, "lower(btrim(category)) = ANY("+arg(cats)+")")
	}
	if !q.From.IsZero() {
		where = append(where, "date >= "+arg(q.From.UTC()))
	}
	if !q.To.IsZero() {
		where = append(where, "date <= "+arg(q.To.UTC()))
	}

	sql := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY date ASC, id ASC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ExpenseRecord, error) {
		var (
			e        domain.ExpenseRecord
			id       string
			amount   int64
			driverID string
		)
		err := row.Scan(&id, &e.Reference, &e.Category, &e.Description, &amount, &e.Date, &driverID)
		e.ID = domain.ExpenseID(id)
		e.Amount = domain.Amount(amount)
		e.Date = e.Date.UTC()
		e.DriverID = domain.DriverID(driverID)
		return e, err
	})
}
