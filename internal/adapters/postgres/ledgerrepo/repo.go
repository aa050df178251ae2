package ledgerrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/ledgerrepo"
)

const driverDayConstraint = "daily_ledgers_driver_day_unique"

// Repo is a Postgres implementation of ledgerrepo.Repository.
//
// Days are stored as calendar dates and read back as midnight in loc.
type Repo struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewRepo(pool *pgxpool.Pool, loc *time.Location) *Repo {
	if loc == nil {
		loc = time.UTC
	}
	return &Repo{pool: pool, loc: loc}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const ledgerColumns = `
	id, driver_id, driver_source, day, opening_amount, running_balance,
	status, notes, created_by, version, created_at, updated_at, closed_at
`

func (r *Repo) Create(ctx context.Context, l domain.DailyLedger) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(l.ID))
	if err != nil {
		// treat a malformed ID as invalid
		return ledgerrepo.ErrDuplicate
	}
	version := l.Version
	if version == 0 {
		version = 1
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO daily_ledgers (`+ledgerColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`,
			id,
			string(l.Driver.ID),
			string(l.Driver.Source),
			dateOf(l.Day),
			int64(l.OpeningAmount),
			int64(l.RunningBalance),
			string(l.Status),
			l.Notes,
			string(l.CreatedBy),
			version,
			l.CreatedAt.UTC(),
			l.UpdatedAt.UTC(),
			utcPtr(l.ClosedAt),
		)
		if err != nil {
			if postgres.IsUniqueViolation(err, driverDayConstraint) || postgres.IsUniqueViolation(err, "daily_ledgers_pkey") {
				return ledgerrepo.ErrDuplicate
			}
			return err
		}
		return insertEntries(ctx, tx, id, 0, l.Entries)
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.LedgerID) (domain.DailyLedger, error) {
	if r.pool == nil {
		return domain.DailyLedger{}, errors.New("nil postgres pool")
	}
	lid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.DailyLedger{}, ledgerrepo.ErrNotFound
	}
	return r.load(ctx, r.pool, `WHERE id = $1`, lid)
}

func (r *Repo) GetByDriverDay(ctx context.Context, driver domain.DriverRef, day time.Time) (domain.DailyLedger, error) {
	if r.pool == nil {
		return domain.DailyLedger{}, errors.New("nil postgres pool")
	}
	return r.load(ctx, r.pool, `WHERE driver_id = $1 AND driver_source = $2 AND day = $3`,
		string(driver.ID), string(driver.Source), dateOf(day))
}

func (r *Repo) List(ctx context.Context, f ledgerrepo.Filter) ([]domain.DailyLedger, error) {
	if r.pool == nil {
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
	if len(f.Drivers) > 0 {
		ids := make([]string, 0, len(f.Drivers))
		sources := make([]string, 0, len(f.Drivers))
		for _, d := range f.Drivers {
			ids = append(ids, string(d.ID))
			sources = append(sources, string(d.Source))
		}
		where = append(where, fmt.Sprintf(
			"(driver_id, driver_source) IN (SELECT * FROM unnest(%s::text[], %s::text[]))", arg(ids), arg(sources)))
	}
	if !f.From.IsZero() {
		where = append(where, "day >= "+arg(dateOf(f.From)))
	}
	if !f.To.IsZero() {
		where = append(where, "day <= "+arg(dateOf(f.To)))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}

	q := `SELECT ` + ledgerColumns + ` FROM daily_ledgers`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY day ASC, driver_id ASC, driver_source ASC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	ledgers, err := pgx.CollectRows(rows, r.scanLedger)
	if err != nil {
		return nil, err
	}
	if len(ledgers) == 0 {
		return []domain.DailyLedger{}, nil
	}

	ids := make([]uuid.UUID, 0, len(ledgers))
	index := make(map[domain.LedgerID]int, len(ledgers))
	for i, l := range ledgers {
		ids = append(ids, uuid.MustParse(string(l.ID)))
		index[l.ID] = i
	}
	entries, err := loadEntries(ctx, r.pool, `WHERE ledger_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for lid, es := range entries {
		ledgers[index[lid]].Entries = es
	}
	return ledgers, nil
}

func (r *Repo) Update(ctx context.Context, id domain.LedgerID, fn ledgerrepo.MutateFunc) (domain.DailyLedger, error) {
	if r.pool == nil {
		return domain.DailyLedger{}, errors.New("nil postgres pool")
	}
	lid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.DailyLedger{}, ledgerrepo.ErrNotFound
	}

	var out domain.DailyLedger
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cur, err := r.load(ctx, tx, `WHERE id = $1 FOR UPDATE`, lid)
		if err != nil {
			return err
		}
		next := cur.Clone()
		if err := fn(&next); err != nil {
			if errors.Is(err, ledgerrepo.ErrNoChange) {
				out = cur
				return nil
			}
			return err
		}
		if len(next.Entries) < len(cur.Entries) {
			return errors.New("ledger entries are append-only")
		}
		next.ID = cur.ID
		next.Driver = cur.Driver
		next.Day = cur.Day
		next.CreatedAt = cur.CreatedAt
		next.CreatedBy = cur.CreatedBy
		next.Version = cur.Version + 1

		_, err = tx.Exec(ctx, `
			UPDATE daily_ledgers
			SET opening_amount = $2,
			    running_balance = $3,
			    status = $4,
			    notes = $5,
			    version = $6,
			    updated_at = $7,
			    closed_at = $8
			WHERE id = $1
		`,
			lid,
			int64(next.OpeningAmount),
			int64(next.RunningBalance),
			string(next.Status),
			next.Notes,
			next.Version,
			next.UpdatedAt.UTC(),
			utcPtr(next.ClosedAt),
		)
		if err != nil {
			return err
		}
		if err := insertEntries(ctx, tx, lid, len(cur.Entries), next.Entries[len(cur.Entries):]); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return domain.DailyLedger{}, err
	}
	return out, nil
}

// load reads one ledger and its entries. cond is appended to the ledger SELECT.
func (r *Repo) load(ctx context.Context, q querier, cond string, args ...any) (domain.DailyLedger, error) {
	rows, err := q.Query(ctx, `SELECT `+ledgerColumns+` FROM daily_ledgers `+cond, args...)
	if err != nil {
		return domain.DailyLedger{}, err
	}
	l, err := pgx.CollectExactlyOneRow(rows, r.scanLedger)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DailyLedger{}, ledgerrepo.ErrNotFound
		}
		return domain.DailyLedger{}, err
	}
	entries, err := loadEntries(ctx, q, `WHERE ledger_id = $1`, uuid.MustParse(string(l.ID)))
	if err != nil {
		return domain.DailyLedger{}, err
	}
	if es, ok := entries[l.ID]; ok {
		l.Entries = es
	}
	return l, nil
}

func (r *Repo) scanLedger(row pgx.CollectableRow) (domain.DailyLedger, error) {
	var (
		l        domain.DailyLedger
		id       uuid.UUID
		driverID string
		source   string
		day      time.Time
		opening  int64
		balance  int64
		status   string
		createdB string
	)
	if err := row.Scan(
		&id, &driverID, &source, &day, &opening, &balance,
		&status, &l.Notes, &createdB, &l.Version, &l.CreatedAt, &l.UpdatedAt, &l.ClosedAt,
	); err != nil {
		return domain.DailyLedger{}, err
	}
	l.ID = domain.LedgerID(id.String())
	l.Driver = domain.DriverRef{ID: domain.DriverID(driverID), Source: domain.IdentitySource(source)}
	l.Day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.loc)
	l.OpeningAmount = domain.Amount(opening)
	l.RunningBalance = domain.Amount(balance)
	l.Status = domain.LedgerStatus(status)
	l.CreatedBy = domain.ActorID(createdB)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	if l.ClosedAt != nil {
		c := l.ClosedAt.UTC()
		l.ClosedAt = &c
	}
	l.Entries = []domain.LedgerEntry{}
	return l, nil
}

func loadEntries(ctx context.Context, q querier, cond string, args ...any) (map[domain.LedgerID][]domain.LedgerEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT ledger_id, id, type, amount, description, linked_trip_id, linked_expense_id, ts, created_by
		FROM ledger_entries
		`+cond+`
		ORDER BY ledger_id, seq
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.LedgerID][]domain.LedgerEntry)
	for rows.Next() {
		var (
			lid       uuid.UUID
			id        string
			typ       string
			amount    int64
			e         domain.LedgerEntry
			tripID    *string
			expenseID *string
			createdBy string
		)
		if err := rows.Scan(&lid, &id, &typ, &amount, &e.Description, &tripID, &expenseID, &e.Timestamp, &createdBy); err != nil {
			return nil, err
		}
		e.ID = domain.EntryID(id)
		e.Type = domain.EntryType(typ)
		e.Amount = domain.Amount(amount)
		e.Timestamp = e.Timestamp.UTC()
		e.CreatedBy = domain.ActorID(createdBy)
		if tripID != nil {
			v := domain.TripID(*tripID)
			e.LinkedTripID = &v
		}
		if expenseID != nil {
			v := domain.ExpenseID(*expenseID)
			e.LinkedExpenseID = &v
		}
		key := domain.LedgerID(lid.String())
		out[key] = append(out[key], e)
	}
	return out, rows.Err()
}

func insertEntries(ctx context.Context, tx pgx.Tx, ledgerID uuid.UUID, firstSeq int, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, e := range entries {
		var tripID, expenseID *string
		if e.LinkedTripID != nil {
			v := string(*e.LinkedTripID)
			tripID = &v
		}
		if e.LinkedExpenseID != nil {
			v := string(*e.LinkedExpenseID)
			expenseID = &v
		}
		batch.Queue(`
			INSERT INTO ledger_entries (
				ledger_id, seq, id, type, amount, description, linked_trip_id, linked_expense_id, ts, created_by
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			ledgerID,
			firstSeq+i,
			string(e.ID),
			string(e.Type),
			int64(e.Amount),
			e.Description,
			tripID,
			expenseID,
			e.Timestamp.UTC(),
			string(e.CreatedBy),
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// dateOf returns the calendar date of t, in t's own location, as a UTC midnight.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
