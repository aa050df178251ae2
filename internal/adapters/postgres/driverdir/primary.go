package driverdir

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
)

// Whitespace-collapsed, case-folded name, matching domain.NameKey.
const (
	lastNameKey  = `lower(regexp_replace(btrim(last_name), '\s+', ' ', 'g'))`
	firstNameKey = `lower(regexp_replace(btrim(first_name), '\s+', ' ', 'g'))`
)

const primaryColumns = `id, email, last_name, first_name, phone, role, is_active`

// Drivers first, then lowest id.
const preferDrivers = `ORDER BY (role <> 'driver'), id LIMIT 1`

// PrimaryStore is a Postgres implementation of driverdir.PrimaryStore over primary_users.
type PrimaryStore struct {
	pool *pgxpool.Pool
}

func NewPrimaryStore(pool *pgxpool.Pool) *PrimaryStore {
	return &PrimaryStore{pool: pool}
}

// Upsert inserts or replaces a record.
func (s *PrimaryStore) Upsert(ctx context.Context, r driverdir.PrimaryRecord) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO primary_users (`+primaryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			last_name = EXCLUDED.last_name,
			first_name = EXCLUDED.first_name,
			phone = EXCLUDED.phone,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active
	`, string(r.ID), r.Email, r.LastName, r.FirstName, r.Phone, r.Role, r.IsActive)
	return err
}

func (s *PrimaryStore) GetByID(ctx context.Context, id domain.DriverID) (driverdir.PrimaryRecord, error) {
	return s.one(ctx, `WHERE id = $1`, string(id))
}

func (s *PrimaryStore) FindByEmail(ctx context.Context, email string) (driverdir.PrimaryRecord, error) {
	want := domain.NormalizeEmail(email)
	if want == "" {
		return driverdir.PrimaryRecord{}, driverdir.ErrNotFound
	}
	return s.one(ctx, `WHERE lower(btrim(email)) = $1 `+preferDrivers, want)
}

func (s *PrimaryStore) FindByName(ctx context.Context, lastName, firstName string) (driverdir.PrimaryRecord, error) {
	last, first := domain.NameKey(lastName), domain.NameKey(firstName)
	if last == "" || first == "" {
		return driverdir.PrimaryRecord{}, driverdir.ErrNotFound
	}
	return s.one(ctx, `WHERE `+lastNameKey+` = $1 AND `+firstNameKey+` = $2 `+preferDrivers, last, first)
}

func (s *PrimaryStore) ListDrivers(ctx context.Context) ([]driverdir.PrimaryRecord, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `SELECT `+primaryColumns+` FROM primary_users WHERE role = $1 ORDER BY id`, driverdir.RoleDriver)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanPrimary)
}

func (s *PrimaryStore) one(ctx context.Context, cond string, args ...any) (driverdir.PrimaryRecord, error) {
	if s.pool == nil {
		return driverdir.PrimaryRecord{}, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `SELECT `+primaryColumns+` FROM primary_users `+cond, args...)
	if err != nil {
		return driverdir.PrimaryRecord{}, err
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanPrimary)
	if errors.Is(err, pgx.ErrNoRows) {
		return driverdir.PrimaryRecord{}, driverdir.ErrNotFound
	}
	return r, err
}

func scanPrimary(row pgx.CollectableRow) (driverdir.PrimaryRecord, error) {
	var (
		r  driverdir.PrimaryRecord
		id string
	)
	err := row.Scan(&id, &r.Email, &r.LastName, &r.FirstName, &r.Phone, &r.Role, &r.IsActive)
	r.ID = domain.DriverID(id)
	return r, err
}
