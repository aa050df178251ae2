package driverdir

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/driverdir"
)

const specializedColumns = `
	id, email, last_name, first_name, phone,
	license_number, license_class, license_expires_at, assigned_vehicle_id, situation, is_active
`

// SpecializedStore is a Postgres implementation of driverdir.SpecializedStore over specialized_drivers.
type SpecializedStore struct {
	pool *pgxpool.Pool
}

func NewSpecializedStore(pool *pgxpool.Pool) *SpecializedStore {
	return &SpecializedStore{pool: pool}
}

// Upsert inserts or replaces a record.
func (s *SpecializedStore) Upsert(ctx context.Context, r driverdir.SpecializedRecord) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO specialized_drivers (`+specializedColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			last_name = EXCLUDED.last_name,
			first_name = EXCLUDED.first_name,
			phone = EXCLUDED.phone,
			license_number = EXCLUDED.license_number,
			license_class = EXCLUDED.license_class,
			license_expires_at = EXCLUDED.license_expires_at,
			assigned_vehicle_id = EXCLUDED.assigned_vehicle_id,
			situation = EXCLUDED.situation,
			is_active = EXCLUDED.is_active
	`,
		string(r.ID), r.Email, r.LastName, r.FirstName, r.Phone,
		r.License.Number, r.License.Class, r.License.ExpiresAt, r.AssignedVehicleID, r.Situation, r.IsActive,
	)
	return err
}

func (s *SpecializedStore) GetByID(ctx context.Context, id domain.DriverID) (driverdir.SpecializedRecord, error) {
	return s.one(ctx, `WHERE id = $1`, string(id))
}

func (s *SpecializedStore) FindByEmail(ctx context.Context, email string) (driverdir.SpecializedRecord, error) {
	want := domain.NormalizeEmail(email)
	if want == "" {
		return driverdir.SpecializedRecord{}, driverdir.ErrNotFound
	}
	return s.one(ctx, `WHERE lower(btrim(email)) = $1 ORDER BY id LIMIT 1`, want)
}

func (s *SpecializedStore) FindByName(ctx context.Context, lastName, firstName string) (driverdir.SpecializedRecord, error) {
	last, first := domain.NameKey(lastName), domain.NameKey(firstName)
	if last == "" || first == "" {
		return driverdir.SpecializedRecord{}, driverdir.ErrNotFound
	}
	return s.one(ctx, `WHERE `+lastNameKey+` = $1 AND `+firstNameKey+` = $2 ORDER BY id LIMIT 1`, last, first)
}

func (s *SpecializedStore) ListDrivers(ctx context.Context) ([]driverdir.SpecializedRecord, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `SELECT `+specializedColumns+` FROM specialized_drivers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanSpecialized)
}

func (s *SpecializedStore) one(ctx context.Context, cond string, args ...any) (driverdir.SpecializedRecord, error) {
	if s.pool == nil {
		return driverdir.SpecializedRecord{}, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `SELECT `+specializedColumns+` FROM specialized_drivers `+cond, args...)
	if err != nil {
		return driverdir.SpecializedRecord{}, err
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanSpecialized)
	if errors.Is(err, pgx.ErrNoRows) {
		return driverdir.SpecializedRecord{}, driverdir.ErrNotFound
	}
	return r, err
}

func scanSpecialized(row pgx.CollectableRow) (driverdir.SpecializedRecord, error) {
	var (
		r  driverdir.SpecializedRecord
		id string
	)
	err := row.Scan(
		&id, &r.Email, &r.LastName, &r.FirstName, &r.Phone,
		&r.License.Number, &r.License.Class, &r.License.ExpiresAt, &r.AssignedVehicleID, &r.Situation, &r.IsActive,
	)
	r.ID = domain.DriverID(id)
	if r.License.ExpiresAt != nil {
		t := r.License.ExpiresAt.UTC()
		r.License.ExpiresAt = &t
	}
	return r, err
}
