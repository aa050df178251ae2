package driverdir

import (
	"context"
	"time"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

// RoleDriver is the primary-store role carried by drivers.
const RoleDriver = "driver"

// PrimaryRecord is a user from the shared identity store (clients, admins and drivers).
type PrimaryRecord struct {
	ID        domain.DriverID
	Email     string
	LastName  string
	FirstName string
	Phone     string
	Role      string
	IsActive  bool
}

type License struct {
	Number    string
	Class     string
	ExpiresAt *time.Time
}

// SpecializedRecord is a driver from the driver-only store.
type SpecializedRecord struct {
	ID        domain.DriverID
	Email     string
	LastName  string
	FirstName string
	Phone     string

	License           License
	AssignedVehicleID *string
	Situation         string
	IsActive          bool
}

// PrimaryStore provides read access to the shared identity store.
//
// Lookups by email are case-insensitive. Lookups by name compare normalized, case-folded names.
// The store is shared with clients and admins: when several records match, records with
// Role == RoleDriver come first, then the lowest ID wins.
type PrimaryStore interface {
	GetByID(ctx context.Context, id domain.DriverID) (PrimaryRecord, error)
	FindByEmail(ctx context.Context, email string) (PrimaryRecord, error)
	FindByName(ctx context.Context, lastName, firstName string) (PrimaryRecord, error)

	// ListDrivers returns records with Role == RoleDriver ordered by ID.
	ListDrivers(ctx context.Context) ([]PrimaryRecord, error)
}

// SpecializedStore provides read access to the driver-only store. Same matching as PrimaryStore;
// among several matches the lowest ID wins.
type SpecializedStore interface {
	GetByID(ctx context.Context, id domain.DriverID) (SpecializedRecord, error)
	FindByEmail(ctx context.Context, email string) (SpecializedRecord, error)
	FindByName(ctx context.Context, lastName, firstName string) (SpecializedRecord, error)

	// ListDrivers returns all records ordered by ID.
	ListDrivers(ctx context.Context) ([]SpecializedRecord, error)
}
