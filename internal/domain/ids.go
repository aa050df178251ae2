package domain

// DriverID is an opaque identifier issued by one of the two identity stores.
// Its format is controlled by the issuing store.
type DriverID string

// LedgerID is an internal identifier for a daily ledger record.
type LedgerID string

// EntryID is an internal identifier for a ledger entry.
type EntryID string

// TripID identifies a trip (reservation) owned by the trip subsystem.
type TripID string

// ExpenseID identifies an expense record owned by the expense subsystem.
type ExpenseID string

// ActorID identifies the operator or job that performed a write.
type ActorID string

// ActorSystem is used for writes performed by scheduled jobs.
const ActorSystem ActorID = "system"
