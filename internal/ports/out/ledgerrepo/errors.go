package ledgerrepo

import "errors"

var (
	// ErrNotFound indicates the requested ledger does not exist.
	ErrNotFound = errors.New("ledger not found")

	// ErrDuplicate indicates a ledger already exists for the (driver, day) key or the ledger ID.
	// Callers that lose a creation race should re-read rather than retry the create.
	ErrDuplicate = errors.New("ledger already exists")

	// ErrConflict indicates the ledger kept changing underneath an update and the write was abandoned.
	ErrConflict = errors.New("ledger modified concurrently")

	// ErrNoChange may be returned by a MutateFunc to end an Update without writing.
	ErrNoChange = errors.New("ledger unchanged")
)
