package driverdir

import "errors"

// ErrNotFound indicates no identity record matched the lookup.
var ErrNotFound = errors.New("driver identity not found")
