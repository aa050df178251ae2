// Package apperr defines the application-layer error shared by the ledger, reconciliation,
// identity and finance services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error for callers that need to branch on it.
type Kind string

const (
	KindValidation              Kind = "VALIDATION_ERROR"
	KindDuplicateLedger         Kind = "DUPLICATE_LEDGER"
	KindLedgerNotFound          Kind = "LEDGER_NOT_FOUND"
	KindLedgerClosed            Kind = "LEDGER_CLOSED"
	KindAlreadyClosed           Kind = "ALREADY_CLOSED"
	KindDriverNotFound          Kind = "DRIVER_NOT_FOUND"
	KindReconciliationDrift     Kind = "RECONCILIATION_DRIFT"
	KindCollaboratorUnavailable Kind = "COLLABORATOR_UNAVAILABLE"
	KindConflict                Kind = "CONFLICT"
)

// Error is an application-layer error that adapters map to their own responses.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the same call may succeed if repeated later.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Kind == KindCollaboratorUnavailable || e.Kind == KindConflict
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string, details map[string]any) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
