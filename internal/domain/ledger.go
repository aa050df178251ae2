package domain

import (
	"errors"
	"strings"
	"time"
)

type EntryType string

const (
	EntryRecette       EntryType = "recette"
	EntryDepense       EntryType = "depense"
	EntryCommission    EntryType = "commission"
	EntryRemboursement EntryType = "remboursement"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryRecette, EntryDepense, EntryCommission, EntryRemboursement:
		return true
	default:
		return false
	}
}

// Sign is +1 for cash coming into the driver's hands and -1 for cash going out.
func (t EntryType) Sign() int64 {
	switch t {
	case EntryRecette, EntryRemboursement:
		return 1
	case EntryDepense, EntryCommission:
		return -1
	default:
		return 0
	}
}

type LedgerStatus string

const (
	LedgerStatusActive LedgerStatus = "active"
	LedgerStatusClosed LedgerStatus = "closed"
)

var (
	ErrInvalidEntryType   = errors.New("entry type must be one of recette, depense, commission, remboursement")
	ErrNonPositiveAmount  = errors.New("entry amount must be greater than zero")
	ErrMissingDescription = errors.New("entry description is required")
	ErrNegativeOpening    = errors.New("opening amount cannot be negative")
	ErrLedgerClosed       = errors.New("ledger is closed")
	ErrAlreadyClosed      = errors.New("ledger is already closed")
)

// LedgerEntry is one cash movement. Entries are append-only.
type LedgerEntry struct {
	ID          EntryID
	Type        EntryType
	Amount      Amount
	Description string

	LinkedTripID    *TripID
	LinkedExpenseID *ExpenseID

	Timestamp time.Time
	CreatedBy ActorID
}

func (e LedgerEntry) Validate() error {
	if !e.Type.Valid() {
		return ErrInvalidEntryType
	}
	if e.Amount <= 0 {
		return ErrNonPositiveAmount
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrMissingDescription
	}
	return nil
}

// Signed returns the entry's effect on the running balance.
func (e LedgerEntry) Signed() Amount {
	return Amount(e.Type.Sign()) * e.Amount
}

// replays reports whether e re-applies the same linked event as other.
func (e LedgerEntry) replays(other LedgerEntry) bool {
	if e.Type != other.Type {
		return false
	}
	if e.LinkedTripID != nil && other.LinkedTripID != nil && *e.LinkedTripID == *other.LinkedTripID {
		return true
	}
	if e.LinkedExpenseID != nil && other.LinkedExpenseID != nil && *e.LinkedExpenseID == *other.LinkedExpenseID {
		return true
	}
	return false
}

// EntryTotals sums entries per type.
type EntryTotals struct {
	Recettes       Amount
	Depenses       Amount
	Commissions    Amount
	Remboursements Amount
	Count          int
}

// Net is the signed sum of all entries.
func (t EntryTotals) Net() Amount {
	return t.Recettes + t.Remboursements - t.Depenses - t.Commissions
}

// DailyLedger tracks the cash one driver carries during one calendar day.
//
// RunningBalance is a cached value; the entry log is authoritative:
// RunningBalance == OpeningAmount + Totals().Net() whenever the ledger is consistent.
type DailyLedger struct {
	ID     LedgerID
	Driver DriverRef
	// Day is the local midnight of the ledger's calendar day.
	Day time.Time

	OpeningAmount  Amount
	RunningBalance Amount
	Entries        []LedgerEntry

	Status    LedgerStatus
	Notes     *string
	CreatedBy ActorID

	// Version increments on every persisted mutation.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// NewDailyLedger builds an active ledger whose running balance starts at opening.
func NewDailyLedger(id LedgerID, driver DriverRef, day time.Time, opening Amount, createdBy ActorID, now time.Time) (DailyLedger, error) {
	if opening < 0 {
		return DailyLedger{}, ErrNegativeOpening
	}
	return DailyLedger{
		ID:             id,
		Driver:         driver,
		Day:            day,
		OpeningAmount:  opening,
		RunningBalance: opening,
		Entries:        []LedgerEntry{},
		Status:         LedgerStatusActive,
		CreatedBy:      createdBy,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (l DailyLedger) IsClosed() bool { return l.Status == LedgerStatusClosed }

// Append validates e and applies it to the running balance.
// It returns applied=false without error when e replays an entry already linked to the
// same trip or expense, so retried completion callbacks never double-apply.
func (l *DailyLedger) Append(e LedgerEntry, now time.Time) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	if l.IsClosed() {
		return false, ErrLedgerClosed
	}
	for _, existing := range l.Entries {
		if e.replays(existing) {
			return false, nil
		}
	}
	l.Entries = append(l.Entries, e)
	l.RunningBalance += e.Signed()
	l.UpdatedAt = now
	return true, nil
}

// Close freezes the ledger. Closure is terminal.
func (l *DailyLedger) Close(notes string, now time.Time) error {
	if l.IsClosed() {
		return ErrAlreadyClosed
	}
	l.Status = LedgerStatusClosed
	if n := strings.TrimSpace(notes); n != "" {
		l.Notes = &n
	}
	t := now
	l.ClosedAt = &t
	l.UpdatedAt = now
	return nil
}

// CorrectOpening replaces the opening amount and shifts the running balance by the delta,
// leaving already-applied entries untouched.
func (l *DailyLedger) CorrectOpening(amount Amount, now time.Time) (Amount, error) {
	if amount < 0 {
		return 0, ErrNegativeOpening
	}
	if l.IsClosed() {
		return 0, ErrLedgerClosed
	}
	delta := amount - l.OpeningAmount
	l.OpeningAmount = amount
	l.RunningBalance += delta
	l.UpdatedAt = now
	return delta, nil
}

func (l DailyLedger) Totals() EntryTotals {
	var t EntryTotals
	for _, e := range l.Entries {
		switch e.Type {
		case EntryRecette:
			t.Recettes += e.Amount
		case EntryDepense:
			t.Depenses += e.Amount
		case EntryCommission:
			t.Commissions += e.Amount
		case EntryRemboursement:
			t.Remboursements += e.Amount
		}
		t.Count++
	}
	return t
}

// ExpectedBalance recomputes the balance from the entry log.
func (l DailyLedger) ExpectedBalance() Amount {
	return l.OpeningAmount + l.Totals().Net()
}

// Drift is the stored balance minus the recomputed one.
func (l DailyLedger) Drift() Amount {
	return l.RunningBalance - l.ExpectedBalance()
}

// RepairBalance overwrites the cached balance with the recomputed one and returns the previous value.
// Repair is allowed on closed ledgers: it does not add entries, it restores the invariant.
func (l *DailyLedger) RepairBalance(now time.Time) Amount {
	prev := l.RunningBalance
	l.RunningBalance = l.ExpectedBalance()
	l.UpdatedAt = now
	return prev
}

// Clone returns a deep copy.
func (l DailyLedger) Clone() DailyLedger {
	cp := l
	if l.Entries != nil {
		cp.Entries = make([]LedgerEntry, len(l.Entries))
		for i, e := range l.Entries {
			cp.Entries[i] = e.clone()
		}
	}
	if l.Notes != nil {
		n := *l.Notes
		cp.Notes = &n
	}
	if l.ClosedAt != nil {
		c := *l.ClosedAt
		cp.ClosedAt = &c
	}
	return cp
}

func (e LedgerEntry) clone() LedgerEntry {
	cp := e
	if e.LinkedTripID != nil {
		v := *e.LinkedTripID
		cp.LinkedTripID = &v
	}
	if e.LinkedExpenseID != nil {
		v := *e.LinkedExpenseID
		cp.LinkedExpenseID = &v
	}
	return cp
}

// NormalizeDay returns local midnight of t's calendar day in loc.
func NormalizeDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant of the calendar day starting at day.
func EndOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
