package domain

import (
	"errors"
	"testing"
	"time"
)

var (
	t0     = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	driver = DriverRef{ID: "c1", Source: SourceSpecialized}
)

func newLedger(t *testing.T, opening Amount) DailyLedger {
	t.Helper()
	l, err := NewDailyLedger("l1", driver, NormalizeDay(t0, time.UTC), opening, "op", t0)
	if err != nil {
		t.Fatalf("NewDailyLedger: %v", err)
	}
	return l
}

func tripID(s string) *TripID {
	id := TripID(s)
	return &id
}

func TestNewDailyLedger_RejectsNegativeOpening(t *testing.T) {
	t.Parallel()

	if _, err := NewDailyLedger("l1", driver, t0, -1, "op", t0); !errors.Is(err, ErrNegativeOpening) {
		t.Fatalf("err=%v", err)
	}
	l := newLedger(t, 500)
	if l.RunningBalance != 500 || l.Status != LedgerStatusActive || l.Version != 1 {
		t.Fatalf("ledger=%+v", l)
	}
}

func TestAppend_SignRules(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 1000)
	for _, e := range []LedgerEntry{
		{ID: "e1", Type: EntryRecette, Amount: 400, Description: "course"},
		{ID: "e2", Type: EntryDepense, Amount: 150, Description: "carburant"},
		{ID: "e3", Type: EntryCommission, Amount: 50, Description: "plateforme"},
		{ID: "e4", Type: EntryRemboursement, Amount: 20, Description: "rendu"},
	} {
		applied, err := l.Append(e, t0)
		if err != nil || !applied {
			t.Fatalf("append %s: applied=%v err=%v", e.Type, applied, err)
		}
	}
	if l.RunningBalance != 1220 {
		t.Fatalf("balance=%d, want 1220", l.RunningBalance)
	}
	tot := l.Totals()
	if tot.Recettes != 400 || tot.Depenses != 150 || tot.Commissions != 50 || tot.Remboursements != 20 || tot.Count != 4 {
		t.Fatalf("totals=%+v", tot)
	}
	if l.Drift() != 0 {
		t.Fatalf("drift=%d", l.Drift())
	}
}

func TestAppend_ValidationAndClosed(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 0)
	if _, err := l.Append(LedgerEntry{Type: "bonus", Amount: 1, Description: "x"}, t0); !errors.Is(err, ErrInvalidEntryType) {
		t.Fatalf("err=%v", err)
	}
	if _, err := l.Append(LedgerEntry{Type: EntryRecette, Amount: 0, Description: "x"}, t0); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("err=%v", err)
	}
	if _, err := l.Append(LedgerEntry{Type: EntryRecette, Amount: 1, Description: "  "}, t0); !errors.Is(err, ErrMissingDescription) {
		t.Fatalf("err=%v", err)
	}

	if err := l.Close("  fin  ", t0); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.Notes == nil || *l.Notes != "fin" || l.ClosedAt == nil {
		t.Fatalf("notes=%v closedAt=%v", l.Notes, l.ClosedAt)
	}
	if _, err := l.Append(LedgerEntry{Type: EntryRecette, Amount: 1, Description: "late"}, t0); !errors.Is(err, ErrLedgerClosed) {
		t.Fatalf("err=%v", err)
	}
	if err := l.Close("", t0); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("err=%v", err)
	}
	if _, err := l.CorrectOpening(10, t0); !errors.Is(err, ErrLedgerClosed) {
		t.Fatalf("err=%v", err)
	}
}

func TestAppend_LinkedReplayIsNoOp(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 0)
	e := LedgerEntry{ID: "e1", Type: EntryRecette, Amount: 300, Description: "course", LinkedTripID: tripID("t1")}
	if applied, err := l.Append(e, t0); err != nil || !applied {
		t.Fatalf("first: applied=%v err=%v", applied, err)
	}
	e.ID = "e2"
	if applied, err := l.Append(e, t0); err != nil || applied {
		t.Fatalf("replay: applied=%v err=%v", applied, err)
	}
	// Same trip, different type is a distinct movement.
	if applied, _ := l.Append(LedgerEntry{ID: "e3", Type: EntryCommission, Amount: 30, Description: "com", LinkedTripID: tripID("t1")}, t0); !applied {
		t.Fatalf("commission on same trip was not applied")
	}
	if l.RunningBalance != 270 || len(l.Entries) != 2 {
		t.Fatalf("balance=%d entries=%d", l.RunningBalance, len(l.Entries))
	}
}

func TestCorrectOpening_ShiftsBalance(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 1000)
	_, _ = l.Append(LedgerEntry{ID: "e1", Type: EntryDepense, Amount: 300, Description: "x"}, t0)
	delta, err := l.CorrectOpening(400, t0)
	if err != nil {
		t.Fatalf("CorrectOpening: %v", err)
	}
	if delta != -600 || l.OpeningAmount != 400 || l.RunningBalance != 100 {
		t.Fatalf("delta=%d opening=%d balance=%d", delta, l.OpeningAmount, l.RunningBalance)
	}
	if _, err := l.CorrectOpening(-1, t0); !errors.Is(err, ErrNegativeOpening) {
		t.Fatalf("err=%v", err)
	}
}

func TestRepairBalance(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 100)
	_, _ = l.Append(LedgerEntry{ID: "e1", Type: EntryRecette, Amount: 50, Description: "x"}, t0)
	l.RunningBalance = 999
	if l.Drift() != 849 {
		t.Fatalf("drift=%d", l.Drift())
	}
	_ = l.Close("", t0)
	if prev := l.RepairBalance(t0); prev != 999 {
		t.Fatalf("prev=%d", prev)
	}
	if l.RunningBalance != 150 || l.Drift() != 0 {
		t.Fatalf("balance=%d", l.RunningBalance)
	}
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 0)
	_, _ = l.Append(LedgerEntry{ID: "e1", Type: EntryRecette, Amount: 5, Description: "x", LinkedTripID: tripID("t1")}, t0)
	_ = l.Close("n", t0)

	cp := l.Clone()
	*cp.Entries[0].LinkedTripID = "other"
	*cp.Notes = "changed"
	cp.Entries[0].Amount = 99
	if *l.Entries[0].LinkedTripID != "t1" || *l.Notes != "n" || l.Entries[0].Amount != 5 {
		t.Fatalf("clone shares state with original")
	}
}

func TestNormalizeDay_UsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*3600)
	// 23:30 UTC on May 1 is already May 2 at UTC+2.
	got := NormalizeDay(time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC), loc)
	if got.Day() != 2 || got.Hour() != 0 || got.Location() != loc {
		t.Fatalf("day=%v", got)
	}
	if end := EndOfDay(got); !end.Before(got.AddDate(0, 0, 1)) || end.Day() != 2 {
		t.Fatalf("end=%v", end)
	}
}
