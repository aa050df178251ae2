package domain

import (
	"testing"
	"time"
)

func TestClassifyCharge(t *testing.T) {
	t.Parallel()

	cases := map[string]ChargeKind{
		"Maintenance":         ChargeMaintenance,
		"maintenance vidange": ChargeMaintenance,
		"Carburant":           ChargeFuel,
		"ESSENCE":             ChargeFuel,
		"gasoil":              ChargeFuel,
		"Fuel":                ChargeFuel,
		"Lavage":              ChargeOther,
		"":                    ChargeOther,
	}
	for in, want := range cases {
		if got := ClassifyCharge(in); got != want {
			t.Fatalf("ClassifyCharge(%q)=%s want %s", in, got, want)
		}
	}

	var c Charges
	c.Add("Carburant", 100)
	c.Add("maintenance", 40)
	c.Add("Péage", 5)
	if c.Fuel != 100 || c.Maintenance != 40 || c.Other != 5 || c.Total() != 145 {
		t.Fatalf("charges=%+v", c)
	}
}

func TestTripPaymentEvent_CollectedFallsBackToBilled(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	legacy := TripPaymentEvent{BilledAmount: 2000, PlannedPaymentMethod: PaymentCash}
	if a, fb := legacy.Collected(); a != 2000 || !fb {
		t.Fatalf("legacy collected=%d fallback=%v", a, fb)
	}
	if _, ok := legacy.SettledAt(); ok {
		t.Fatalf("unsettled trip reported settled")
	}
	if legacy.EffectiveMethod() != PaymentCash || legacy.MethodChanged() {
		t.Fatalf("legacy method=%s changed=%v", legacy.EffectiveMethod(), legacy.MethodChanged())
	}

	settled := TripPaymentEvent{
		BilledAmount:         2000,
		PlannedPaymentMethod: PaymentCash,
		Payment:              &TripPayment{AmountCollected: 1800, EffectivePaymentMethod: PaymentMobileMoney, TransactionTimestamp: &at},
	}
	if a, fb := settled.Collected(); a != 1800 || fb {
		t.Fatalf("settled collected=%d fallback=%v", a, fb)
	}
	if got, ok := settled.SettledAt(); !ok || !got.Equal(at) {
		t.Fatalf("settledAt=%v ok=%v", got, ok)
	}
	if settled.EffectiveMethod() != PaymentMobileMoney || !settled.MethodChanged() {
		t.Fatalf("method=%s changed=%v", settled.EffectiveMethod(), settled.MethodChanged())
	}
}

func TestExpenseRecord_DedupKey(t *testing.T) {
	t.Parallel()

	a := ExpenseRecord{ID: "x1", Reference: " DEP-1 "}
	b := ExpenseRecord{ID: "x2", Reference: "DEP-1"}
	if a.DedupKey() != b.DedupKey() {
		t.Fatalf("same reference must dedup: %q vs %q", a.DedupKey(), b.DedupKey())
	}
	if k := (ExpenseRecord{ID: "x3"}).DedupKey(); k != "id:x3" {
		t.Fatalf("key=%q", k)
	}
}

func TestCanonicalDriver_IDsAndKey(t *testing.T) {
	t.Parallel()

	p, s := DriverID("u1"), DriverID("c1")
	both := CanonicalDriver{PrimaryID: &p, SpecializedID: &s}
	if ids := both.IDs(); len(ids) != 2 || ids[0] != "u1" || ids[1] != "c1" {
		t.Fatalf("ids=%v", ids)
	}
	if refs := both.Refs(); len(refs) != 2 || refs[1].Source != SourceSpecialized {
		t.Fatalf("refs=%v", refs)
	}
	if !both.Has("c1") || both.Has("zz") {
		t.Fatalf("Has mismatch")
	}
	if both.Key() != "p:u1|s:c1" {
		t.Fatalf("key=%q", both.Key())
	}

	same := DriverID("u1")
	shared := CanonicalDriver{PrimaryID: &p, SpecializedID: &same}
	if ids := shared.IDs(); len(ids) != 1 {
		t.Fatalf("shared id listed twice: %v", ids)
	}
	if (DriverRef{ID: "c1"}).String() != "c1" || driver.String() != "specialized:c1" {
		t.Fatalf("DriverRef.String mismatch")
	}
}
