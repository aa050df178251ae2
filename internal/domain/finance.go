package domain

import (
	"strings"
	"time"
)

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentCredit      PaymentMethod = "credit"
	PaymentMobileMoney PaymentMethod = "mobile_money"
	PaymentCard        PaymentMethod = "card"
	PaymentTransfer    PaymentMethod = "transfer"
)

type TripStatus string

const (
	TripStatusPending   TripStatus = "pending"
	TripStatusConfirmed TripStatus = "confirmed"
	TripStatusOngoing   TripStatus = "ongoing"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCanceled  TripStatus = "canceled"
)

// TripPayment is the settlement sub-record of a trip.
type TripPayment struct {
	// AmountCollected is what the driver actually received; zero means "never recorded".
	AmountCollected        Amount
	EffectivePaymentMethod PaymentMethod
	// TransactionTimestamp is nil until the trip is settled.
	TransactionTimestamp *time.Time
	PaymentReference     string
}

// TripPaymentEvent is a trip normalized for cash aggregation.
type TripPaymentEvent struct {
	TripID    TripID
	Reference string
	// DriverID is whichever identity id the trip was written with.
	DriverID DriverID
	// DriverSource is empty for legacy trips that never recorded it.
	DriverSource IdentitySource
	Status       TripStatus

	ScheduledStart       time.Time
	BilledAmount         Amount
	PlannedPaymentMethod PaymentMethod
	Payment              *TripPayment
}

// SettledAt returns the transaction timestamp, if the trip has been settled.
func (t TripPaymentEvent) SettledAt() (time.Time, bool) {
	if t.Payment == nil || t.Payment.TransactionTimestamp == nil {
		return time.Time{}, false
	}
	return *t.Payment.TransactionTimestamp, true
}

// EffectiveMethod is the settlement method, falling back to the planned one before settlement.
func (t TripPaymentEvent) EffectiveMethod() PaymentMethod {
	if t.Payment != nil && t.Payment.EffectivePaymentMethod != "" {
		return t.Payment.EffectivePaymentMethod
	}
	return t.PlannedPaymentMethod
}

// MethodChanged reports whether the trip settled with a different method than planned.
func (t TripPaymentEvent) MethodChanged() bool {
	if t.Payment == nil || t.Payment.EffectivePaymentMethod == "" {
		return false
	}
	return t.Payment.EffectivePaymentMethod != t.PlannedPaymentMethod
}

// Collected returns the amount counted as received for the trip.
//
// Legacy records never stored an actual collection; for those the billed amount stands in
// and usedFallback is true.
func (t TripPaymentEvent) Collected() (amount Amount, usedFallback bool) {
	if t.Payment != nil && t.Payment.AmountCollected > 0 {
		return t.Payment.AmountCollected, false
	}
	return t.BilledAmount, true
}

// ExpenseRecord is an expense normalized for aggregation.
type ExpenseRecord struct {
	ID          ExpenseID
	Reference   string
	Category    string
	Description string
	Amount      Amount
	Date        time.Time
	DriverID    DriverID
}

// DedupKey is the stable identity of an expense across write paths.
func (e ExpenseRecord) DedupKey() string {
	if r := strings.TrimSpace(e.Reference); r != "" {
		return "ref:" + r
	}
	return "id:" + string(e.ID)
}

type ChargeKind string

const (
	ChargeMaintenance ChargeKind = "maintenance"
	ChargeFuel        ChargeKind = "fuel"
	ChargeOther       ChargeKind = "other"
)

var fuelKeywords = []string{"carburant", "essence", "gasoil", "fuel"}

// ClassifyCharge buckets an expense category by keyword.
func ClassifyCharge(category string) ChargeKind {
	c := strings.ToLower(category)
	if strings.Contains(c, "maintenance") {
		return ChargeMaintenance
	}
	for _, kw := range fuelKeywords {
		if strings.Contains(c, kw) {
			return ChargeFuel
		}
	}
	return ChargeOther
}

type Charges struct {
	Maintenance Amount
	Fuel        Amount
	Other       Amount
}

func (c Charges) Total() Amount { return c.Maintenance + c.Fuel + c.Other }

func (c *Charges) Add(category string, a Amount) {
	switch ClassifyCharge(category) {
	case ChargeMaintenance:
		c.Maintenance += a
	case ChargeFuel:
		c.Fuel += a
	default:
		c.Other += a
	}
}

type CashStatus string

const (
	CashStatusPositive CashStatus = "positive"
	CashStatusUrgent   CashStatus = "urgent"
)

// DiagnosticWindow holds trailing-window figures gathered for operator visibility only.
// They are out of period and never part of the authoritative totals.
type DiagnosticWindow struct {
	Label      string
	From       time.Time
	To         time.Time
	TripsFound int
	CashSeen   Amount
}

// DriverFinancialSnapshot is the cash position of one canonical driver over a period.
type DriverFinancialSnapshot struct {
	Driver      CanonicalDriver
	PeriodStart time.Time
	PeriodEnd   time.Time

	OpeningAmount      Amount
	OpeningWasRecorded bool

	CashCollected   Amount
	CreditCollected Amount
	TripsCompleted  int
	ExpensesTotal   Amount
	Charges         Charges

	CashBalance Amount
	Status      CashStatus

	// FallbackTrips counts cash trips whose collected amount fell back to the billed amount.
	FallbackTrips int
	MethodChanges []TripID

	Diagnostic *DiagnosticWindow
}

type MethodTotal struct {
	Method  PaymentMethod
	Amount  Amount
	Percent int
}

type CategoryTotal struct {
	Category string
	Amount   Amount
	Percent  int
}

// FleetFinancials rolls driver snapshots up across the fleet.
type FleetFinancials struct {
	PeriodStart time.Time
	PeriodEnd   time.Time

	Drivers []DriverFinancialSnapshot

	TripsCompleted     int
	TotalRevenue       Amount
	RevenueByMethod    []MethodTotal
	TotalExpenses      Amount
	ExpensesByCategory []CategoryTotal
	NetMargin          Amount
	MarginPercent      int

	TotalOpening   Amount
	ActiveTreasury Amount
	LedgerDays     int
	UrgentDrivers  int
}

// DayStatistics summarizes one ledger day.
type DayStatistics struct {
	Day            time.Time
	Opening        Amount
	Balance        Amount
	Totals         EntryTotals
	Status         LedgerStatus
	EntriesApplied int
}

// DriverStatistics summarizes a driver's ledgers over a date range.
type DriverStatistics struct {
	Driver    CanonicalDriver
	From      time.Time
	To        time.Time
	Days      int
	Opening   Amount
	Balance   Amount
	Totals    EntryTotals
	Averages  DailyAverages
	Evolution []DayStatistics
}

// DailyAverages are integer (truncated) per-day means.
type DailyAverages struct {
	Opening  Amount
	Recettes Amount
	Depenses Amount
	Balance  Amount
}

type TransactionKind string

const (
	TransactionRevenue TransactionKind = "revenue"
	TransactionExpense TransactionKind = "expense"
)

// ConsolidatedTransaction is one row of the merged revenue/expense journal.
type ConsolidatedTransaction struct {
	Kind        TransactionKind
	Reference   string
	Date        time.Time
	Category    string
	Description string
	Amount      Amount
	DriverID    DriverID
	Method      PaymentMethod
}

type PayrollStatus string

const (
	PayrollPaid    PayrollStatus = "paid"
	PayrollPending PayrollStatus = "pending"
)

type PayrollLine struct {
	Driver     CanonicalDriver
	Salary     Amount
	Bonus      Amount
	Advances   Amount
	Total      Amount
	Payments   int
	LastPaidAt *time.Time
	Status     PayrollStatus
}

type Payroll struct {
	From  time.Time
	To    time.Time
	Lines []PayrollLine

	PaidDrivers    int
	PendingDrivers int
	TotalSalary    Amount
	TotalBonus     Amount
	TotalAdvances  Amount
	TotalPaid      Amount
}
