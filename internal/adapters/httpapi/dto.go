package httpapi

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/Flora-Ebah/kairos-backend/internal/app/ledger"
	"github.com/Flora-Ebah/kairos-backend/internal/app/reconciliation"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/currency"
)

const dayLayout = "2006-01-02"

// DecimalInput accepts a major-unit amount written as a JSON number or string ("12.50").
type DecimalInput string

func (d *DecimalInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DecimalInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = DecimalInput(n.String())
	return nil
}

// Money carries an amount as stored (minor units) and as read by people.
type Money struct {
	Minor   int64  `json:"minor"`
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

func moneyOf(c currency.Converter, a domain.Amount) Money {
	return Money{Minor: int64(a), Amount: c.MajorString(a), Display: c.Format(a)}
}

type OpenLedgerRequest struct {
	DriverID      string       `json:"driverId"`
	DriverSource  string       `json:"driverSource"`
	Day           string       `json:"day,omitempty"`
	OpeningAmount DecimalInput `json:"openingAmount"`
}

type AppendEntryRequest struct {
	Type            string                    `json:"type"`
	Amount          DecimalInput              `json:"amount"`
	Description     string                    `json:"description"`
	LinkedTripID    nullable.Nullable[string] `json:"linkedTripId,omitempty"`
	LinkedExpenseID nullable.Nullable[string] `json:"linkedExpenseId,omitempty"`
}

type CloseLedgerRequest struct {
	Notes nullable.Nullable[string] `json:"notes,omitempty"`
}

type UpdateOpeningRequest struct {
	OpeningAmount DecimalInput `json:"openingAmount"`
}

type LedgerEntry struct {
	ID              string                    `json:"id"`
	Type            string                    `json:"type"`
	Amount          Money                     `json:"amount"`
	Description     string                    `json:"description"`
	LinkedTripID    nullable.Nullable[string] `json:"linkedTripId,omitempty"`
	LinkedExpenseID nullable.Nullable[string] `json:"linkedExpenseId,omitempty"`
	Timestamp       time.Time                 `json:"timestamp"`
	CreatedBy       string                    `json:"createdBy"`
}

type EntryTotals struct {
	Recettes       Money `json:"recettes"`
	Depenses       Money `json:"depenses"`
	Commissions    Money `json:"commissions"`
	Remboursements Money `json:"remboursements"`
	Count          int   `json:"count"`
}

type Ledger struct {
	ID             string                       `json:"id"`
	DriverID       string                       `json:"driverId"`
	DriverSource   string                       `json:"driverSource"`
	Day            string                       `json:"day"`
	OpeningAmount  Money                        `json:"openingAmount"`
	RunningBalance Money                        `json:"runningBalance"`
	Totals         EntryTotals                  `json:"totals"`
	Entries        []LedgerEntry                `json:"entries"`
	Status         string                       `json:"status"`
	Notes          nullable.Nullable[string]    `json:"notes,omitempty"`
	CreatedBy      string                       `json:"createdBy"`
	Version        int64                        `json:"version"`
	CreatedAt      time.Time                    `json:"createdAt"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
	ClosedAt       nullable.Nullable[time.Time] `json:"closedAt,omitempty"`
}

type ReconcileResponse struct {
	LedgerID   string                    `json:"ledgerId"`
	Reconciled bool                      `json:"reconciled"`
	Previous   Money                     `json:"previous"`
	Expected   Money                     `json:"expected"`
	Delta      Money                     `json:"delta"`
	Drift      nullable.Nullable[string] `json:"drift,omitempty"`
}

type CanonicalDriver struct {
	PrimaryID     nullable.Nullable[string] `json:"primaryId,omitempty"`
	SpecializedID nullable.Nullable[string] `json:"specializedId,omitempty"`
	DisplayName   string                    `json:"displayName"`
	Email         string                    `json:"email,omitempty"`
}

type Charges struct {
	Maintenance Money `json:"maintenance"`
	Fuel        Money `json:"fuel"`
	Other       Money `json:"other"`
}

type DiagnosticWindow struct {
	Label      string `json:"label"`
	From       string `json:"from"`
	To         string `json:"to"`
	TripsFound int    `json:"tripsFound"`
	CashSeen   Money  `json:"cashSeen"`
}

type DriverFinancials struct {
	Driver             CanonicalDriver                     `json:"driver"`
	PeriodStart        time.Time                           `json:"periodStart"`
	PeriodEnd          time.Time                           `json:"periodEnd"`
	OpeningAmount      Money                               `json:"openingAmount"`
	OpeningWasRecorded bool                                `json:"openingWasRecorded"`
	CashCollected      Money                               `json:"cashCollected"`
	CreditCollected    Money                               `json:"creditCollected"`
	TripsCompleted     int                                 `json:"tripsCompleted"`
	ExpensesTotal      Money                               `json:"expensesTotal"`
	Charges            Charges                             `json:"charges"`
	CashBalance        Money                               `json:"cashBalance"`
	Status             string                              `json:"status"`
	FallbackTrips      int                                 `json:"fallbackTrips"`
	MethodChanges      []string                            `json:"methodChanges"`
	Diagnostic         nullable.Nullable[DiagnosticWindow] `json:"diagnostic,omitempty"`
}

type MethodTotal struct {
	Method  string `json:"method"`
	Amount  Money  `json:"amount"`
	Percent int    `json:"percent"`
}

type CategoryTotal struct {
	Category string `json:"category"`
	Amount   Money  `json:"amount"`
	Percent  int    `json:"percent"`
}

type FleetFinancials struct {
	PeriodStart        time.Time          `json:"periodStart"`
	PeriodEnd          time.Time          `json:"periodEnd"`
	Drivers            []DriverFinancials `json:"drivers"`
	TripsCompleted     int                `json:"tripsCompleted"`
	TotalRevenue       Money              `json:"totalRevenue"`
	RevenueByMethod    []MethodTotal      `json:"revenueByMethod"`
	TotalExpenses      Money              `json:"totalExpenses"`
	ExpensesByCategory []CategoryTotal    `json:"expensesByCategory"`
	NetMargin          Money              `json:"netMargin"`
	MarginPercent      int                `json:"marginPercent"`
	TotalOpening       Money              `json:"totalOpening"`
	ActiveTreasury     Money              `json:"activeTreasury"`
	LedgerDays         int                `json:"ledgerDays"`
	UrgentDrivers      int                `json:"urgentDrivers"`
}

type DayStatistics struct {
	Day            string      `json:"day"`
	Opening        Money       `json:"opening"`
	Balance        Money       `json:"balance"`
	Totals         EntryTotals `json:"totals"`
	Status         string      `json:"status"`
	EntriesApplied int         `json:"entriesApplied"`
}

type DailyAverages struct {
	Opening  Money `json:"opening"`
	Recettes Money `json:"recettes"`
	Depenses Money `json:"depenses"`
	Balance  Money `json:"balance"`
}

type DriverStatistics struct {
	Driver    CanonicalDriver `json:"driver"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Days      int             `json:"days"`
	Opening   Money           `json:"opening"`
	Balance   Money           `json:"balance"`
	Totals    EntryTotals     `json:"totals"`
	Averages  DailyAverages   `json:"averages"`
	Evolution []DayStatistics `json:"evolution"`
}

type Transaction struct {
	Kind        string                    `json:"kind"`
	Reference   string                    `json:"reference"`
	Date        time.Time                 `json:"date"`
	Category    string                    `json:"category"`
	Description string                    `json:"description,omitempty"`
	Amount      Money                     `json:"amount"`
	DriverID    string                    `json:"driverId,omitempty"`
	Method      nullable.Nullable[string] `json:"method,omitempty"`
}

type PayrollLine struct {
	Driver     CanonicalDriver              `json:"driver"`
	Salary     Money                        `json:"salary"`
	Bonus      Money                        `json:"bonus"`
	Advances   Money                        `json:"advances"`
	Total      Money                        `json:"total"`
	Payments   int                          `json:"payments"`
	LastPaidAt nullable.Nullable[time.Time] `json:"lastPaidAt,omitempty"`
	Status     string                       `json:"status"`
}

type Payroll struct {
	From           string        `json:"from"`
	To             string        `json:"to"`
	Lines          []PayrollLine `json:"lines"`
	PaidDrivers    int           `json:"paidDrivers"`
	PendingDrivers int           `json:"pendingDrivers"`
	TotalSalary    Money         `json:"totalSalary"`
	TotalBonus     Money         `json:"totalBonus"`
	TotalAdvances  Money         `json:"totalAdvances"`
	TotalPaid      Money         `json:"totalPaid"`
}

type CloseDayResponse struct {
	Day       string `json:"day"`
	Processed int    `json:"processed"`
	Closed    int    `json:"closed"`
	Failed    int    `json:"failed"`
}

func nullableString(p *string) nullable.Nullable[string] {
	var out nullable.Nullable[string]
	if p != nil {
		out.Set(*p)
	}
	return out
}

func nullableTime(p *time.Time) nullable.Nullable[time.Time] {
	var out nullable.Nullable[time.Time]
	if p != nil {
		out.Set(p.UTC())
	}
	return out
}

func nullableID[T ~string](p *T) nullable.Nullable[string] {
	var out nullable.Nullable[string]
	if p != nil {
		out.Set(string(*p))
	}
	return out
}

// optionalID reads a request id that may be absent, null or blank.
func optionalID[T ~string](n nullable.Nullable[string]) *T {
	v, err := n.Get()
	if err != nil || v == "" {
		return nil
	}
	id := T(v)
	return &id
}

func totalsFromDomain(c currency.Converter, t domain.EntryTotals) EntryTotals {
	return EntryTotals{
		Recettes:       moneyOf(c, t.Recettes),
		Depenses:       moneyOf(c, t.Depenses),
		Commissions:    moneyOf(c, t.Commissions),
		Remboursements: moneyOf(c, t.Remboursements),
		Count:          t.Count,
	}
}

func ledgerFromDomain(c currency.Converter, l domain.DailyLedger) Ledger {
	out := Ledger{
		ID:             string(l.ID),
		DriverID:       string(l.Driver.ID),
		DriverSource:   string(l.Driver.Source),
		Day:            l.Day.Format(dayLayout),
		OpeningAmount:  moneyOf(c, l.OpeningAmount),
		RunningBalance: moneyOf(c, l.RunningBalance),
		Totals:         totalsFromDomain(c, l.Totals()),
		Entries:        make([]LedgerEntry, 0, len(l.Entries)),
		Status:         string(l.Status),
		Notes:          nullableString(l.Notes),
		CreatedBy:      string(l.CreatedBy),
		Version:        l.Version,
		CreatedAt:      l.CreatedAt.UTC(),
		UpdatedAt:      l.UpdatedAt.UTC(),
		ClosedAt:       nullableTime(l.ClosedAt),
	}
	for _, e := range l.Entries {
		out.Entries = append(out.Entries, LedgerEntry{
			ID:              string(e.ID),
			Type:            string(e.Type),
			Amount:          moneyOf(c, e.Amount),
			Description:     e.Description,
			LinkedTripID:    nullableID(e.LinkedTripID),
			LinkedExpenseID: nullableID(e.LinkedExpenseID),
			Timestamp:       e.Timestamp.UTC(),
			CreatedBy:       string(e.CreatedBy),
		})
	}
	return out
}

func reconcileFromResult(c currency.Converter, r reconciliation.Result) ReconcileResponse {
	out := ReconcileResponse{
		LedgerID:   string(r.LedgerID),
		Reconciled: r.Reconciled,
		Previous:   moneyOf(c, r.Previous),
		Expected:   moneyOf(c, r.Expected),
		Delta:      moneyOf(c, r.Delta),
	}
	if r.Drift != nil {
		out.Drift.Set(r.Drift.Message)
	}
	return out
}

func canonicalFromDomain(d domain.CanonicalDriver) CanonicalDriver {
	return CanonicalDriver{
		PrimaryID:     nullableID(d.PrimaryID),
		SpecializedID: nullableID(d.SpecializedID),
		DisplayName:   d.DisplayName,
		Email:         d.Email,
	}
}

func driverFinancialsFromDomain(c currency.Converter, s domain.DriverFinancialSnapshot) DriverFinancials {
	out := DriverFinancials{
		Driver:             canonicalFromDomain(s.Driver),
		PeriodStart:        s.PeriodStart,
		PeriodEnd:          s.PeriodEnd,
		OpeningAmount:      moneyOf(c, s.OpeningAmount),
		OpeningWasRecorded: s.OpeningWasRecorded,
		CashCollected:      moneyOf(c, s.CashCollected),
		CreditCollected:    moneyOf(c, s.CreditCollected),
		TripsCompleted:     s.TripsCompleted,
		ExpensesTotal:      moneyOf(c, s.ExpensesTotal),
		Charges: Charges{
			Maintenance: moneyOf(c, s.Charges.Maintenance),
			Fuel:        moneyOf(c, s.Charges.Fuel),
			Other:       moneyOf(c, s.Charges.Other),
		},
		CashBalance:   moneyOf(c, s.CashBalance),
		Status:        string(s.Status),
		FallbackTrips: s.FallbackTrips,
		MethodChanges: make([]string, 0, len(s.MethodChanges)),
	}
	for _, id := range s.MethodChanges {
		out.MethodChanges = append(out.MethodChanges, string(id))
	}
	if d := s.Diagnostic; d != nil {
		out.Diagnostic.Set(DiagnosticWindow{
			Label:      d.Label,
			From:       d.From.Format(dayLayout),
			To:         d.To.Format(dayLayout),
			TripsFound: d.TripsFound,
			CashSeen:   moneyOf(c, d.CashSeen),
		})
	}
	return out
}

func fleetFromDomain(c currency.Converter, f domain.FleetFinancials) FleetFinancials {
	out := FleetFinancials{
		PeriodStart:        f.PeriodStart,
		PeriodEnd:          f.PeriodEnd,
		Drivers:            make([]DriverFinancials, 0, len(f.Drivers)),
		TripsCompleted:     f.TripsCompleted,
		TotalRevenue:       moneyOf(c, f.TotalRevenue),
		RevenueByMethod:    make([]MethodTotal, 0, len(f.RevenueByMethod)),
		TotalExpenses:      moneyOf(c, f.TotalExpenses),
		ExpensesByCategory: make([]CategoryTotal, 0, len(f.ExpensesByCategory)),
		NetMargin:          moneyOf(c, f.NetMargin),
		MarginPercent:      f.MarginPercent,
		TotalOpening:       moneyOf(c, f.TotalOpening),
		ActiveTreasury:     moneyOf(c, f.ActiveTreasury),
		LedgerDays:         f.LedgerDays,
		UrgentDrivers:      f.UrgentDrivers,
	}
	for _, d := range f.Drivers {
		out.Drivers = append(out.Drivers, driverFinancialsFromDomain(c, d))
	}
	for _, m := range f.RevenueByMethod {
		out.RevenueByMethod = append(out.RevenueByMethod, MethodTotal{Method: string(m.Method), Amount: moneyOf(c, m.Amount), Percent: m.Percent})
	}
	for _, cat := range f.ExpensesByCategory {
		out.ExpensesByCategory = append(out.ExpensesByCategory, CategoryTotal{Category: cat.Category, Amount: moneyOf(c, cat.Amount), Percent: cat.Percent})
	}
	return out
}

func statisticsFromDomain(c currency.Converter, s domain.DriverStatistics) DriverStatistics {
	out := DriverStatistics{
		Driver:  canonicalFromDomain(s.Driver),
		From:    s.From.Format(dayLayout),
		To:      s.To.Format(dayLayout),
		Days:    s.Days,
		Opening: moneyOf(c, s.Opening),
		Balance: moneyOf(c, s.Balance),
		Totals:  totalsFromDomain(c, s.Totals),
		Averages: DailyAverages{
			Opening:  moneyOf(c, s.Averages.Opening),
			Recettes: moneyOf(c, s.Averages.Recettes),
			Depenses: moneyOf(c, s.Averages.Depenses),
			Balance:  moneyOf(c, s.Averages.Balance),
		},
		Evolution: make([]DayStatistics, 0, len(s.Evolution)),
	}
	for _, d := range s.Evolution {
		out.Evolution = append(out.Evolution, DayStatistics{
			Day:            d.Day.Format(dayLayout),
			Opening:        moneyOf(c, d.Opening),
			Balance:        moneyOf(c, d.Balance),
			Totals:         totalsFromDomain(c, d.Totals),
			Status:         string(d.Status),
			EntriesApplied: d.EntriesApplied,
		})
	}
	return out
}

func transactionFromDomain(c currency.Converter, t domain.ConsolidatedTransaction) Transaction {
	out := Transaction{
		Kind:        string(t.Kind),
		Reference:   t.Reference,
		Date:        t.Date,
		Category:    t.Category,
		Description: t.Description,
		Amount:      moneyOf(c, t.Amount),
		DriverID:    string(t.DriverID),
	}
	if t.Method != "" {
		out.Method.Set(string(t.Method))
	}
	return out
}

func payrollFromDomain(c currency.Converter, p domain.Payroll) Payroll {
	out := Payroll{
		From:           p.From.Format(dayLayout),
		To:             p.To.Format(dayLayout),
		Lines:          make([]PayrollLine, 0, len(p.Lines)),
		PaidDrivers:    p.PaidDrivers,
		PendingDrivers: p.PendingDrivers,
		TotalSalary:    moneyOf(c, p.TotalSalary),
		TotalBonus:     moneyOf(c, p.TotalBonus),
		TotalAdvances:  moneyOf(c, p.TotalAdvances),
		TotalPaid:      moneyOf(c, p.TotalPaid),
	}
	for _, l := range p.Lines {
		out.Lines = append(out.Lines, PayrollLine{
			Driver:     canonicalFromDomain(l.Driver),
			Salary:     moneyOf(c, l.Salary),
			Bonus:      moneyOf(c, l.Bonus),
			Advances:   moneyOf(c, l.Advances),
			Total:      moneyOf(c, l.Total),
			Payments:   l.Payments,
			LastPaidAt: nullableTime(l.LastPaidAt),
			Status:     string(l.Status),
		})
	}
	return out
}

func closeReportFromDomain(r ledger.CloseReport) CloseDayResponse {
	return CloseDayResponse{
		Day:       r.Day.Format(dayLayout),
		Processed: r.Processed,
		Closed:    r.Closed,
		Failed:    r.Failed,
	}
}
