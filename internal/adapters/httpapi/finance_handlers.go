package httpapi

import (
	"net/http"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/Flora-Ebah/kairos-backend/internal/app/finance"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

// period reads ?from=&to= as business-local calendar days. Both default to today; to defaults to from.
func (s *Server) period(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var from, to *openapi_types.Date
	if !queryParam(w, r, "from", &from) || !queryParam(w, r, "to", &to) {
		return time.Time{}, time.Time{}, false
	}
	loc := s.Clock.Location()
	start := s.Ledgers.Day(s.Clock.Now())
	if from != nil {
		start = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	}
	end := start
	if to != nil {
		end = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)
	}
	if end.Before(start) {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid period", map[string]any{"to": "must not be before from"})
		return time.Time{}, time.Time{}, false
	}
	start, end = s.Finance.Period(start, end)
	return start, end, true
}

// resolveDriver reads {driverId} and ?source= and resolves the canonical driver.
func (s *Server) resolveDriver(w http.ResponseWriter, r *http.Request) (domain.CanonicalDriver, bool) {
	var driverID string
	if !pathParam(w, r, "driverId", &driverID) {
		return domain.CanonicalDriver{}, false
	}
	var source *string
	if !queryParam(w, r, "source", &source) {
		return domain.CanonicalDriver{}, false
	}
	d, err := s.Resolver.Resolve(r.Context(), domain.DriverRef{ID: domain.DriverID(strings.TrimSpace(driverID)), Source: sourceOf(source)})
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return domain.CanonicalDriver{}, false
	}
	return d, true
}

func (s *Server) GetDriverFinancials(w http.ResponseWriter, r *http.Request) {
	driver, ok := s.resolveDriver(w, r)
	if !ok {
		return
	}
	start, end, ok := s.period(w, r)
	if !ok {
		return
	}
	snap, err := s.Finance.ComputeDriverFinancials(r.Context(), driver, start, end)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, driverFinancialsFromDomain(s.Money, snap))
}

func (s *Server) GetDriverStatistics(w http.ResponseWriter, r *http.Request) {
	driver, ok := s.resolveDriver(w, r)
	if !ok {
		return
	}
	start, end, ok := s.period(w, r)
	if !ok {
		return
	}
	stats, err := s.Finance.DriverStatistics(r.Context(), driver, start, end)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsFromDomain(s.Money, stats))
}

func (s *Server) GetFleetFinancials(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.period(w, r)
	if !ok {
		return
	}
	fleet, err := s.Finance.ComputeFleetFinancials(r.Context(), start, end)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, fleetFromDomain(s.Money, fleet))
}

// ListTransactions handles GET /fleet/transactions?kind=all|revenue|expense&category=.
func (s *Server) ListTransactions(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.period(w, r)
	if !ok {
		return
	}
	var kind, category *string
	if !queryParam(w, r, "kind", &kind) || !queryParam(w, r, "category", &category) {
		return
	}
	var f finance.TransactionFilter
	if kind != nil {
		if k := strings.ToLower(strings.TrimSpace(*kind)); k != "all" {
			f.Kind = domain.TransactionKind(k)
		}
	}
	if category != nil {
		f.Category = strings.TrimSpace(*category)
	}
	txs, err := s.Finance.ConsolidatedTransactions(r.Context(), start, end, f)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionFromDomain(s.Money, t))
	}
	writeJSON(w, http.StatusOK, struct {
		Transactions []Transaction `json:"transactions"`
	}{Transactions: out})
}

func (s *Server) GetPayroll(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.period(w, r)
	if !ok {
		return
	}
	p, err := s.Finance.Payroll(r.Context(), start, end)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, payrollFromDomain(s.Money, p))
}
