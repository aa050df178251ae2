package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Flora-Ebah/kairos-backend/internal/app/ledger"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/idempotency"
)

const appendEntryRoute = "/ledgers/{ledgerId}/entries"

type ReconcileDayResponse struct {
	Day       string              `json:"day"`
	Checked   int                 `json:"checked"`
	Corrected int                 `json:"corrected"`
	Results   []ReconcileResponse `json:"results"`
}

// OpenLedger handles POST /ledgers: get-or-create the driver's ledger for a day.
func (s *Server) OpenLedger(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req OpenLedgerRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	day, err := s.parseDay("day", req.Day)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	opening := domain.Amount(0)
	if strings.TrimSpace(string(req.OpeningAmount)) != "" {
		if opening, err = s.parseAmount("openingAmount", req.OpeningAmount); err != nil {
			s.writeFailure(w, r, err)
			return
		}
	}

	driver := domain.DriverRef{ID: domain.DriverID(strings.TrimSpace(req.DriverID)), Source: domain.IdentitySource(req.DriverSource)}
	l, err := s.Ledgers.GetOrCreateDailyLedger(r.Context(), driver, day, opening, actor)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerFromDomain(s.Money, l))
}

func (s *Server) GetLedger(w http.ResponseWriter, r *http.Request) {
	var id string
	if !pathParam(w, r, "ledgerId", &id) {
		return
	}
	l, err := s.Ledgers.Get(r.Context(), domain.LedgerID(id))
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerFromDomain(s.Money, l))
}

// GetDriverLedger handles GET /drivers/{driverId}/ledgers/{day}?source=.
func (s *Server) GetDriverLedger(w http.ResponseWriter, r *http.Request) {
	var driverID, dayParam string
	if !pathParam(w, r, "driverId", &driverID) || !pathParam(w, r, "day", &dayParam) {
		return
	}
	var source *string
	if !queryParam(w, r, "source", &source) {
		return
	}
	day, err := s.parseDay("day", dayParam)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	l, err := s.Ledgers.GetForDriverDay(r.Context(), domain.DriverRef{ID: domain.DriverID(driverID), Source: sourceOf(source)}, day)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerFromDomain(s.Money, l))
}

// AppendEntry handles POST /ledgers/{ledgerId}/entries.
//
// With an Idempotency-Key header, a retry with the same payload replays the stored response
// and a retry with a different payload is rejected with 409.
func (s *Server) AppendEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := ActorFromContext(ctx)

	var id string
	if !pathParam(w, r, "ledgerId", &id) {
		return
	}
	var req AppendEntryRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	amount, err := s.parseAmount("amount", req.Amount)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	in := ledger.NewEntry{
		Type:            domain.EntryType(strings.ToLower(strings.TrimSpace(req.Type))),
		Amount:          amount,
		Description:     strings.TrimSpace(req.Description),
		LinkedTripID:    optionalID[domain.TripID](req.LinkedTripID),
		LinkedExpenseID: optionalID[domain.ExpenseID](req.LinkedExpenseID),
		CreatedBy:       actor,
	}

	idemKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	var respFP idempotency.Fingerprint
	if s.Idem != nil && idemKey != "" {
		bodyHash, err := hashAppendEntry(id, in)
		if err != nil {
			writeAppError(w, r, s.Log, err)
			return
		}
		metaFP := idempotency.Fingerprint{
			Key:    idempotency.Key(idemKey),
			Actor:  actor,
			Method: http.MethodPost,
			Route:  appendEntryRoute,
		}
		if meta, ok, err := s.Idem.Get(ctx, metaFP); err != nil {
			writeAppError(w, r, s.Log, err)
			return
		} else if ok {
			if string(meta.Body) != bodyHash {
				writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
				return
			}
		} else {
			_ = s.Idem.Put(ctx, metaFP, idempotency.Record{
				StatusCode:  0,
				ContentType: "text/plain",
				Body:        []byte(bodyHash),
				CreatedAt:   s.Clock.Now().UTC(),
			})
		}

		respFP = metaFP
		respFP.BodyHash = bodyHash
		if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
			writeAppError(w, r, s.Log, err)
			return
		} else if ok && rec.StatusCode == http.StatusCreated && strings.HasPrefix(rec.ContentType, "application/json") {
			s.Log.InfoContext(ctx, "idempotent_replay", "route", appendEntryRoute, "ledger_id", id)
			w.Header().Set("Content-Type", rec.ContentType)
			w.Header().Set("Idempotent-Replay", "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}
	}

	l, err := s.Ledgers.AppendEntry(ctx, domain.LedgerID(id), in)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	resp := ledgerFromDomain(s.Money, l)

	if respFP.BodyHash != "" {
		if b, err := json.Marshal(resp); err == nil {
			// Stored exactly as writeJSON emits it so replays are byte-identical.
			_ = s.Idem.Put(ctx, respFP, idempotency.Record{
				StatusCode:  http.StatusCreated,
				ContentType: "application/json",
				Body:        append(b, '\n'),
				CreatedAt:   s.Clock.Now().UTC(),
			})
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) CloseLedger(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var id string
	if !pathParam(w, r, "ledgerId", &id) {
		return
	}
	var req CloseLedgerRequest
	if r.ContentLength != 0 {
		if _, ok := decodeBody(w, r, &req); !ok {
			return
		}
	}
	notes, _ := req.Notes.Get()
	l, err := s.Ledgers.Close(r.Context(), domain.LedgerID(id), notes, actor)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerFromDomain(s.Money, l))
}

func (s *Server) UpdateOpening(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var id string
	if !pathParam(w, r, "ledgerId", &id) {
		return
	}
	var req UpdateOpeningRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	amount, err := s.parseAmount("openingAmount", req.OpeningAmount)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	l, err := s.Ledgers.UpdateOpeningAmount(r.Context(), domain.LedgerID(id), amount, actor)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerFromDomain(s.Money, l))
}

// ReconcileLedger handles POST /ledgers/{ledgerId}/reconcile. A repaired drift is reported, not failed.
func (s *Server) ReconcileLedger(w http.ResponseWriter, r *http.Request) {
	var id string
	if !pathParam(w, r, "ledgerId", &id) {
		return
	}
	res, err := s.Checker.Reconcile(r.Context(), domain.LedgerID(id))
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileFromResult(s.Money, res))
}

// CloseDay handles POST /days/{day}/close: closes every active ledger of the day.
func (s *Server) CloseDay(w http.ResponseWriter, r *http.Request) {
	var dayParam string
	if !pathParam(w, r, "day", &dayParam) {
		return
	}
	day, err := s.parseDay("day", dayParam)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	rep, err := s.Ledgers.CloseActiveForDay(r.Context(), day, "")
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, closeReportFromDomain(rep))
}

// ReconcileDay handles POST /days/{day}/reconcile.
func (s *Server) ReconcileDay(w http.ResponseWriter, r *http.Request) {
	var dayParam string
	if !pathParam(w, r, "day", &dayParam) {
		return
	}
	day, err := s.parseDay("day", dayParam)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	rep, err := s.Checker.ReconcileDay(r.Context(), day)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	out := ReconcileDayResponse{
		Day:       rep.Day.Format(dayLayout),
		Checked:   rep.Checked,
		Corrected: rep.Corrected,
		Results:   make([]ReconcileResponse, 0, len(rep.Results)),
	}
	for _, res := range rep.Results {
		out.Results = append(out.Results, reconcileFromResult(s.Money, res))
	}
	writeJSON(w, http.StatusOK, out)
}

func hashAppendEntry(ledgerID string, in ledger.NewEntry) (string, error) {
	canon := struct {
		LedgerID        string  `json:"ledgerId"`
		Type            string  `json:"type"`
		Amount          int64   `json:"amount"`
		Description     string  `json:"description"`
		LinkedTripID    *string `json:"linkedTripId,omitempty"`
		LinkedExpenseID *string `json:"linkedExpenseId,omitempty"`
	}{
		LedgerID:    ledgerID,
		Type:        string(in.Type),
		Amount:      int64(in.Amount),
		Description: in.Description,
	}
	if in.LinkedTripID != nil {
		v := string(*in.LinkedTripID)
		canon.LinkedTripID = &v
	}
	if in.LinkedExpenseID != nil {
		v := string(*in.LinkedExpenseID)
		canon.LinkedExpenseID = &v
	}
	return hashBody(canon)
}
