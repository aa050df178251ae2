package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/Flora-Ebah/kairos-backend/internal/app/finance"
	"github.com/Flora-Ebah/kairos-backend/internal/app/identity"
	"github.com/Flora-Ebah/kairos-backend/internal/app/ledger"
	"github.com/Flora-Ebah/kairos-backend/internal/app/reconciliation"
	"github.com/Flora-Ebah/kairos-backend/internal/domain"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/currency"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/clock"
	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/idempotency"
)

// IdempotencyKeyHeader carries the caller's retry key on entry appends.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxBodyBytes = 1 << 20

type Server struct {
	Ledgers  *ledger.Service
	Checker  *reconciliation.Checker
	Resolver *identity.Resolver
	Finance  *finance.Engine
	Idem     idempotency.Store
	Money    currency.Converter
	Clock    clock.Clock
	Log      *slog.Logger
}

func NewServer(ledgers *ledger.Service, checker *reconciliation.Checker, resolver *identity.Resolver, fin *finance.Engine, idem idempotency.Store, money currency.Converter, clk clock.Clock, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Ledgers:  ledgers,
		Checker:  checker,
		Resolver: resolver,
		Finance:  fin,
		Idem:     idem,
		Money:    money,
		Clock:    clk,
		Log:      log,
	}
}

// decodeBody reads a JSON request body. It returns false after writing a 422 when the body is unusable.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unreadable request body", nil)
		return nil, false
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing request body", nil)
		return nil, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "malformed request body", map[string]any{"body": err.Error()})
		return nil, false
	}
	return raw, true
}

// pathParam binds a simple-style path parameter.
func pathParam(w http.ResponseWriter, r *http.Request, name string, dst any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dst, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid path parameter", map[string]any{name: err.Error()})
		return false
	}
	return true
}

// queryParam binds an optional form-style query parameter into dst, a pointer to a nil pointer.
func queryParam(w http.ResponseWriter, r *http.Request, name string, dst any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dst); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid query parameter", map[string]any{name: err.Error()})
		return false
	}
	return true
}

func (s *Server) parseAmount(field string, in DecimalInput) (domain.Amount, error) {
	v := strings.TrimSpace(string(in))
	if v == "" {
		return 0, fieldError(field, "required")
	}
	a, err := s.Money.ParseMajor(v)
	if err != nil {
		return 0, fieldError(field, err.Error())
	}
	return a, nil
}

func (s *Server) parseDay(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return s.Ledgers.Day(s.Clock.Now()), nil
	}
	d, err := time.ParseInLocation(dayLayout, v, s.Clock.Location())
	if err != nil {
		return time.Time{}, fieldError(field, "must be a date (YYYY-MM-DD)")
	}
	return d, nil
}

type validationError struct {
	details map[string]any
}

func (e *validationError) Error() string { return "invalid request" }

func fieldError(field, problem string) error {
	return &validationError{details: map[string]any{field: problem}}
}

// writeFailure writes request-shape errors as 422 and everything else through writeAppError.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", ve.Error(), ve.details)
		return
	}
	writeAppError(w, r, s.Log, err)
}

func hashBody(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func sourceOf(p *string) domain.IdentitySource {
	if p == nil {
		return ""
	}
	return domain.IdentitySource(strings.ToLower(strings.TrimSpace(*p)))
}
