package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	// ActorMiddleware, when set, runs before every route except /healthz.
	ActorMiddleware func(http.Handler) http.Handler
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.ActorMiddleware != nil {
		r.Use(opts.ActorMiddleware)
	}

	// Health endpoint is used for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/ledgers", func(r chi.Router) {
		r.Post("/", s.OpenLedger)
		r.Get("/{ledgerId}", s.GetLedger)
		r.Post("/{ledgerId}/entries", s.AppendEntry)
		r.Post("/{ledgerId}/close", s.CloseLedger)
		r.Put("/{ledgerId}/opening", s.UpdateOpening)
		r.Post("/{ledgerId}/reconcile", s.ReconcileLedger)
	})
	r.Post("/days/{day}/close", s.CloseDay)
	r.Post("/days/{day}/reconcile", s.ReconcileDay)

	r.Route("/drivers/{driverId}", func(r chi.Router) {
		r.Get("/ledgers/{day}", s.GetDriverLedger)
		r.Get("/financials", s.GetDriverFinancials)
		r.Get("/statistics", s.GetDriverStatistics)
	})

	r.Route("/fleet", func(r chi.Router) {
		r.Get("/financials", s.GetFleetFinancials)
		r.Get("/transactions", s.ListTransactions)
		r.Get("/payroll", s.GetPayroll)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}
