package httpapi

import (
	"net/http"
	"strings"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

// ActorHeader carries the operator or integration performing the request.
const ActorHeader = "X-Actor-Id"

// NewActorMiddleware stores the request actor in context.
//
// The actor is taken from X-Actor-Id, falling back to defaultActor (if provided).
// Authentication happens upstream of this service; the actor is recorded, not verified.
func NewActorMiddleware(defaultActor string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health endpoint is deliberately actor-free.
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			actor := strings.TrimSpace(r.Header.Get(ActorHeader))
			if actor == "" {
				actor = strings.TrimSpace(defaultActor)
			}
			if actor == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor (set "+ActorHeader+")", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), domain.ActorID(actor))))
		})
	}
}
