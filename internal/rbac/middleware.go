package rbac

import (
	"log/slog"
	"net/http"

	"github.com/capiplan/capiplan/internal/shared"
)

// Middleware wires capability checks for HTTP handlers. The actor is read
// from the request context populated by the identity middleware.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireAny ensures the actor holds at least one of the capabilities.
func (m Middleware) RequireAny(capabilities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(capabilities) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor.ID == 0 {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, capability := range capabilities {
				if m.Resolver.HasCapability(actor.Roles, capability) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Logger != nil {
				m.Logger.Warn("capability denied",
					slog.Int64("actor", actor.ID),
					slog.Any("capabilities", capabilities))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the actor holds every listed capability.
func (m Middleware) RequireAll(capabilities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor.ID == 0 && len(capabilities) > 0 {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, capability := range capabilities {
				if !m.Resolver.HasCapability(actor.Roles, capability) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
