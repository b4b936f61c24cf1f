package audithttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/capiplan/capiplan/internal/audit"
	"github.com/capiplan/capiplan/internal/platform/httpx"
	"github.com/capiplan/capiplan/internal/rbac"
	"github.com/capiplan/capiplan/internal/shared"
)

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *audit.Service
	rbac    rbac.Middleware
}

// NewHandler constructs the audit HTTP handler.
func NewHandler(logger *slog.Logger, service *audit.Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapAuditView))
		r.Get("/timeline", h.timeline)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	q := r.URL.Query()

	filters := audit.TimelineFilters{
		CompanyID: actor.CompanyID,
		Entity:    q.Get("entity"),
		EntityID:  q.Get("entity_id"),
	}
	if v := q.Get("actor_id"); v != "" {
		filters.ActorID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
