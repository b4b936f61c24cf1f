package notify

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/capiplan/capiplan/internal/platform/httpx"
	"github.com/capiplan/capiplan/internal/shared"
)

// HTTPHandler exposes the delivered-notification read surface and a manual
// drain trigger.
type HTTPHandler struct {
	logger  *slog.Logger
	queue   *Queue
	store   Store
	deliver Handler
}

// NewHTTPHandler constructs the notification HTTP handler.
func NewHTTPHandler(logger *slog.Logger, queue *Queue, store Store, deliver Handler) *HTTPHandler {
	return &HTTPHandler{logger: logger, queue: queue, store: store, deliver: deliver}
}

// MountRoutes registers notification routes.
func (h *HTTPHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/dispatch", h.dispatchNow)
	r.Post("/{id}/read", h.markRead)
}

func (h *HTTPHandler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	role := r.URL.Query().Get("role")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := h.store.ListForRecipient(r.Context(), actor.CompanyID, role, actor.ID, limit)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// dispatchNow drains the pending queue. A drain already in flight yields an
// empty batch and 200, not an error.
func (h *HTTPHandler) dispatchNow(w http.ResponseWriter, r *http.Request) {
	batch, err := h.queue.Process(h.deliver)
	if err != nil {
		h.logger.Error("dispatch notifications", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Delivery Failed", "batch requeued for redelivery")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"dispatched": len(batch)})
}

func (h *HTTPHandler) markRead(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "notification id must be a UUID")
		return
	}
	if err := h.store.MarkRead(r.Context(), actor.CompanyID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
