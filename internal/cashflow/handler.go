package cashflow

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/capiplan/capiplan/internal/platform/httpx"
	"github.com/capiplan/capiplan/internal/rbac"
	"github.com/capiplan/capiplan/internal/shared"
)

// Handler wires cashflow endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
	dispatch  func()
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, dispatch func()) *Handler {
	if dispatch == nil {
		dispatch = func() {}
	}
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbac,
		validator: validator.New(),
		dispatch:  dispatch,
	}
}

// MountRoutes registers cashflow routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(
			shared.CapCashflowConfirmCM, shared.CapCashflowConfirmGF,
			shared.CapCashflowBook, shared.CapInvestmentCreate, shared.CapInvestmentApprove))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapCashflowConfirmCM, shared.CapCashflowConfirmGF))
		r.Post("/{id}/confirm", h.confirm)
		r.Post("/{id}/unconfirm", h.unconfirm)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.CapCashflowPostpone))
		r.Post("/{id}/postpone", h.postpone)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.CapCashflowCancel))
		r.Post("/{id}/cancel", h.cancel)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.CapCashflowBook))
		r.Post("/{id}/book", h.book)
	})
}

type cashflowResponse struct {
	ID            string    `json:"id"`
	InvestmentID  string    `json:"investment_id"`
	Amount        string    `json:"amount"`
	DueDate       string    `json:"due_date"`
	Month         int       `json:"month"`
	Year          int       `json:"year"`
	Status        string    `json:"status"`
	ConfirmedByCM bool      `json:"confirmed_by_cm"`
	ConfirmedByGF bool      `json:"confirmed_by_gf"`
	BookingRef    string    `json:"booking_ref,omitempty"`
	Revision      int64     `json:"revision"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toResponse(cf Cashflow) cashflowResponse {
	return cashflowResponse{
		ID:            cf.ID.String(),
		InvestmentID:  cf.InvestmentID.String(),
		Amount:        cf.Amount.String(),
		DueDate:       cf.DueDate.Format("2006-01-02"),
		Month:         cf.Month,
		Year:          cf.Year,
		Status:        string(cf.Status),
		ConfirmedByCM: cf.ConfirmedByCM,
		ConfirmedByGF: cf.ConfirmedByGF,
		BookingRef:    cf.BookingRef,
		Revision:      cf.Revision,
		UpdatedAt:     cf.UpdatedAt,
	}
}

type confirmRequest struct {
	By string `json:"by" validate:"required,oneof=CM GF"`
}

type postponeRequest struct {
	DueDate string `json:"due_date" validate:"required"`
}

type bookRequest struct {
	Reference string `json:"reference" validate:"required,max=100"`
}

func (h *Handler) entityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "cashflow id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	q := r.URL.Query()
	req := ListRequest{Status: Status(q.Get("status"))}
	if v := q.Get("investment_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "investment_id must be a UUID")
			return
		}
		req.InvestmentID = id
	}
	req.Year, _ = strconv.Atoi(q.Get("year"))
	req.Month, _ = strconv.Atoi(q.Get("month"))
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	paging := shared.NewPagination(page, perPage, 0)
	req.Limit = paging.PerPage
	req.Offset = paging.Offset()

	rows, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list cashflows", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]cashflowResponse, 0, len(rows))
	for _, cf := range rows {
		out = append(out, toResponse(cf))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	cf, err := h.service.Get(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(cf))
}

func (h *Handler) confirmer(w http.ResponseWriter, r *http.Request) (Confirmer, bool) {
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return "", false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return "", false
	}
	return Confirmer(req.By), true
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	by, ok := h.confirmer(w, r)
	if !ok {
		return
	}
	cf, err := h.service.Confirm(r.Context(), shared.ActorFromContext(r.Context()), id, by)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.dispatch()
	httpx.JSON(w, http.StatusOK, toResponse(cf))
}

func (h *Handler) unconfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	by, ok := h.confirmer(w, r)
	if !ok {
		return
	}
	cf, err := h.service.Unconfirm(r.Context(), shared.ActorFromContext(r.Context()), id, by)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(cf))
}

func (h *Handler) postpone(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	var req postponeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	due, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
		return
	}
	cf, err := h.service.Postpone(r.Context(), shared.ActorFromContext(r.Context()), id, due)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.dispatch()
	httpx.JSON(w, http.StatusOK, toResponse(cf))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	cf, err := h.service.Cancel(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.dispatch()
	httpx.JSON(w, http.StatusOK, toResponse(cf))
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cf, err := h.service.Book(r.Context(), shared.ActorFromContext(r.Context()), id, req.Reference)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.dispatch()
	httpx.JSON(w, http.StatusOK, toResponse(cf))
}
