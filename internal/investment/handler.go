package investment

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/capiplan/capiplan/internal/platform/httpx"
	"github.com/capiplan/capiplan/internal/rbac"
	"github.com/capiplan/capiplan/internal/shared"
)

// Handler wires investment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
	// dispatch kicks the notification drain after successful mutations.
	dispatch func()
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

// MountRoutes registers investment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.CapInvestmentCreate, shared.CapInvestmentApprove, shared.CapInvestmentClose))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/approvals", h.approvals)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.CapInvestmentCreate))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.CapInvestmentSubmit))
		r.Post("/{id}/submit", h.submit)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.CapInvestmentApprove))
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.CapInvestmentClose))
		r.Post("/{id}/close", h.close)
	})
}

func (h *Handler) entityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "investment id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	paging := shared.NewPagination(page, perPage, 0)
	req := ListRequest{
		Status:   Status(q.Get("status")),
		Category: Category(q.Get("category")),
		Limit:    paging.PerPage,
		Offset:   paging.Offset(),
	}
	invs, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list investments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]investmentResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Detail(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := detailResponse{Investment: toResponse(detail.Investment)}
	for _, a := range detail.Approvals {
		out.Approvals = append(out.Approvals, toApprovalResponse(a))
	}
	if detail.ActiveApproval != nil {
		active := toApprovalResponse(*detail.ActiveApproval)
		out.ActiveApproval = &active
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) approvals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	records, err := h.service.Approvals(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]approvalResponse, 0, len(records))
	for _, a := range records {
		out = append(out, toApprovalResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
		return
	}
	payments, err := parsePayments(req.PlannedPayments)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.Create(r.Context(), shared.ActorFromContext(r.Context()), CreateInput{
		Name:            req.Name,
		Category:        Category(req.Category),
		Financing:       FinancingType(req.Financing),
		Amount:          amount,
		PlannedPayments: payments,
	})
	if err != nil {
		h.logger.Error("create investment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(inv))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := UpdateDraftInput{
		Name:      req.Name,
		Category:  Category(req.Category),
		Financing: FinancingType(req.Financing),
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
			return
		}
		in.Amount = amount
	}
	payments, err := parsePayments(req.PlannedPayments)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in.PlannedPayments = payments
	inv, err := h.service.UpdateDraft(r.Context(), shared.ActorFromContext(r.Context()), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Submit(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.dispatch()
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) decisionInput(w http.ResponseWriter, r *http.Request) (DecisionInput, bool) {
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return DecisionInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return DecisionInput{}, false
	}
	in := DecisionInput{Comment: req.Comment, Conditions: req.Conditions}
	if req.ValidUntil != "" {
		t, err := time.Parse("2006-01-02", req.ValidUntil)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "valid_until must be YYYY-MM-DD")
			return DecisionInput{}, false
		}
		in.ValidUntil = &t
	}
	return in, true
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	in, ok := h.decisionInput(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Approve(r.Context(), shared.ActorFromContext(r.Context()), id, in)
	if err != nil {
		h.logger.Error("approve investment", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	h.dispatch()
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	in, ok := h.decisionInput(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Reject(r.Context(), shared.ActorFromContext(r.Context()), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.dispatch()
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Close(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}
