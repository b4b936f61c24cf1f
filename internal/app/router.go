package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/capiplan/capiplan/internal/audit/http"
	"github.com/capiplan/capiplan/internal/cashflow"
	"github.com/capiplan/capiplan/internal/investment"
	"github.com/capiplan/capiplan/internal/notify"
	"github.com/capiplan/capiplan/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	InvestmentHandler   *investment.Handler
	CashflowHandler     *cashflow.Handler
	NotificationHandler *notify.HTTPHandler
	AuditHandler        *audithttp.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with Capiplan defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/investments", params.InvestmentHandler.MountRoutes)
	r.Route("/cashflows", params.CashflowHandler.MountRoutes)
	r.Route("/notifications", params.NotificationHandler.MountRoutes)
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
