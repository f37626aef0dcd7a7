package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dairyops/dairyops/internal/billing"
	"github.com/dairyops/dairyops/internal/catalog"
	"github.com/dairyops/dairyops/internal/cattle"
	"github.com/dairyops/dairyops/internal/customers"
	"github.com/dairyops/dairyops/internal/ledger"
	"github.com/dairyops/dairyops/internal/observability"
	"github.com/dairyops/dairyops/internal/scheduler"
	"github.com/dairyops/dairyops/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CustomersHandler *customers.Handler
	CatalogHandler   *catalog.Handler
	SchedulerHandler *scheduler.Handler
	BillingHandler   *billing.Handler
	LedgerHandler    *ledger.Handler
	CattleHandler    *cattle.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.CustomersHandler != nil {
			r.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.CatalogHandler != nil {
			r.Route("/products", params.CatalogHandler.MountRoutes)
		}
		if params.SchedulerHandler != nil {
			r.Route("/deliveries", params.SchedulerHandler.MountRoutes)
		}
		if params.BillingHandler != nil {
			r.Route("/invoices", params.BillingHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.CattleHandler != nil {
			r.Route("/cattle", params.CattleHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
