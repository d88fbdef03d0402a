package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian-erp/internal/accounts"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	"github.com/meridian-erp/meridian-erp/internal/guard"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/opening"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Metrics         *observability.Metrics
	AccountsHandler *accounts.Handler
	LedgerHandler   *ledger.Handler
	GuardHandler    *guard.Handler
	AssetsHandler   *assets.Handler
	OpeningHandler  *opening.Handler
	SequenceHandler *sequence.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
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
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			r.Route("/journal-entries", params.LedgerHandler.MountRoutes)
		}
		if params.GuardHandler != nil {
			r.Route("/guard", params.GuardHandler.MountRoutes)
		}
		if params.AssetsHandler != nil {
			r.Route("/assets", params.AssetsHandler.MountRoutes)
		}
		if params.OpeningHandler != nil {
			r.Route("/opening-entry", params.OpeningHandler.MountRoutes)
		}
		if params.SequenceHandler != nil {
			r.Route("/sequences", params.SequenceHandler.MountRoutes)
		}
	})

	return r
}
