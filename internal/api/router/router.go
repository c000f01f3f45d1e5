package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/clinic-decision-core/internal/clinic"
	"github.com/wolfman30/clinic-decision-core/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-decision-core/internal/http/middleware"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	AdminAuthSecret string
	MetricsHandler  http.Handler

	AutoAccept     *handlers.AutoAcceptHandler
	Decisions      *handlers.DecisionsHandler
	Communications *handlers.CommunicationsHandler
	ClinicHours    *clinic.Handler
	ClinicStats    *clinic.StatsHandler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/admin/orgs/{orgID}", func(org chi.Router) {
		org.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		org.Use(requireOrgID)
		if cfg.AutoAccept != nil {
			cfg.AutoAccept.RegisterRoutes(org)
		}
		if cfg.Decisions != nil {
			cfg.Decisions.RegisterRoutes(org)
		}
		if cfg.Communications != nil {
			cfg.Communications.RegisterRoutes(org)
		}
		if cfg.ClinicHours != nil {
			cfg.ClinicHours.RegisterRoutes(org)
		}
		if cfg.ClinicStats != nil {
			cfg.ClinicStats.RegisterRoutes(org)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
