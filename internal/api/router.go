package api

import (
	"net/http"

	"github.com/bcnelson/helpdesk-settings/internal/api/handler"
	"github.com/bcnelson/helpdesk-settings/internal/api/middleware"
	"github.com/bcnelson/helpdesk-settings/internal/connection"
	"github.com/bcnelson/helpdesk-settings/internal/navigation"
	"github.com/bcnelson/helpdesk-settings/internal/notify"
	"github.com/bcnelson/helpdesk-settings/internal/service"
	"github.com/bcnelson/helpdesk-settings/internal/telemetry"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	settings *service.SettingsService,
	guard *navigation.Guard,
	tester connection.TesterInterface,
	recorder *notify.Recorder,
	gatherer prometheus.Gatherer,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger, metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)

		// Sections
		sectionHandler := handler.NewSectionHandler(settings)
		r.Get("/sections", sectionHandler.List)
		r.Route("/sections/{name}", func(r chi.Router) {
			r.Get("/", sectionHandler.Get)
			r.Patch("/", sectionHandler.Update)
			r.Post("/save", sectionHandler.Save)
			r.Post("/revert", sectionHandler.Revert)
			r.Post("/reload", sectionHandler.Reload)
			r.Post("/toggle", sectionHandler.Toggle)
		})

		// SLA policies and ticket priorities
		slaHandler := handler.NewSLAHandler(settings)
		r.Get("/sla/policies", slaHandler.ListPolicies)
		r.Put("/sla/policies", slaHandler.SavePolicy)
		r.Get("/priorities", slaHandler.ListPriorities)

		// Section switch guard
		navHandler := handler.NewNavigationHandler(guard, settings)
		r.Get("/navigation", navHandler.Get)
		r.Post("/navigation/switch", navHandler.Switch)
		r.Post("/navigation/confirm", navHandler.Confirm)
		r.Post("/navigation/cancel", navHandler.Cancel)

		// Connection tests
		connHandler := handler.NewConnectionHandler(tester)
		r.Post("/connections/test", connHandler.Test)

		// Notifications
		notificationHandler := handler.NewNotificationHandler(recorder)
		r.Get("/notifications", notificationHandler.List)
	})

	return otelhttp.NewHandler(r, "helpdesk-settings")
}
