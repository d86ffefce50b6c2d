// Package router assembles the HTTP API.
package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/burnbox/server/internal/api/http/handler"
	"github.com/burnbox/server/internal/api/http/middleware"
	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/metrics"
)

// Pinger reports backend health for the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Secrets   *handler.SecretHandler
	Reminders *handler.ReminderHandler
	Store     Pinger
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
}

func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", cfg.Secrets.Insert)
		r.Get("/messages/{uniqueID}", cfg.Secrets.Peek)
		r.Post("/messages/{uniqueID}/redeem", cfg.Secrets.Redeem)

		r.Get("/reminders/unviewed", cfg.Reminders.Unviewed)
		r.Post("/reminders", cfg.Reminders.Record)
		r.Get("/reminders/{messageID}", cfg.Reminders.History)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := cfg.Store.Ping(req.Context()); err != nil {
			cfg.Logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
