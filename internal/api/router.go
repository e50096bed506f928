package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/engine"
	"github.com/pulsewatch/pulsewatch/internal/store"
	"github.com/pulsewatch/pulsewatch/internal/websocket"
)

// NewRouter creates the engine's operational HTTP surface. Monitor CRUD
// lives in the separate API service; this router only exposes health,
// metrics, the manual trigger and the live result feed.
func NewRouter(cfg *config.Config, scheduler *engine.Scheduler, monitors store.MonitorStore, hub *websocket.Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", HandleHealth(scheduler))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", hub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/scheduler/metrics", HandleSchedulerMetrics(scheduler))
		r.Post("/monitors/{id}/check", HandleTriggerCheck(scheduler, logger))
		r.Get("/monitors/{id}/uptime", HandleMonitorUptime(monitors))
	})

	return r
}
