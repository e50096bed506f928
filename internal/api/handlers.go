package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/engine"
	"github.com/pulsewatch/pulsewatch/internal/store"
	"github.com/pulsewatch/pulsewatch/internal/uptime"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HandleHealth reports scheduler liveness
func HandleHealth(scheduler *engine.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if !scheduler.Running() {
			status = http.StatusServiceUnavailable
		}
		respondJSON(w, status, map[string]bool{"running": scheduler.Running()})
	}
}

// HandleSchedulerMetrics returns the process-wide check metrics snapshot
func HandleSchedulerMetrics(scheduler *engine.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, scheduler.Status())
	}
}

// HandleTriggerCheck runs one monitor's check immediately
func HandleTriggerCheck(scheduler *engine.Scheduler, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := scheduler.TriggerCheck(r.Context(), id)
		switch {
		case err == nil:
			respondJSON(w, http.StatusOK, map[string]string{"status": "checked"})
		case errors.Is(err, engine.ErrMonitorNotFound):
			respondError(w, http.StatusNotFound, "monitor not found")
		case errors.Is(err, engine.ErrEntitlementInvalid):
			respondError(w, http.StatusForbidden, "subscription inactive or expired")
		default:
			logger.Error("manual trigger failed", zap.String("monitor_id", id), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "check failed to persist")
		}
	}
}

// HandleMonitorUptime returns per-window uptime stats over the
// monitor's retained log entries
func HandleMonitorUptime(monitors store.MonitorStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		monitor, err := monitors.FindByID(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load monitor")
			return
		}
		if monitor == nil {
			respondError(w, http.StatusNotFound, "monitor not found")
			return
		}

		now := time.Now()
		respondJSON(w, http.StatusOK, map[string]uptime.Stats{
			"24h": uptime.Last24Hours(monitor, now),
			"7d":  uptime.Last7Days(monitor, now),
			"30d": uptime.Last30Days(monitor, now),
		})
	}
}
