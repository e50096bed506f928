package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/checker"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Recorder folds a check outcome into a monitor's run-state and
// persists it.
type Recorder struct {
	store    store.MonitorStore
	resolver store.EntitlementResolver
	logger   *zap.Logger
}

// NewRecorder creates an outcome recorder
func NewRecorder(st store.MonitorStore, resolver store.EntitlementResolver, logger *zap.Logger) *Recorder {
	return &Recorder{store: st, resolver: resolver, logger: logger}
}

// Record appends a log entry for the outcome, recomputes the monitor's
// derived fields and persists everything in one write. It runs for
// failed checks too, so a monitor always leaves with a fresh next due
// time.
func (r *Recorder) Record(ctx context.Context, monitor *models.Monitor, outcome checker.Outcome, now time.Time) error {
	entry := models.CheckLogEntry{
		Timestamp:        now,
		Status:           models.StatusError,
		LatencyMs:        outcome.LatencyMs,
		StatusCode:       outcome.StatusCode,
		ResponseBody:     outcome.RawBody,
		Message:          outcome.Message,
		ValidationPassed: outcome.ValidationPassed,
	}
	if outcome.Success {
		entry.Status = models.StatusSuccess
	}
	monitor.Logs = append(monitor.Logs, entry)

	monitor.LastStatus = entry.Status
	checked := now
	monitor.LastChecked = &checked
	next := monitor.ScheduleNext(now)
	monitor.NextDue = &next

	retention := models.RetentionFree
	entitlement, err := r.resolver.Resolve(ctx, monitor.UserID)
	if err != nil {
		r.logger.Warn("entitlement lookup failed, using free-tier retention",
			zap.String("monitor_id", monitor.ID),
			zap.Error(err))
	} else {
		retention = entitlement.RetentionCap()
	}
	monitor.Logs = TruncateLogs(monitor.Logs, retention)
	monitor.Uptime = UptimePercent(monitor.Logs)

	if err := r.store.Save(ctx, monitor); err != nil {
		return fmt.Errorf("record outcome for monitor %s: %w", monitor.ID, err)
	}
	return nil
}

// TruncateLogs keeps the newest max entries, dropping the oldest first.
func TruncateLogs(logs []models.CheckLogEntry, max int) []models.CheckLogEntry {
	if max <= 0 || len(logs) <= max {
		return logs
	}
	return logs[len(logs)-max:]
}

// UptimePercent computes the success ratio over the retained window,
// rounded to one decimal place. The window is whatever retention left
// behind, not all-time history.
func UptimePercent(logs []models.CheckLogEntry) float64 {
	if len(logs) == 0 {
		return 0
	}
	success := 0
	for _, entry := range logs {
		if entry.Status == models.StatusSuccess {
			success++
		}
	}
	return math.Round(float64(success)/float64(len(logs))*1000) / 10
}
