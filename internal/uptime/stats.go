package uptime

import (
	"math"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Stats summarizes a monitor's retained check history over a window.
type Stats struct {
	MonitorID     string  `json:"monitor_id"`
	Window        string  `json:"window"`
	UptimePercent float64 `json:"uptime_percent"`
	TotalChecks   int     `json:"total_checks"`
	SuccessChecks int     `json:"success_checks"`
	FailedChecks  int     `json:"failed_checks"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}

// Last24Hours computes stats for the last 24 hours
func Last24Hours(monitor *models.Monitor, now time.Time) Stats {
	return ForPeriod(monitor, "24h", 24*time.Hour, now)
}

// Last7Days computes stats for the last 7 days
func Last7Days(monitor *models.Monitor, now time.Time) Stats {
	return ForPeriod(monitor, "7d", 7*24*time.Hour, now)
}

// Last30Days computes stats for the last 30 days
func Last30Days(monitor *models.Monitor, now time.Time) Stats {
	return ForPeriod(monitor, "30d", 30*24*time.Hour, now)
}

// ForPeriod computes stats over the log entries recorded within the
// window ending at now. Only the retained entries are available, so a
// long window may cover fewer checks than actually ran.
func ForPeriod(monitor *models.Monitor, window string, duration time.Duration, now time.Time) Stats {
	cutoff := now.Add(-duration)

	stats := Stats{MonitorID: monitor.ID, Window: window}
	var latencySum int64
	for _, entry := range monitor.Logs {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalChecks++
		latencySum += entry.LatencyMs
		if entry.Status == models.StatusSuccess {
			stats.SuccessChecks++
		} else {
			stats.FailedChecks++
		}
	}

	if stats.TotalChecks > 0 {
		stats.UptimePercent = math.Round(float64(stats.SuccessChecks)/float64(stats.TotalChecks)*1000) / 10
		stats.AvgLatencyMs = float64(latencySum) / float64(stats.TotalChecks)
	}

	return stats
}
