package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Scanner produces the exact set of monitors that must run now.
type Scanner struct {
	store    store.MonitorStore
	resolver store.EntitlementResolver
	logger   *zap.Logger
}

// NewScanner creates a due-set scanner
func NewScanner(st store.MonitorStore, resolver store.EntitlementResolver, logger *zap.Logger) *Scanner {
	return &Scanner{store: st, resolver: resolver, logger: logger}
}

// Due returns the monitors eligible to run at now: enabled, past their
// next due time, and owned by a user with a valid entitlement. A monitor
// missing its next due time gets one backfilled and persisted before it
// is considered, restoring the invariant regardless of how it was lost.
func (s *Scanner) Due(ctx context.Context, now time.Time) ([]*models.Monitor, error) {
	candidates, err := s.store.FindDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("scan due monitors: %w", err)
	}

	due := make([]*models.Monitor, 0, len(candidates))
	for _, monitor := range candidates {
		if monitor.NextDue == nil {
			anchor := monitor.CreatedAt
			if monitor.LastChecked != nil {
				anchor = *monitor.LastChecked
			}
			next := monitor.ScheduleNext(anchor)
			monitor.NextDue = &next
			if err := s.store.Save(ctx, monitor); err != nil {
				s.logger.Error("failed to backfill next due time",
					zap.String("monitor_id", monitor.ID),
					zap.Error(err))
				continue
			}
			if next.After(now) {
				continue
			}
		}

		entitlement, err := s.resolver.Resolve(ctx, monitor.UserID)
		if err != nil {
			s.logger.Error("entitlement lookup failed, skipping monitor",
				zap.String("monitor_id", monitor.ID),
				zap.String("user_id", monitor.UserID),
				zap.Error(err))
			continue
		}
		if !entitlement.Valid(now) {
			// Silently excluded, not disabled. The monitor becomes
			// eligible again the moment the subscription is restored.
			continue
		}

		due = append(due, monitor)
	}

	return due, nil
}
