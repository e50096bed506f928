package store

import (
	"context"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// MonitorStore is the persistence contract the engine depends on.
type MonitorStore interface {
	// FindDue returns enabled monitors whose next due time has elapsed,
	// including monitors with no next due time at all so the scanner can
	// backfill them.
	FindDue(ctx context.Context, now time.Time) ([]*models.Monitor, error)

	// FindAll returns every monitor, enabled or not.
	FindAll(ctx context.Context) ([]*models.Monitor, error)

	// FindByID returns the monitor with the given id, or nil when it
	// does not exist.
	FindByID(ctx context.Context, id string) (*models.Monitor, error)

	// Save persists the monitor's config and run-state in one write.
	Save(ctx context.Context, monitor *models.Monitor) error
}

// EntitlementResolver resolves a user's subscription standing.
type EntitlementResolver interface {
	Resolve(ctx context.Context, userID string) (models.Entitlement, error)
}
