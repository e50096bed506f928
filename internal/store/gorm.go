package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// GormStore implements MonitorStore on a gorm database handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a monitor store backed by the given database
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindDue(ctx context.Context, now time.Time) ([]*models.Monitor, error) {
	var monitors []*models.Monitor
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("next_due IS NULL OR next_due <= ?", now).
		Find(&monitors).Error
	if err != nil {
		return nil, fmt.Errorf("find due monitors: %w", err)
	}
	return monitors, nil
}

func (s *GormStore) FindAll(ctx context.Context) ([]*models.Monitor, error) {
	var monitors []*models.Monitor
	if err := s.db.WithContext(ctx).Find(&monitors).Error; err != nil {
		return nil, fmt.Errorf("find all monitors: %w", err)
	}
	return monitors, nil
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.Monitor, error) {
	var monitor models.Monitor
	err := s.db.WithContext(ctx).First(&monitor, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find monitor %s: %w", id, err)
	}
	return &monitor, nil
}

func (s *GormStore) Save(ctx context.Context, monitor *models.Monitor) error {
	if err := s.db.WithContext(ctx).Save(monitor).Error; err != nil {
		return fmt.Errorf("save monitor %s: %w", monitor.ID, err)
	}
	return nil
}

// GormEntitlementResolver reads entitlements from the subscriptions table.
type GormEntitlementResolver struct {
	db *gorm.DB
}

// NewGormEntitlementResolver creates a resolver backed by the given database
func NewGormEntitlementResolver(db *gorm.DB) *GormEntitlementResolver {
	return &GormEntitlementResolver{db: db}
}

// Resolve returns the user's entitlement. A user without a subscription
// row falls back to an active free plan.
func (r *GormEntitlementResolver) Resolve(ctx context.Context, userID string) (models.Entitlement, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Entitlement{Active: true, Plan: models.PlanFree}, nil
	}
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("resolve entitlement for user %s: %w", userID, err)
	}
	return models.Entitlement{
		Active:    sub.Active,
		ExpiresAt: sub.ExpiresAt,
		Plan:      sub.Plan,
	}, nil
}
