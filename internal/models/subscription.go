package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan tiers.
const (
	PlanFree    = "free"
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// Log retention caps per plan tier.
const (
	RetentionFree    = 100
	RetentionBasic   = 300
	RetentionPremium = 500
)

// Subscription is the persisted billing record for a user. The engine
// never writes it and only reads it through the Entitlement view.
type Subscription struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string     `json:"user_id" gorm:"not null;uniqueIndex"`
	Plan      string     `json:"plan" gorm:"default:'free'"`
	Active    bool       `json:"active" gorm:"default:true"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}

// BeforeCreate hook to assign an id when none was provided
func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Entitlement is a read-only view of a user's subscription standing.
type Entitlement struct {
	Active    bool
	ExpiresAt *time.Time
	Plan      string
}

// Valid reports whether the owner may run checks at the given instant.
func (e Entitlement) Valid(now time.Time) bool {
	if !e.Active {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// RetentionCap returns the maximum number of check log entries kept for
// the plan tier. Unknown plans fall back to the free tier.
func (e Entitlement) RetentionCap() int {
	switch e.Plan {
	case PlanPremium:
		return RetentionPremium
	case PlanBasic:
		return RetentionBasic
	default:
		return RetentionFree
	}
}
