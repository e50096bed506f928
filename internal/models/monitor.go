package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Check status values stored on monitors and log entries.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPending = "pending"
)

// Protocol kinds.
const (
	TypeHTTP = "http"
	TypeTCP  = "tcp"
	TypeICMP = "icmp"
)

// Monitor represents a user's check configuration and its run-state.
// Config fields are only written by the API; run-state fields are only
// written by the engine.
type Monitor struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID string `json:"user_id" gorm:"not null;index"`
	Name   string `json:"name" gorm:"not null"`

	Type            string            `json:"type" gorm:"not null;index"`
	URL             string            `json:"url" gorm:"not null"`
	Method          string            `json:"method" gorm:"default:'GET'"`
	Headers         map[string]string `json:"headers" gorm:"serializer:json"`
	Body            string            `json:"body"`
	ValidationRule  string            `json:"validation_rule"`
	ValidationValue string            `json:"validation_value"`
	Port            int               `json:"port"`
	TimeoutSeconds  int               `json:"timeout_seconds" gorm:"default:5"`
	PacketCount     int               `json:"packet_count" gorm:"default:3"`
	IntervalMinutes int               `json:"interval_minutes" gorm:"default:5"`
	Enabled         bool              `json:"enabled" gorm:"default:true;index"`

	LastChecked *time.Time      `json:"last_checked"`
	LastStatus  string          `json:"last_status" gorm:"default:'pending'"`
	NextDue     *time.Time      `json:"next_due" gorm:"index"`
	Uptime      float64         `json:"uptime"`
	Logs        []CheckLogEntry `json:"logs" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Monitor
func (Monitor) TableName() string {
	return "monitors"
}

// BeforeCreate hook to assign an id when none was provided
func (m *Monitor) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ScheduleNext computes the next due time from the given anchor. Checks
// are scheduled one minute before the nominal interval elapses so the
// minute-granularity due scan does not drift a full interval behind.
func (m *Monitor) ScheduleNext(anchor time.Time) time.Time {
	interval := m.IntervalMinutes
	if interval < 1 {
		interval = 1
	}
	return anchor.Add(time.Duration(interval-1) * time.Minute)
}

// CheckLogEntry is an immutable record of one executed check. Entries
// are appended by the engine and never edited.
type CheckLogEntry struct {
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
	LatencyMs        int64     `json:"latency_ms"`
	StatusCode       *int      `json:"status_code,omitempty"`
	ResponseBody     string    `json:"response_body,omitempty"`
	Message          string    `json:"message,omitempty"`
	ValidationPassed *bool     `json:"validation_passed,omitempty"`
}
