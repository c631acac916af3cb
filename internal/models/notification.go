package models

import (
	"encoding/json"
	"time"
)

type NotificationSeverity string

const (
	NotificationSeverityInfo    NotificationSeverity = "info"
	NotificationSeverityWarning NotificationSeverity = "warning"
	NotificationSeverityError   NotificationSeverity = "error"
)

type NotificationEvent string

const (
	NotificationEventImportCompleted NotificationEvent = "import_completed"
	NotificationEventImportFailed    NotificationEvent = "import_failed"
)

// Notification is the stored outcome of an import job. A nil UserID addresses every user of
// the tenant.
type Notification struct {
	ID          string               `json:"id" db:"id"`
	TenantID    string               `json:"tenant_id" db:"tenant_id"`
	UserID      *string              `json:"user_id,omitempty" db:"user_id"`
	ImportJobID *string              `json:"import_job_id,omitempty" db:"import_job_id"`
	EventType   NotificationEvent    `json:"event_type" db:"event_type"`
	Severity    NotificationSeverity `json:"severity" db:"severity"`
	Title       string               `json:"title" db:"title"`
	Message     string               `json:"message" db:"message"`
	Metadata    json.RawMessage      `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
	ReadAt      *time.Time           `json:"read_at,omitempty" db:"read_at"`
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UnreadOnly  bool
	ImportJobID string
	Limit       int
}
