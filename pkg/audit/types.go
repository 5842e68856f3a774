package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// EventTypeElevation records a granted SuperAdmin elevation
	EventTypeElevation EventType = "superadmin.elevation"

	// EventTypeAccessDenied records an ordinary authorization deny
	EventTypeAccessDenied EventType = "authz.access_denied"
)

// Event is a single immutable audit log entry. Every granted elevation
// produces exactly one of these (best-effort: a sink failure is logged but
// never blocks the request).
type Event struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	EventType      EventType `json:"event_type"`
	UserID         int64     `json:"user_id"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	Action         string    `json:"action"`
	IPAddress      string    `json:"ip_address,omitempty"`
	Method         string    `json:"method,omitempty"`
	Path           string    `json:"path,omitempty"`
	Context        string    `json:"context,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// RetentionPolicy defines how long audit logs are kept
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy returns the default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}
