package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Role administration events
	EventTypeRoleCreate            EventType = "authz.role_create"
	EventTypeRoleUpdate            EventType = "authz.role_update"
	EventTypeRoleDelete            EventType = "authz.role_delete"
	EventTypeRolePermissionsAssign EventType = "authz.role_permissions_assign"
	EventTypeUserRolesAssign       EventType = "authz.user_roles_assign"

	// Gate events
	EventTypeAccessDenied EventType = "authz.access_denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource an event concerns
type ResourceType string

const (
	ResourceTypeRole       ResourceType = "role"
	ResourceTypeUser       ResourceType = "user"
	ResourceTypePermission ResourceType = "permission"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	EventID   string      `json:"event_id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	ActorID *int64 `json:"actor_id,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`

	// Additional details
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	ActorID      *int64
	EventType    EventType
	Status       EventStatus
	ResourceType ResourceType
	ResourceID   string

	// Pagination
	Limit  int
	Offset int
}

// RetentionPolicy defines how long audit logs are kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit logs
	RetentionDays int

	// Schedule is the cron expression the cleanup runs on
	Schedule string
}

// DefaultRetentionPolicy returns the default policy: 90 days, cleaned nightly
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays: 90,
		Schedule:      "0 3 * * *",
	}
}
