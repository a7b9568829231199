package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DBLogger implements audit logging to the audit_logs table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger. The audit_logs
// table is created by the service migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (
			event_id, timestamp, event_type, status,
			actor_id, resource_type, resource_id,
			request_id, message, metadata
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10
		) RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		event.EventID, event.Timestamp, string(event.EventType), string(event.Status),
		event.ActorID, string(event.ResourceType), event.ResourceID,
		event.RequestID, event.Message, metadataJSON,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Search returns events matching filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT
			id, event_id, timestamp, event_type, status,
			actor_id, resource_type, resource_id,
			request_id, message, metadata
		FROM audit_logs
		WHERE 1=1
	`

	args := []interface{}{}
	where := func(clause string, value interface{}) {
		args = append(args, value)
		query += " AND " + clause + " $" + strconv.Itoa(len(args))
	}

	// Build WHERE clause based on filters
	if filter.StartTime != nil {
		where("timestamp >=", *filter.StartTime)
	}
	if filter.EndTime != nil {
		where("timestamp <=", *filter.EndTime)
	}
	if filter.ActorID != nil {
		where("actor_id =", *filter.ActorID)
	}
	if filter.EventType != "" {
		where("event_type =", string(filter.EventType))
	}
	if filter.Status != "" {
		where("status =", string(filter.Status))
	}
	if filter.ResourceType != "" {
		where("resource_type =", string(filter.ResourceType))
	}
	if filter.ResourceID != "" {
		where("resource_id =", filter.ResourceID)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	// Add pagination
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		var (
			event        Event
			actorID      sql.NullInt64
			resourceType sql.NullString
			resourceID   sql.NullString
			requestID    sql.NullString
			message      sql.NullString
			metadata     []byte
			eventType    string
			status       string
		)

		if err := rows.Scan(
			&event.ID, &event.EventID, &event.Timestamp, &eventType, &status,
			&actorID, &resourceType, &resourceID,
			&requestID, &message, &metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		event.EventType = EventType(eventType)
		event.Status = EventStatus(status)
		if actorID.Valid {
			id := actorID.Int64
			event.ActorID = &id
		}
		event.ResourceType = ResourceType(resourceType.String)
		event.ResourceID = resourceID.String
		event.RequestID = requestID.String
		event.Message = message.String

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}

// Cleanup removes audit logs older than the retention period
func (l *DBLogger) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	if policy.RetentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -policy.RetentionDays)

	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit logs: %w", err)
	}

	return result.RowsAffected()
}

// Close closes the logger. The database handle is owned by the caller.
func (l *DBLogger) Close() error {
	return nil
}
