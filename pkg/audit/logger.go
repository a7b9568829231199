package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/glossa-dev/glossa/pkg/contextkeys"
	"github.com/glossa-dev/glossa/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the logger
	Close() error
}

// Reader searches recorded audit events
type Reader interface {
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	// Return a no-op logger if none is set
	return NoOpLogger{}
}

// NewEvent builds an event stamped with a fresh id, the current time and
// the request id carried by ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: observability.GetRequestID(ctx),
	}
}

// Record logs an event and reports failures through the structured logger
// instead of the caller. Audit failures never fail the audited operation.
func Record(ctx context.Context, logger Logger, event *Event) {
	if logger == nil || event == nil {
		return
	}
	if err := logger.Log(ctx, event); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("event_type", string(event.EventType)).
			Error("failed to write audit event")
	}
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

func (NoOpLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

func (NoOpLogger) Close() error {
	return nil
}

// LogLogger writes audit events to the structured application log. It is
// used when no audit database is configured.
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates an audit logger backed by the application logger
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger}
}

// Log writes the event as one structured log line
func (l *LogLogger) Log(ctx context.Context, event *Event) error {
	fields := map[string]interface{}{
		"audit":      true,
		"event_id":   event.EventID,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	l.logger.WithFields(fields).Info(event.Message)
	return nil
}

// Close is a no-op
func (l *LogLogger) Close() error {
	return nil
}
