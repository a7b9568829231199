package audit

import (
	"context"
	"errors"
)

// MultiLogger logs to multiple audit loggers in order
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a new multi-logger that writes to multiple
// destinations. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log logs an audit event to all configured loggers. Every logger is
// attempted; the first error is returned.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Search delegates to the first logger that can read events
func (m *MultiLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	for _, logger := range m.loggers {
		if reader, ok := logger.(Reader); ok {
			return reader.Search(ctx, filter)
		}
	}
	return []*Event{}, nil
}

// Close closes all loggers
func (m *MultiLogger) Close() error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
