package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace. It
// must be called directly in a defer statement:
//
//	defer observability.RecoverPanic(logger, "audit retention")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		LogPanic(logger, where, r)
	}
}

// LogPanic logs a value already obtained from recover
func LogPanic(logger *Logger, where string, value interface{}) {
	if logger == nil {
		logger = DefaultLogger()
	}
	logger.WithField("panic", fmt.Sprint(value)).
		WithField("stack", string(debug.Stack())).
		WithField("context", where).
		Error("PANIC recovered")
}

// MustRecover converts a recovered value into an error, or nil when no
// panic occurred
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
