package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack trace.
// Call it directly in a defer statement:
//
//	defer observability.RecoverPanic(logger, "invite notifier")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
	}
}

// LogPanic logs an already recovered panic value
func LogPanic(logger *Logger, context string, r interface{}) {
	logPanic(logger, context, r)
}

func logPanic(logger *Logger, context string, r interface{}) {
	logger.WithField("panic", fmt.Sprint(r)).
		WithField("stack", string(debug.Stack())).
		WithField("context", context).
		Error("PANIC recovered")
}

// PanicError converts a recovered value into an error. It returns nil for nil.
func PanicError(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
