package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers from a panic and logs it with its stack
//
// Usage in defer statements:
//
//	go func() {
//	    defer observability.RecoverPanic(log, "profile hydration")
//	    // ... code that might panic
//	}()
//
// The panic is not re-raised.
func RecoverPanic(log logrus.FieldLogger, task string) {
	if r := recover(); r != nil {
		log.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("task", task).
			Error("PANIC recovered")
	}
}

// PanicError converts a recovered value to an error, or nil when there was
// no panic
//
//	defer func() {
//	    if perr := observability.PanicError(recover()); perr != nil {
//	        err = perr
//	    }
//	}()
func PanicError(r any) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
