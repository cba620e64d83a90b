// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// recoverGoroutine is SafeGo's panic-recovery body, factored out so both the
// fire-and-forget launchers below and SafeGoroutineFunc (for callers that
// already own the goroutine, e.g. an errgroup.Group) log and account for a
// panic identically.
func recoverGoroutine(logger arbor.ILogger, name string) {
	if r := recover(); r != nil {
		recoverFromValue(logger, name, r)
	}
}

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the service.
// Use this for async operations like event publishing where failure should not be fatal.
//
// Example:
//
//	common.SafeGo(logger, "publishEvent", func() {
//	    eventService.Publish(ctx, event)
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer recoverGoroutine(logger, name)
		fn()
	}()
}

// SafeGoroutineFunc wraps fn with SafeGo's panic recovery for callers that
// already manage their own goroutine lifecycle (e.g. errgroup.Group.Go's
// bounded fan-out), where SafeGo's own "go func(){...}()" would sidestep the
// caller's concurrency limit and wait semantics. A recovered panic is
// reported through onPanic instead of being re-raised, so the caller can
// degrade the one failed unit of work exactly like an ordinary error.
func SafeGoroutineFunc(logger arbor.ILogger, name string, fn func() error, onPanic func(recovered any)) (err error) {
	atomic.AddInt64(&goroutineCounter, 1)
	defer func() {
		if r := recover(); r != nil {
			recoverFromValue(logger, name, r)
			if onPanic != nil {
				onPanic(r)
			}
		}
	}()
	return fn()
}

// recoverFromValue logs an already-recovered panic value (no crash file),
// shared by recoverGoroutine and SafeGoroutineFunc so both report a panic
// identically regardless of who called recover().
func recoverFromValue(logger arbor.ILogger, name string, r any) {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", stackTrace).
			Msg("Recovered from panic in goroutine - continuing service operation")
	} else {
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stackTrace)
	}

	writeCrashLog(name, r, stackTrace)
}

// SafeGoWithContext runs a function in a goroutine with panic recovery and context support.
// The goroutine will exit if the context is cancelled.
//
// Example:
//
//	common.SafeGoWithContext(ctx, logger, "backgroundTask", func() {
//	    // long-running task
//	})
func SafeGoWithContext(ctx context.Context, logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer recoverGoroutine(logger, name)

		// Check context before running
		select {
		case <-ctx.Done():
			if logger != nil {
				logger.Debug().Str("goroutine", name).Msg("Goroutine cancelled before start")
			}
			return
		default:
		}

		fn()
	}()
}

// writeCrashLog is a no-op hook for non-fatal goroutine panics: it writes no
// file, and such panics are recorded only by recoverFromValue's log line.
func writeCrashLog(goroutineName string, panicVal interface{}, stackTrace string) {
	// For non-fatal panics, we just log - don't create a crash file
	// The logger should capture this adequately
	// If we wanted persistent crash logs, we could write here
}
