package runtime

import (
	"context"
	"time"

	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
)

// Dispatch outcomes reported to hooks and metrics.
const (
	OutcomePublished   = "published"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
	OutcomePassThrough = "passed_through"
)

// DispatchContext describes one request seen by a strategy.
type DispatchContext struct {
	// Strategy is the name of the strategy instance.
	Strategy string
	// Method and Path come from the inbound request.
	Method string
	Path   string
	// RequestID is the chi request id, when the RequestID middleware ran.
	RequestID string
	// EventType and EventName are set once extraction succeeded.
	EventType string
	EventName string
	// Published is true when an event was handed to the backend.
	Published bool
	// Context is the request context.
	Context   context.Context
	StartedAt time.Time
	// Duration is only set in OnDispatchDone and OnDispatchError.
	Duration time.Duration
}

// Outcome summarises how the request ended.
func (d DispatchContext) Outcome() string {
	if d.Published {
		return OutcomePublished
	}
	return OutcomeSkipped
}

// DispatchHooks are optional callbacks around dispatch. Nil hooks are skipped.
type DispatchHooks struct {
	// OnDispatchStart runs once the request matched path and method.
	OnDispatchStart func(ctx DispatchContext)

	// OnDispatchDone runs after a 200 response was decided.
	OnDispatchDone func(ctx DispatchContext)

	// OnDispatchError runs after extraction or publishing failed.
	OnDispatchError func(ctx DispatchContext, err error)

	// OnPassThrough runs before a request is handed to the next handler.
	OnPassThrough func(ctx DispatchContext)
}

// Merge returns hooks that call h first and then other.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnDispatchStart: chainHooks(h.OnDispatchStart, other.OnDispatchStart),
		OnDispatchDone:  chainHooks(h.OnDispatchDone, other.OnDispatchDone),
		OnDispatchError: chainErrorHooks(h.OnDispatchError, other.OnDispatchError),
		OnPassThrough:   chainHooks(h.OnPassThrough, other.OnPassThrough),
	}
}

func chainHooks(a, b func(DispatchContext)) func(DispatchContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(DispatchContext, error)) func(DispatchContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// LoggingHooks logs dispatch at debug level. Failures are already logged by
// the strategy itself, so OnDispatchError is left unset.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	return DispatchHooks{
		OnDispatchStart: func(ctx DispatchContext) {
			logger.Debug("Webhook received", loggingpkg.LogFields{
				"strategy":   ctx.Strategy,
				"method":     ctx.Method,
				"path":       ctx.Path,
				"request_id": ctx.RequestID,
			})
		},
		OnDispatchDone: func(ctx DispatchContext) {
			logger.Debug("Webhook dispatched", loggingpkg.LogFields{
				"strategy":    ctx.Strategy,
				"event":       ctx.EventName,
				"outcome":     ctx.Outcome(),
				"duration_ms": ctx.Duration.Milliseconds(),
				"request_id":  ctx.RequestID,
			})
		},
		OnPassThrough: func(ctx DispatchContext) {
			logger.Trace("Request passed through", loggingpkg.LogFields{
				"strategy": ctx.Strategy,
				"method":   ctx.Method,
				"path":     ctx.Path,
			})
		},
	}
}

// MetricsHooks forwards dispatch outcomes to caller supplied counters.
func MetricsHooks(onStart, onDone, onError func(strategy string)) DispatchHooks {
	return DispatchHooks{
		OnDispatchStart: func(ctx DispatchContext) {
			if onStart != nil {
				onStart(ctx.Strategy)
			}
		},
		OnDispatchDone: func(ctx DispatchContext) {
			if onDone != nil {
				onDone(ctx.Strategy)
			}
		},
		OnDispatchError: func(ctx DispatchContext, err error) {
			if onError != nil {
				onError(ctx.Strategy)
			}
		},
	}
}
