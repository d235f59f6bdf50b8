package runtime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/hookflow/internal/runtime/metadata"
)

// Response is what a strategy answers for a request it handled. Header and
// Body are always empty.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r Response) write(w http.ResponseWriter) {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(r.Status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}

// ServeHTTP handles requests on the strategy path with an allowed method and
// hands everything else to the next handler untouched.
func (s *Strategy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, handled := s.Dispatch(r)
	if !handled {
		s.nextHandler().ServeHTTP(w, r)
		return
	}
	resp.write(w)
}

// Dispatch runs the strategy against r. handled is false when the request
// belongs to the next handler; the caller is then responsible for passing it on.
func (s *Strategy) Dispatch(r *http.Request) (resp Response, handled bool) {
	ctx := newContext(s, r)
	info := DispatchContext{
		Strategy:  s.Name(),
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
		Context:   r.Context(),
		StartedAt: time.Now(),
	}

	if !s.onRequestPath(ctx) || !s.config.MethodAllowed(r.Method) {
		if s.hooks.OnPassThrough != nil {
			s.runHook("OnPassThrough", func() { s.hooks.OnPassThrough(info) })
		}
		return Response{}, false
	}

	if s.hooks.OnDispatchStart != nil {
		s.runHook("OnDispatchStart", func() { s.hooks.OnDispatchStart(info) })
	}

	err := s.instrument(ctx, &info)
	info.Duration = time.Since(info.StartedAt)
	if err != nil {
		s.logger().Error(fmt.Sprintf("(%s) %s", s.Name(), err.Error()), err, loggingpkg.LogFields{
			"event":      info.EventName,
			"request_id": info.RequestID,
		})
		if s.hooks.OnDispatchError != nil {
			s.runHook("OnDispatchError", func() { s.hooks.OnDispatchError(info, err) })
		}
		return Response{Status: http.StatusInternalServerError, Header: http.Header{}}, true
	}

	if s.hooks.OnDispatchDone != nil {
		s.runHook("OnDispatchDone", func() { s.hooks.OnDispatchDone(info) })
	}
	return Response{Status: http.StatusOK, Header: http.Header{}}, true
}

// onRequestPath treats a panicking request matcher as a miss.
func (s *Strategy) onRequestPath(ctx *Context) (matched bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("%w: %v", errspkg.ErrMatcherPanic, recovered)
			s.logger().Error(fmt.Sprintf("(%s) %s", s.Name(), err.Error()), err, loggingpkg.LogFields{
				"path": ctx.Request().URL.Path,
			})
			matched = false
		}
	}()
	return ctx.OnRequestPath()
}

// runHook calls a dispatch hook. A panic is logged and does not change the
// response; hooks chained after the panicking one are skipped.
func (s *Strategy) runHook(name string, fn func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("%w: %s: %v", errspkg.ErrHookPanic, name, recovered)
			s.logger().Error(fmt.Sprintf("(%s) %s", s.Name(), err.Error()), err, loggingpkg.LogFields{
				"hook": name,
			})
		}
	}()
	fn()
}

// instrument extracts the event and its type and publishes the event when
// one was found. Panics in extractors or subscribers come back as errors.
func (s *Strategy) instrument(ctx *Context, info *DispatchContext) (err error) {
	spanCtx, span := s.tracer.Start(ctx.Context(), "hookflow.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("hookflow.strategy", s.Name()),
			attribute.String("http.request.method", info.Method),
			attribute.String("url.path", info.Path),
		),
	)
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", errspkg.ErrDispatchPanic, recovered)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	events, err := s.class.EventStack(ctx)
	if err != nil {
		return err
	}
	eventTypes, err := s.class.EventTypeStack(ctx)
	if err != nil {
		return err
	}

	var payload any
	if len(events) > 0 {
		payload = events[len(events)-1]
	}
	if len(eventTypes) > 0 {
		info.EventType = eventTypes[len(eventTypes)-1]
	}
	info.EventName = namespaceFor(s.options).Call(info.EventType)
	span.SetAttributes(attribute.String("hookflow.event", info.EventName))

	if payload == nil {
		return nil
	}

	md := metadatapkg.New(metadatapkg.KeySource, ctx.RequestPath()).
		With(metadatapkg.KeyCorrelationID, info.RequestID)
	if err := publish(spanCtx, s.options, info.EventType, payload, md); err != nil {
		return err
	}
	info.Published = true
	return nil
}
