package runtime

import (
	"fmt"
	"net/http"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/hookflow/internal/runtime/config"
	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
	"github.com/drblury/hookflow/internal/runtime/options"
)

const tracerName = "github.com/drblury/hookflow"

// Strategy is an instance of a class mounted in front of a next handler.
type Strategy struct {
	class   *Class
	next    http.Handler
	options *options.Options
	config  *config.Config
	hooks   DispatchHooks
	tracer  trace.Tracer
}

// New builds a strategy in front of next. A trailing options.Values (or
// map[string]any) argument is deep-merged over the class defaults; the
// remaining arguments fill the options named by Args, left to right.
func (c *Class) New(next http.Handler, args ...any) (*Strategy, error) {
	opts := c.cloneDefaults()

	if n := len(args); n > 0 {
		if values, ok := trailingValues(args[n-1]); ok {
			if err := opts.Merge(values); err != nil {
				return nil, err
			}
			args = args[:n-1]
		}
	}

	for _, name := range c.Args() {
		if len(args) == 0 {
			break
		}
		if err := opts.Set(name, args[0]); err != nil {
			return nil, err
		}
		args = args[1:]
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("%w: %d left over %v", errspkg.ErrWrongArgumentCount, len(args), args)
	}

	return &Strategy{
		class:   c,
		next:    next,
		options: opts,
		config:  config.Global(),
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// MustNew is New that panics on error.
func (c *Class) MustNew(next http.Handler, args ...any) *Strategy {
	s, err := c.New(next, args...)
	if err != nil {
		panic(err)
	}
	return s
}

// trailingValues reports whether arg is an options map: any map keyed by
// strings, including named string key types.
func trailingValues(arg any) (options.Values, bool) {
	switch v := arg.(type) {
	case options.Values:
		return v, true
	case map[string]any:
		return options.Values(v), true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(arg)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	values := make(options.Values, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		values[iter.Key().String()] = iter.Value().Interface()
	}
	return values, true
}

// Class returns the class the strategy was built from.
func (s *Strategy) Class() *Class { return s.class }

// Options returns the instance options.
func (s *Strategy) Options() *options.Options { return s.options }

// Name is the instance name option.
func (s *Strategy) Name() string { return s.options.Name }

// WithConfig makes the strategy read cfg instead of the global configuration.
func (s *Strategy) WithConfig(cfg *config.Config) *Strategy {
	if cfg != nil {
		s.config = cfg
	}
	return s
}

// WithHooks adds dispatch hooks after any already installed.
func (s *Strategy) WithHooks(hooks DispatchHooks) *Strategy {
	s.hooks = s.hooks.Merge(hooks)
	return s
}

// WithMetrics records dispatch outcomes in m.
func (s *Strategy) WithMetrics(m *DispatchMetrics) *Strategy {
	if m != nil {
		s.hooks = s.hooks.Merge(m.Hooks())
	}
	return s
}

// WithTracerProvider traces dispatch with tp instead of the global provider.
func (s *Strategy) WithTracerProvider(tp trace.TracerProvider) *Strategy {
	if tp != nil {
		s.tracer = tp.Tracer(tracerName)
	}
	return s
}

// Next returns a copy of the strategy mounted in front of next.
func (s *Strategy) Next(next http.Handler) *Strategy {
	cp := *s
	cp.next = next
	return &cp
}

func (s *Strategy) pathPrefix() string {
	if s.options.Has(options.KeyPathPrefix) {
		return s.options.PathPrefix
	}
	return s.config.PathPrefix()
}

func (s *Strategy) logger() loggingpkg.ServiceLogger {
	return s.config.Logger().With(loggingpkg.LogFields{"strategy": s.options.Name})
}

func (s *Strategy) nextHandler() http.Handler {
	if s.next == nil {
		return http.NotFoundHandler()
	}
	return s.next
}
