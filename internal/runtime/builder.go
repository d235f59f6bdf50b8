package runtime

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/drblury/hookflow/internal/runtime/config"
	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
	"github.com/drblury/hookflow/internal/runtime/options"
)

// Builder composes several strategies, plus any other middleware, into one
// handler chain.
type Builder struct {
	options     options.Values
	middlewares chi.Middlewares
	strategies  []*Strategy

	config  *config.Config
	hooks   DispatchHooks
	metrics *DispatchMetrics
}

func NewBuilder() *Builder {
	return &Builder{options: options.Values{}}
}

// Options sets values merged into every provider added afterwards.
func (b *Builder) Options(values options.Values) *Builder {
	b.options = values.Clone()
	if b.options == nil {
		b.options = options.Values{}
	}
	return b
}

// WithConfig makes providers added afterwards read cfg.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.config = cfg
	return b
}

// WithHooks installs hooks on providers added afterwards.
func (b *Builder) WithHooks(hooks DispatchHooks) *Builder {
	b.hooks = b.hooks.Merge(hooks)
	return b
}

// WithMetrics records dispatch metrics for providers added afterwards.
func (b *Builder) WithMetrics(m *DispatchMetrics) *Builder {
	b.metrics = m
	return b
}

// Provider appends a strategy. provider is a *Class or the name of a
// declared class. Builder options are merged under a trailing
// options.Values argument, or appended as one when there is none.
func (b *Builder) Provider(provider any, args ...any) (*Strategy, error) {
	class, err := resolveClass(provider)
	if err != nil {
		return nil, err
	}

	args = append([]any(nil), args...)
	if n := len(args); n > 0 {
		if values, ok := trailingValues(args[n-1]); ok {
			args[n-1] = options.DeepMerge(b.options, values)
		} else {
			args = append(args, b.options.Clone())
		}
	} else {
		args = append(args, b.options.Clone())
	}

	s, err := class.New(nil, args...)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", class.Name(), err)
	}
	s.WithConfig(b.config).WithHooks(b.hooks).WithMetrics(b.metrics)

	b.strategies = append(b.strategies, s)
	b.middlewares = append(b.middlewares, func(next http.Handler) http.Handler {
		return s.Next(next)
	})
	return s, nil
}

func resolveClass(provider any) (*Class, error) {
	switch p := provider.(type) {
	case *Class:
		if p == nil {
			return nil, errspkg.ErrUnknownStrategy
		}
		return p, nil
	case string:
		if c, ok := LookupStrategy(p); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w for %q; you may need to import an additional strategy package (such as github.com/drblury/hookflow/strategies/%s)",
			errspkg.ErrUnknownStrategy, p, strings.ToLower(p))
	default:
		return nil, fmt.Errorf("%w: provider must be a *Class or a name, got %T", errspkg.ErrUnknownStrategy, provider)
	}
}

// Use appends arbitrary middleware.
func (b *Builder) Use(middlewares ...func(http.Handler) http.Handler) *Builder {
	b.middlewares = append(b.middlewares, middlewares...)
	return b
}

// Strategies returns the strategies added so far.
func (b *Builder) Strategies() []*Strategy {
	return append([]*Strategy(nil), b.strategies...)
}

// Handler wraps next with every provider and middleware in the order they
// were added; the first one added sees requests first.
func (b *Builder) Handler(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return chi.Chain(b.middlewares...).Handler(next)
}
