// Package options holds the option set carried by strategy classes and instances.
package options

import (
	"fmt"
	"net/http"

	"github.com/drblury/hookflow/internal/runtime/bus"
	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
)

// Well-known option keys.
const (
	KeyName               = "name"
	KeyPathPrefix         = "path_prefix"
	KeyRequestPath        = "request_path"
	KeyNamespaceDelimiter = "namespace_delimiter"
	KeyBackend            = "backend"
	KeyAdapter            = "adapter"
)

// RequestMatcher decides per request whether a strategy handles it.
type RequestMatcher func(r *http.Request) bool

// Options is a strategy's option set. Well-known keys are typed fields;
// anything else lives in Extra.
type Options struct {
	Name               string
	PathPrefix         string
	RequestPath        string
	RequestMatcher     RequestMatcher
	NamespaceDelimiter string
	Backend            bus.Backend
	Adapter            bus.Adapter
	Extra              Values

	present map[string]struct{}
}

// Has reports whether key has been assigned.
func (o *Options) Has(key string) bool {
	if _, ok := o.present[key]; ok {
		return true
	}
	_, ok := o.Extra[key]
	return ok
}

// Set assigns one option. Well-known keys are type checked and a nil value
// clears them; other keys keep nil as a present value.
func (o *Options) Set(key string, value any) error {
	if value == nil && isWellKnown(key) {
		o.clear(key)
		return nil
	}

	switch key {
	case KeyName, KeyPathPrefix, KeyNamespaceDelimiter:
		s, ok := value.(string)
		if !ok {
			return invalid(key, value, "a string")
		}
		switch key {
		case KeyName:
			o.Name = s
		case KeyPathPrefix:
			o.PathPrefix = s
		default:
			o.NamespaceDelimiter = s
		}
	case KeyRequestPath:
		switch v := value.(type) {
		case string:
			o.RequestPath, o.RequestMatcher = v, nil
		case RequestMatcher:
			o.RequestPath, o.RequestMatcher = "", v
		case func(*http.Request) bool:
			o.RequestPath, o.RequestMatcher = "", v
		default:
			return invalid(key, value, "a string or func(*http.Request) bool")
		}
	case KeyBackend:
		b, ok := value.(bus.Backend)
		if !ok {
			return invalid(key, value, "a bus.Backend")
		}
		o.Backend = b
	case KeyAdapter:
		switch v := value.(type) {
		case bus.Adapter:
			o.Adapter = v
		case func(bus.PayloadSubscriber) bus.Subscriber:
			o.Adapter = v
		default:
			return invalid(key, value, "a bus.Adapter")
		}
	default:
		if o.Extra == nil {
			o.Extra = Values{}
		}
		o.Extra[key] = cloneValue(value)
		return nil
	}

	o.mark(key)
	return nil
}

// Get returns the value stored under key.
func (o *Options) Get(key string) (any, bool) {
	if !o.Has(key) {
		return nil, false
	}
	switch key {
	case KeyName:
		return o.Name, true
	case KeyPathPrefix:
		return o.PathPrefix, true
	case KeyRequestPath:
		if o.RequestMatcher != nil {
			return o.RequestMatcher, true
		}
		return o.RequestPath, true
	case KeyNamespaceDelimiter:
		return o.NamespaceDelimiter, true
	case KeyBackend:
		return o.Backend, true
	case KeyAdapter:
		return o.Adapter, true
	default:
		v, ok := o.Extra[key]
		return v, ok
	}
}

// String returns the string stored under key, or "" when absent or not a string.
func (o *Options) String(key string) string {
	v, _ := o.Get(key)
	s, _ := v.(string)
	return s
}

// Merge deep-merges values into the option set.
func (o *Options) Merge(values Values) error {
	for key, value := range values {
		if isWellKnown(key) {
			if err := o.Set(key, value); err != nil {
				return err
			}
			continue
		}
		if o.Extra == nil {
			o.Extra = Values{}
		}
		o.Extra.Merge(Values{key: value})
	}
	return nil
}

// Clone returns an independent copy. Backends and adapters are shared.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	out := *o
	out.Extra = o.Extra.Clone()
	out.present = make(map[string]struct{}, len(o.present))
	for k := range o.present {
		out.present[k] = struct{}{}
	}
	return &out
}

// Values flattens the option set into a mapping.
func (o *Options) Values() Values {
	out := o.Extra.Clone()
	if out == nil {
		out = Values{}
	}
	for key := range o.present {
		out[key], _ = o.Get(key)
	}
	return out
}

func (o *Options) mark(key string) {
	if o.present == nil {
		o.present = make(map[string]struct{})
	}
	o.present[key] = struct{}{}
}

func (o *Options) clear(key string) {
	delete(o.present, key)
	switch key {
	case KeyName:
		o.Name = ""
	case KeyPathPrefix:
		o.PathPrefix = ""
	case KeyRequestPath:
		o.RequestPath, o.RequestMatcher = "", nil
	case KeyNamespaceDelimiter:
		o.NamespaceDelimiter = ""
	case KeyBackend:
		o.Backend = nil
	case KeyAdapter:
		o.Adapter = nil
	default:
		delete(o.Extra, key)
	}
}

func isWellKnown(key string) bool {
	switch key {
	case KeyName, KeyPathPrefix, KeyRequestPath, KeyNamespaceDelimiter, KeyBackend, KeyAdapter:
		return true
	}
	return false
}

func invalid(key string, value any, want string) error {
	return fmt.Errorf("%w: %s must be %s, got %T", errspkg.ErrInvalidOption, key, want, value)
}
