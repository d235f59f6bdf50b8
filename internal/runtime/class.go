package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/drblury/hookflow/internal/runtime/bus"
	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
	metadatapkg "github.com/drblury/hookflow/internal/runtime/metadata"
	"github.com/drblury/hookflow/internal/runtime/namespace"
	"github.com/drblury/hookflow/internal/runtime/options"
)

// EventTypeFunc classifies a request, for example "push" or "invoice.paid".
type EventTypeFunc func(c *Context) (string, error)

// EventFunc extracts the payload published for a request. A nil payload
// means there is nothing to publish.
type EventFunc func(c *Context) (any, error)

// SetupFunc configures a class right after it is registered.
type SetupFunc func(c *Class) error

// extractorGeneration changes whenever any class changes an extractor, which
// invalidates every cached chain.
var extractorGeneration atomic.Uint64

// Class is a strategy definition. Classes form a single-inheritance chain:
// defaults, positional argument names and extractors of an ancestor apply to
// every descendant unless the descendant overrides them.
type Class struct {
	parent *Class

	mu        sync.RWMutex
	defaults  *options.Options
	args      []string
	argsSet   bool
	eventType EventTypeFunc
	event     EventFunc
	chains    chainCache
}

type chainCache struct {
	valid      bool
	generation uint64
	eventTypes []EventTypeFunc
	events     []EventFunc
}

// Define registers a new root class named name and runs setup against it.
// The class is registered before any setup function runs, so a failing setup
// still leaves it in the registry.
func Define(name string, setup ...SetupFunc) (*Class, error) {
	if name == "" {
		return nil, errspkg.ErrStrategyNameRequired
	}
	c := &Class{}
	defaultRegistry.add(c)

	defaults := c.DefaultOptions()
	for key, value := range map[string]any{
		options.KeyName:               name,
		options.KeyBackend:            bus.Backend(bus.Default()),
		options.KeyAdapter:            bus.Adapter(bus.NotificationAdapter),
		options.KeyNamespaceDelimiter: namespace.DefaultDelimiter,
	} {
		if err := defaults.Set(key, value); err != nil {
			return c, err
		}
	}
	return c, c.runSetup(setup)
}

// MustDefine is Define that panics on error. It suits package-level strategy
// declarations.
func MustDefine(name string, setup ...SetupFunc) *Class {
	c, err := Define(name, setup...)
	if err != nil {
		panic(err)
	}
	return c
}

// Extend registers a class derived from c. An empty name keeps the parent's
// name, and with it the parent's namespace and request path.
func (c *Class) Extend(name string, setup ...SetupFunc) (*Class, error) {
	child := &Class{parent: c}
	defaultRegistry.add(child)

	if name != "" {
		if err := child.Option(options.KeyName, name); err != nil {
			return child, err
		}
	}
	return child, child.runSetup(setup)
}

func (c *Class) runSetup(setup []SetupFunc) error {
	for _, fn := range setup {
		if err := c.Configure(fn); err != nil {
			return err
		}
	}
	return nil
}

// Parent returns the class c was extended from, or nil for a root class.
func (c *Class) Parent() *Class { return c.parent }

// Name is the resolved name default.
func (c *Class) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultsLocked().Name
}

func (c *Class) String() string {
	return fmt.Sprintf("hookflow.Class(%s)", c.Name())
}

// DefaultOptions returns this class's mutable defaults. On first access they
// are materialized as a deep copy of the parent's resolved defaults; later
// changes to the parent do not reach a class that has already materialized.
func (c *Class) DefaultOptions() *options.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultsLocked()
}

func (c *Class) defaultsLocked() *options.Options {
	if c.defaults == nil {
		if c.parent != nil {
			c.defaults = c.parent.cloneDefaults()
		} else {
			c.defaults = &options.Options{}
		}
	}
	return c.defaults
}

func (c *Class) cloneDefaults() *options.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultsLocked().Clone()
}

// Option sets one default. A nil value clears a well-known option.
func (c *Class) Option(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultsLocked().Set(key, value)
}

// ConfigureOptions deep-merges values into the defaults.
func (c *Class) ConfigureOptions(values options.Values) error {
	if values == nil {
		return fmt.Errorf("%w: nil option values", errspkg.ErrConfigureInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultsLocked().Merge(values)
}

// ConfigureOptionsFunc hands the mutable defaults to fn.
func (c *Class) ConfigureOptionsFunc(fn func(*options.Options) error) error {
	if fn == nil {
		return fmt.Errorf("%w: nil option function", errspkg.ErrConfigureInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.defaultsLocked())
}

// Configure runs fn against the class. It groups setup such as subscriptions
// that does not fit a single option.
func (c *Class) Configure(fn SetupFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil setup function", errspkg.ErrConfigureInput)
	}
	return fn(c)
}

// SetArgs names the options filled by positional constructor arguments.
// Calling it replaces the inherited list entirely.
func (c *Class) SetArgs(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.args = append([]string(nil), names...)
	c.argsSet = true
}

// Args returns the positional argument names, inherited from the nearest
// ancestor that set them.
func (c *Class) Args() []string {
	for k := c; k != nil; k = k.parent {
		k.mu.RLock()
		if k.argsSet {
			out := append([]string(nil), k.args...)
			k.mu.RUnlock()
			return out
		}
		k.mu.RUnlock()
	}
	return nil
}

// SetEventType installs this level's event type extractor. Nil removes it.
func (c *Class) SetEventType(fn EventTypeFunc) {
	c.mu.Lock()
	c.eventType = fn
	c.mu.Unlock()
	extractorGeneration.Add(1)
}

// EventType returns the extractor defined at this level only.
func (c *Class) EventType() (EventTypeFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventType, c.eventType != nil
}

// SetEvent installs this level's event extractor. Nil removes it.
func (c *Class) SetEvent(fn EventFunc) {
	c.mu.Lock()
	c.event = fn
	c.mu.Unlock()
	extractorGeneration.Add(1)
}

// Event returns the extractor defined at this level only.
func (c *Class) Event() (EventFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.event, c.event != nil
}

// EventTypeStack evaluates every event type extractor from the root class down
// to c and returns the results in that order.
func (c *Class) EventTypeStack(ctx *Context) ([]string, error) {
	chain, _ := c.extractorChains()
	out := make([]string, 0, len(chain))
	for _, fn := range chain {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// EventStack evaluates every event extractor from the root class down to c.
func (c *Class) EventStack(ctx *Context) ([]any, error) {
	_, chain := c.extractorChains()
	out := make([]any, 0, len(chain))
	for _, fn := range chain {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Class) extractorChains() ([]EventTypeFunc, []EventFunc) {
	generation := extractorGeneration.Load()

	c.mu.RLock()
	cached := c.chains
	c.mu.RUnlock()
	if cached.valid && cached.generation == generation {
		return cached.eventTypes, cached.events
	}

	var lineage []*Class
	for k := c; k != nil; k = k.parent {
		lineage = append(lineage, k)
	}

	var eventTypes []EventTypeFunc
	var events []EventFunc
	for i := len(lineage) - 1; i >= 0; i-- {
		k := lineage[i]
		k.mu.RLock()
		if k.eventType != nil {
			eventTypes = append(eventTypes, k.eventType)
		}
		if k.event != nil {
			events = append(events, k.event)
		}
		k.mu.RUnlock()
	}

	c.mu.Lock()
	c.chains = chainCache{valid: true, generation: generation, eventTypes: eventTypes, events: events}
	c.mu.Unlock()
	return eventTypes, events
}

// Namespace derives the event namespace from the name and delimiter defaults.
func (c *Class) Namespace() namespace.Namespace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return namespaceFor(c.defaultsLocked())
}

func namespaceFor(opts *options.Options) namespace.Namespace {
	return namespace.New(opts.Name, opts.NamespaceDelimiter)
}

func (c *Class) backendAndAdapter() (bus.Backend, bus.Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defaults := c.defaultsLocked()
	return defaults.Backend, defaults.Adapter
}

// Subscribe calls fn with the payload of every event published under
// Namespace().Call(name) or any name extending it.
func (c *Class) Subscribe(name string, fn bus.PayloadSubscriber) (func(), error) {
	if fn == nil {
		return nil, errspkg.ErrSubscriberRequired
	}
	backend, adapter := c.backendAndAdapter()
	if backend == nil {
		return nil, errspkg.ErrBackendRequired
	}
	if adapter == nil {
		adapter = bus.NotificationAdapter
	}
	return backend.Subscribe(c.Namespace().Matcher(name), adapter(fn)), nil
}

// All calls fn with every event published under this class's namespace.
func (c *Class) All(fn bus.Subscriber) (func(), error) {
	if fn == nil {
		return nil, errspkg.ErrSubscriberRequired
	}
	backend, _ := c.backendAndAdapter()
	if backend == nil {
		return nil, errspkg.ErrBackendRequired
	}
	return backend.Subscribe(c.Namespace().Matcher(""), fn), nil
}

// Listening reports whether any subscriber would receive an event of type name.
func (c *Class) Listening(name string) bool {
	backend, _ := c.backendAndAdapter()
	if backend == nil {
		return false
	}
	return backend.Listening(c.Namespace().Call(name))
}

// Instrument publishes payload as an event of type eventType.
func (c *Class) Instrument(ctx context.Context, eventType string, payload any) error {
	c.mu.Lock()
	opts := c.defaultsLocked().Clone()
	c.mu.Unlock()
	return publish(ctx, opts, eventType, payload, nil)
}

func publish(ctx context.Context, opts *options.Options, eventType string, payload any, md metadatapkg.Metadata) error {
	if opts.Backend == nil {
		return errspkg.ErrBackendRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	evt := bus.NewEvent(namespaceFor(opts).Call(eventType), payload, md.With(metadatapkg.KeyStrategy, opts.Name))
	return opts.Backend.Publish(ctx, evt)
}
