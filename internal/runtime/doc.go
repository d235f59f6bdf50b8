/*
Package runtime implements hookflow's strategies: HTTP middleware that turns
webhook callbacks into named events on a notification bus.

# Classes and strategies

A Class is a strategy definition created with Define or derived from another
class with Extend. It carries default options, the names of positional
constructor arguments and up to one event extractor and one event type
extractor per level. Defaults are copied from the parent the first time a
class touches them; extractors stack from the root class down.

Class.New mounts an instance in front of the next handler:

	github := runtime.MustDefine("github", func(c *runtime.Class) error {
		c.SetEventType(func(ctx *runtime.Context) (string, error) {
			return ctx.Header("X-GitHub-Event"), nil
		})
		c.SetEvent(func(ctx *runtime.Context) (any, error) {
			return ctx.Params()
		})
		return nil
	})

	handler := github.MustNew(app)

A POST to /hooks/github publishes the params under "github.<event type>" and
answers 200 with an empty body. Any extraction or publish error is logged and
answered with 500. Everything else reaches app unchanged.

# Subscriptions

Class.Subscribe and Class.All register subscribers on the class backend,
which defaults to the process-wide bus.Default notifier:

	github.Subscribe("push", func(ctx context.Context, payload any) error {
		return nil
	})

# Sub-packages

  - bus/: events, matchers, the in-process Notifier, the Watermill backend and relay
  - config/: live global configuration and koanf-loaded settings
  - errors/: sentinel errors
  - ids/: ULID event identifiers
  - jsoncodec/: sonic JSON and payload encoding
  - logging/: ServiceLogger and its slog/Watermill adapters
  - metadata/: event metadata keys
  - namespace/: event name prefixes
  - options/: option sets and deep merging
*/
package runtime
