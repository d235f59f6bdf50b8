package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"

	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
	idspkg "github.com/drblury/hookflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/hookflow/internal/runtime/metadata"
)

// RetryConfig tunes redelivery of events whose local subscribers fail.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	RetryIf         func(error) bool
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	return cfg
}

// RelayConfig describes which topics a Relay consumes and where events go.
type RelayConfig struct {
	Subscriber message.Subscriber
	Topics     []string
	// Target receives decoded events. Defaults to the process-wide notifier.
	// Events forwarded by a WatermillBackend whose local notifier is the
	// target's own are skipped, since their subscribers were already called
	// on publish.
	Target Backend
	Logger loggingpkg.ServiceLogger
	Retry  RetryConfig
	// PoisonPublisher and PoisonTopic receive events that still fail after
	// retries. Without them such events are logged and dropped.
	PoisonPublisher message.Publisher
	PoisonTopic     string
	// MetricsRegisterer enables Watermill router metrics when set.
	MetricsRegisterer prometheus.Registerer
}

// Relay consumes events forwarded by a WatermillBackend in another process and
// republishes them on a local backend, so subscribers see the same names.
type Relay struct {
	router *message.Router
	target Backend
	origin string
	logger loggingpkg.ServiceLogger
}

// originBackend is a Backend whose forwarded messages can be traced back to it.
type originBackend interface {
	Origin() string
}

// NewRelay builds a relay consuming cfg.Topics. Call Run to start it.
func NewRelay(cfg RelayConfig) (*Relay, error) {
	if cfg.Subscriber == nil {
		return nil, fmt.Errorf("%w: relay needs a message subscriber", errspkg.ErrSubscriberRequired)
	}
	if len(cfg.Topics) == 0 {
		return nil, errspkg.ErrTopicRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = loggingpkg.Discard()
	}
	target := cfg.Target
	if target == nil {
		target = Default()
	}

	router, err := message.NewRouter(message.RouterConfig{}, loggingpkg.NewWatermillAdapter(logger))
	if err != nil {
		return nil, err
	}

	r := &Relay{router: router, target: target, logger: logger}
	if o, ok := target.(originBackend); ok {
		r.origin = o.Origin()
	}

	router.AddMiddleware(correlationID)
	if cfg.PoisonPublisher != nil && cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueue(cfg.PoisonPublisher, cfg.PoisonTopic)
		if err != nil {
			return nil, err
		}
		router.AddMiddleware(poison)
	} else {
		router.AddMiddleware(r.dropFailed)
	}
	retry := cfg.Retry.withDefaults()
	router.AddMiddleware(
		middleware.Retry{
			MaxRetries:      retry.MaxRetries,
			InitialInterval: retry.InitialInterval,
			MaxInterval:     retry.MaxInterval,
			Logger:          loggingpkg.NewWatermillAdapter(logger),
			ShouldRetry: func(params middleware.RetryParams) bool {
				if retry.RetryIf != nil {
					return retry.RetryIf(params.Err)
				}
				return true
			},
		}.Middleware,
		middleware.Recoverer,
	)

	if cfg.MetricsRegisterer != nil {
		metrics.NewPrometheusMetricsBuilder(cfg.MetricsRegisterer, "hookflow", "relay").
			AddPrometheusRouterMetrics(router)
	}

	for _, topic := range cfg.Topics {
		router.AddNoPublisherHandler("hookflow_relay_"+topic, topic, cfg.Subscriber, r.handler(topic))
	}
	return r, nil
}

func (r *Relay) handler(topic string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		if r.origin != "" && msg.Metadata.Get(metadatapkg.KeyOrigin) == r.origin {
			r.logger.Trace("Skipping event already delivered locally", loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"event":        msg.Metadata.Get(metadatapkg.KeyEventName),
			})
			return nil
		}
		evt, err := EventFromMessage(msg, topic)
		if err != nil {
			return err
		}
		return r.target.Publish(msg.Context(), evt)
	}
}

// Run consumes until ctx is cancelled or Close is called.
func (r *Relay) Run(ctx context.Context) error {
	if r.router.IsRunning() {
		return errspkg.ErrRelayRunning
	}
	return r.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (r *Relay) Running() chan struct{} {
	return r.router.Running()
}

// Close stops consuming and closes the router.
func (r *Relay) Close() error {
	return r.router.Close()
}

func (r *Relay) dropFailed(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err != nil {
			r.logger.Error("Dropping relayed event after retries", err, loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"event":        msg.Metadata.Get(metadatapkg.KeyEventName),
			})
			return nil, nil
		}
		return out, nil
	}
}

func correlationID(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		if msg.Metadata.Get(metadatapkg.KeyCorrelationID) == "" {
			msg.Metadata.Set(metadatapkg.KeyCorrelationID, idspkg.NewEventID())
		}
		return h(msg)
	}
}
