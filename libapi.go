package hookflow

import (
	"context"
	"fmt"

	runtimepkg "github.com/drblury/hookflow/internal/runtime"
	buspkg "github.com/drblury/hookflow/internal/runtime/bus"
	configpkg "github.com/drblury/hookflow/internal/runtime/config"
	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
	idspkg "github.com/drblury/hookflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/hookflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/hookflow/internal/runtime/metadata"
	namespacepkg "github.com/drblury/hookflow/internal/runtime/namespace"
	optionspkg "github.com/drblury/hookflow/internal/runtime/options"
	"github.com/drblury/hookflow/transport"
	_ "github.com/drblury/hookflow/transport/transports"
)

type (
	Class           = runtimepkg.Class
	Strategy        = runtimepkg.Strategy
	Context         = runtimepkg.Context
	Params          = runtimepkg.Params
	Response        = runtimepkg.Response
	EventTypeFunc   = runtimepkg.EventTypeFunc
	EventFunc       = runtimepkg.EventFunc
	SetupFunc       = runtimepkg.SetupFunc
	Builder         = runtimepkg.Builder
	DispatchContext = runtimepkg.DispatchContext
	DispatchHooks   = runtimepkg.DispatchHooks
	DispatchMetrics = runtimepkg.DispatchMetrics

	Options        = optionspkg.Options
	Values         = optionspkg.Values
	RequestMatcher = optionspkg.RequestMatcher
	Namespace      = namespacepkg.Namespace

	Event             = buspkg.Event
	Backend           = buspkg.Backend
	Subscriber        = buspkg.Subscriber
	PayloadSubscriber = buspkg.PayloadSubscriber
	Adapter           = buspkg.Adapter
	Matcher           = buspkg.Matcher
	Notifier          = buspkg.Notifier
	WatermillBackend  = buspkg.WatermillBackend
	WatermillOption   = buspkg.WatermillOption
	Relay             = buspkg.Relay
	RelayConfig       = buspkg.RelayConfig
	RetryConfig       = buspkg.RetryConfig

	Config                = configpkg.Config
	Settings              = configpkg.Settings
	ConfigValidationError = errspkg.ConfigValidationError

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger
	LoggerOptions = loggingpkg.Options

	Metadata = metadatapkg.Metadata

	Transport             = transport.Transport
	TransportConfig       = transport.Config
	TransportCapabilities = transport.Capabilities
)

var (
	Define         = runtimepkg.Define
	MustDefine     = runtimepkg.MustDefine
	Strategies     = runtimepkg.Strategies
	LookupStrategy = runtimepkg.LookupStrategy
	NewBuilder     = runtimepkg.NewBuilder

	LoggingHooks       = runtimepkg.LoggingHooks
	MetricsHooks       = runtimepkg.MetricsHooks
	NewDispatchMetrics = runtimepkg.NewDispatchMetrics

	NewNamespace        = namespacepkg.New
	DeepMerge           = optionspkg.DeepMerge
	DefaultNotifier     = buspkg.Default
	NewNotifier         = buspkg.NewNotifier
	NewEvent            = buspkg.NewEvent
	NotificationAdapter = buspkg.NotificationAdapter
	MatchAll            = buspkg.MatchAll
	NewWatermillBackend = buspkg.NewWatermillBackend
	WithLocalNotifier   = buspkg.WithLocalNotifier
	WithTopicFunc       = buspkg.WithTopicFunc
	WithSingleTopic     = buspkg.WithSingleTopic
	WithMaxMessageSize  = buspkg.WithMaxMessageSize
	WithLogger          = buspkg.WithLogger
	NewRelay            = buspkg.NewRelay

	GlobalConfig = configpkg.Global
	Configure    = configpkg.Configure
	NewConfig    = configpkg.New
	LoadSettings = configpkg.Load

	NewLogger            = loggingpkg.New
	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	DiscardLogger        = loggingpkg.Discard

	NewMetadata = metadatapkg.New
	NewEventID  = idspkg.NewEventID

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	BuildTransport  = transport.Build
	GetCapabilities = transport.GetCapabilities

	ErrStrategyNameRequired = errspkg.ErrStrategyNameRequired
	ErrUnknownStrategy      = errspkg.ErrUnknownStrategy
	ErrWrongArgumentCount   = errspkg.ErrWrongArgumentCount
	ErrInvalidOption        = errspkg.ErrInvalidOption
	ErrConfigureInput       = errspkg.ErrConfigureInput
	ErrBackendRequired      = errspkg.ErrBackendRequired
	ErrSubscriberRequired   = errspkg.ErrSubscriberRequired
	ErrPublisherRequired    = errspkg.ErrPublisherRequired
	ErrTopicRequired        = errspkg.ErrTopicRequired
	ErrPayloadTooLarge      = errspkg.ErrPayloadTooLarge
	ErrDispatchPanic        = errspkg.ErrDispatchPanic
	ErrHookPanic            = errspkg.ErrHookPanic
	ErrMatcherPanic         = errspkg.ErrMatcherPanic
	ErrRelayRunning         = errspkg.ErrRelayRunning
)

// Well-known option keys.
const (
	OptionName               = optionspkg.KeyName
	OptionPathPrefix         = optionspkg.KeyPathPrefix
	OptionRequestPath        = optionspkg.KeyRequestPath
	OptionNamespaceDelimiter = optionspkg.KeyNamespaceDelimiter
	OptionBackend            = optionspkg.KeyBackend
	OptionAdapter            = optionspkg.KeyAdapter
)

// NewBusFromSettings builds the transport selected in settings.Bus and wraps
// its publisher in a WatermillBackend that also serves the process-wide
// notifier. Without a configured system the in-memory channel transport is
// used. Install the backend with Class.Option(OptionBackend, backend) and feed
// the returned transport's subscriber to a Relay on the consuming side.
func NewBusFromSettings(ctx context.Context, settings *Settings, logger ServiceLogger) (*WatermillBackend, Transport, error) {
	if settings == nil {
		return nil, Transport{}, errspkg.NewConfigValidationError(fmt.Errorf("settings are required"))
	}
	if err := settings.Validate(); err != nil {
		return nil, Transport{}, err
	}
	if logger == nil {
		logger = loggingpkg.Discard()
	}

	busSettings := settings.Bus
	if busSettings.System == "" {
		busSettings.System = transport.ChannelCapabilities.Name
	}
	system := busSettings.GetBusSystem()
	tr, err := transport.Build(ctx, &busSettings, loggingpkg.NewWatermillAdapter(logger))
	if err != nil {
		return nil, Transport{}, fmt.Errorf("build %s transport: %w", system, err)
	}

	opts := []WatermillOption{
		buspkg.WithLocalNotifier(buspkg.Default()),
		buspkg.WithMaxMessageSize(transport.GetCapabilities(system).MaxMessageSize),
		buspkg.WithLogger(logger),
	}
	if settings.Bus.Topic != "" {
		opts = append(opts, buspkg.WithSingleTopic(settings.Bus.Topic))
	}

	backend, err := buspkg.NewWatermillBackend(tr.Publisher, opts...)
	if err != nil {
		_ = tr.Close()
		return nil, Transport{}, err
	}
	logger.Info("Event bus ready", LogFields{"system": system, "topic": settings.Bus.Topic})
	return backend, tr, nil
}
