package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
)

// DefaultEnvPrefix prefixes environment variables read by Load.
const DefaultEnvPrefix = "HOOKFLOW_"

const redacted = "***REDACTED***"

// listKeys are read from comma separated environment values.
var listKeys = map[string]struct{}{
	"allowed_request_methods": {},
	"bus.kafka.brokers":       {},
}

// Settings is the file/environment form of the configuration.
type Settings struct {
	PathPrefix            string      `koanf:"path_prefix"`
	AllowedRequestMethods []string    `koanf:"allowed_request_methods"`
	Log                   LogSettings `koanf:"log"`
	Bus                   BusSettings `koanf:"bus"`
}

type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// BusSettings selects the transport events are forwarded to. An empty System
// keeps events in process.
type BusSettings struct {
	System string `koanf:"system"`
	// Topic publishes every event on one topic. Empty uses the event name as topic.
	Topic string `koanf:"topic"`

	Kafka struct {
		Brokers       []string `koanf:"brokers"`
		ConsumerGroup string   `koanf:"consumer_group"`
	} `koanf:"kafka"`

	RabbitMQ struct {
		URL string `koanf:"url"`
	} `koanf:"rabbitmq"`

	NATS struct {
		URL        string `koanf:"url"`
		ClientName string `koanf:"client_name"`
	} `koanf:"nats"`

	HTTP struct {
		ServerAddress string `koanf:"server_address"`
		PublisherURL  string `koanf:"publisher_url"`
	} `koanf:"http"`

	AWS struct {
		Region          string `koanf:"region"`
		AccountID       string `koanf:"account_id"`
		AccessKeyID     string `koanf:"access_key_id"`
		SecretAccessKey string `koanf:"secret_access_key"`
		Endpoint        string `koanf:"endpoint"`
	} `koanf:"aws"`
}

// Getters used by the transport builders.
func (b *BusSettings) GetBusSystem() string          { return b.System }
func (b *BusSettings) GetKafkaBrokers() []string     { return b.Kafka.Brokers }
func (b *BusSettings) GetKafkaConsumerGroup() string { return b.Kafka.ConsumerGroup }
func (b *BusSettings) GetRabbitMQURL() string        { return b.RabbitMQ.URL }
func (b *BusSettings) GetNATSURL() string            { return b.NATS.URL }
func (b *BusSettings) GetNATSClientName() string     { return b.NATS.ClientName }
func (b *BusSettings) GetHTTPServerAddress() string  { return b.HTTP.ServerAddress }
func (b *BusSettings) GetHTTPPublisherURL() string   { return b.HTTP.PublisherURL }
func (b *BusSettings) GetAWSRegion() string          { return b.AWS.Region }
func (b *BusSettings) GetAWSAccountID() string       { return b.AWS.AccountID }
func (b *BusSettings) GetAWSAccessKeyID() string     { return b.AWS.AccessKeyID }
func (b *BusSettings) GetAWSSecretAccessKey() string { return b.AWS.SecretAccessKey }
func (b *BusSettings) GetAWSEndpoint() string        { return b.AWS.Endpoint }

// Load reads settings from an optional YAML file and then from environment
// variables starting with envPrefix, which override the file. Nested keys use
// a double underscore: HOOKFLOW_BUS__KAFKA__BROKERS=a:9092,b:9092.
func Load(path, envPrefix string) (*Settings, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, err
	}

	if !k.Exists("path_prefix") {
		_ = k.Set("path_prefix", DefaultPathPrefix)
	}
	if !k.Exists("allowed_request_methods") {
		_ = k.Set("allowed_request_methods", DefaultAllowedRequestMethods())
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports every problem at once.
func (s *Settings) Validate() error {
	var errs []error
	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, fmt.Errorf("path_prefix %q must start with /", s.PathPrefix))
	}
	if len(s.AllowedRequestMethods) == 0 {
		errs = append(errs, errors.New("allowed_request_methods must not be empty"))
	}
	for _, m := range s.AllowedRequestMethods {
		if !knownMethod(m) {
			errs = append(errs, fmt.Errorf("allowed_request_methods: unknown method %q", m))
		}
	}
	if s.Log.Level != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(s.Log.Level)); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	switch strings.ToLower(s.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", s.Log.Format))
	}
	errs = append(errs, s.Bus.validate()...)
	return errspkg.NewConfigValidationError(errors.Join(errs...))
}

func (b *BusSettings) validate() []error {
	switch strings.ToLower(b.System) {
	case "kafka":
		if len(b.Kafka.Brokers) == 0 {
			return []error{errors.New("bus.kafka: brokers are required")}
		}
	case "rabbitmq":
		if b.RabbitMQ.URL == "" {
			return []error{errors.New("bus.rabbitmq: url is required")}
		}
	case "nats":
		if b.NATS.URL == "" {
			return []error{errors.New("bus.nats: url is required")}
		}
	case "http":
		if b.HTTP.PublisherURL == "" {
			return []error{errors.New("bus.http: publisher_url is required")}
		}
	case "aws":
		if b.AWS.Region == "" {
			return []error{errors.New("bus.aws: region is required")}
		}
	}
	return nil
}

// Apply validates s and copies it onto c, replacing the logger. An empty
// PathPrefix applies DefaultPathPrefix.
func (s *Settings) Apply(c *Config) error {
	if err := s.Validate(); err != nil {
		return err
	}
	logger, err := loggingpkg.New(loggingpkg.Options{Level: s.Log.Level, Format: s.Log.Format})
	if err != nil {
		return err
	}
	c.SetLogger(logger)
	prefix := s.PathPrefix
	if prefix == "" {
		prefix = DefaultPathPrefix
	}
	c.SetPathPrefix(prefix)
	c.SetAllowedRequestMethods(s.AllowedRequestMethods...)
	return nil
}

func (s Settings) String() string {
	cp := s
	if cp.Bus.AWS.SecretAccessKey != "" {
		cp.Bus.AWS.SecretAccessKey = redacted
	}
	if cp.Bus.AWS.AccessKeyID != "" {
		cp.Bus.AWS.AccessKeyID = redacted
	}
	if cp.Bus.RabbitMQ.URL != "" {
		cp.Bus.RabbitMQ.URL = redactURLCredentials(cp.Bus.RabbitMQ.URL)
	}
	if cp.Bus.NATS.URL != "" {
		cp.Bus.NATS.URL = redactURLCredentials(cp.Bus.NATS.URL)
	}
	type settingsAlias Settings
	return fmt.Sprintf("%+v", settingsAlias(cp))
}

func redactURLCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "***REDACTED_URL***"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), redacted)
		}
	}
	return parsed.String()
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func knownMethod(m string) bool {
	switch strings.ToUpper(m) {
	case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS":
		return true
	}
	return false
}
