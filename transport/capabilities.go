package transport

// Capabilities describes what a transport offers forwarded events.
type Capabilities struct {
	Name string

	// CrossProcess is false for transports that only reach subscribers in the
	// same process.
	CrossProcess bool

	// SupportsOrdering indicates events on one topic arrive in publish order.
	SupportsOrdering bool

	// SupportsAck indicates the broker redelivers events a relay fails to handle.
	SupportsAck bool

	// SupportsTracing indicates trace headers travel with the message.
	SupportsTracing bool

	// MaxMessageSize is the largest payload in bytes; 0 means unknown or unlimited.
	MaxMessageSize int64
}

// Accepts reports whether a payload of size bytes fits the transport.
func (c Capabilities) Accepts(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
	}

	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		CrossProcess:     true,
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsTracing:  true,
		MaxMessageSize:   1048576,
	}

	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		CrossProcess:     true,
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsTracing:  true,
	}

	NATSCapabilities = Capabilities{
		Name:            "nats",
		CrossProcess:    true,
		SupportsTracing: true,
		MaxMessageSize:  1048576,
	}

	AWSCapabilities = Capabilities{
		Name:             "aws",
		CrossProcess:     true,
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsTracing:  true,
		MaxMessageSize:   262144,
	}

	HTTPCapabilities = Capabilities{
		Name:            "http",
		CrossProcess:    true,
		SupportsTracing: true,
	}
)
