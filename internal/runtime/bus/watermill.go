package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/hookflow/internal/runtime/errors"
	idspkg "github.com/drblury/hookflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/hookflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/hookflow/internal/runtime/metadata"
)

// TopicFunc maps an event name onto a transport topic.
type TopicFunc func(eventName string) string

// WatermillBackend delivers events to local subscribers and forwards them to a
// Watermill publisher so other processes can consume them.
type WatermillBackend struct {
	local          *Notifier
	publisher      message.Publisher
	topic          TopicFunc
	maxMessageSize int64
	logger         loggingpkg.ServiceLogger
}

// WatermillOption customises a WatermillBackend.
type WatermillOption func(*WatermillBackend)

// WithLocalNotifier shares an existing notifier for in-process subscribers.
func WithLocalNotifier(n *Notifier) WatermillOption {
	return func(b *WatermillBackend) {
		if n != nil {
			b.local = n
		}
	}
}

// WithTopicFunc overrides the identity mapping from event name to topic.
func WithTopicFunc(fn TopicFunc) WatermillOption {
	return func(b *WatermillBackend) {
		if fn != nil {
			b.topic = fn
		}
	}
}

// WithSingleTopic publishes every event onto one topic; the event name travels in metadata.
func WithSingleTopic(topic string) WatermillOption {
	return WithTopicFunc(func(string) string { return topic })
}

// WithMaxMessageSize rejects encoded payloads larger than limit bytes. Zero disables the check.
func WithMaxMessageSize(limit int64) WatermillOption {
	return func(b *WatermillBackend) { b.maxMessageSize = limit }
}

// WithLogger reports forwarding failures and successes to logger.
func WithLogger(logger loggingpkg.ServiceLogger) WatermillOption {
	return func(b *WatermillBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewWatermillBackend forwards events to publisher. Local subscribers live on
// a private notifier unless WithLocalNotifier shares one.
func NewWatermillBackend(publisher message.Publisher, opts ...WatermillOption) (*WatermillBackend, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	b := &WatermillBackend{
		local:     NewNotifier(),
		publisher: publisher,
		topic:     func(name string) string { return name },
		logger:    loggingpkg.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Subscribe registers fn on the local notifier.
func (b *WatermillBackend) Subscribe(m Matcher, fn Subscriber) func() {
	return b.local.Subscribe(m, fn)
}

// Listening reports whether a local subscriber matches name.
func (b *WatermillBackend) Listening(name string) bool {
	return b.local.Listening(name)
}

// Publish notifies local subscribers first and then forwards the event.
// Both steps run even if the first fails.
func (b *WatermillBackend) Publish(ctx context.Context, evt Event) error {
	localErr := b.local.Publish(ctx, evt)

	msg, err := NewMessage(evt)
	if err != nil {
		return errors.Join(localErr, err)
	}
	if b.maxMessageSize > 0 && int64(len(msg.Payload)) > b.maxMessageSize {
		return errors.Join(localErr, fmt.Errorf("%w: %d > %d bytes", errspkg.ErrPayloadTooLarge, len(msg.Payload), b.maxMessageSize))
	}

	topic := b.topic(evt.Name)
	if topic == "" {
		return errors.Join(localErr, errspkg.ErrTopicRequired)
	}
	msg.Metadata.Set(metadatapkg.KeyOrigin, b.local.Origin())
	if ctx != nil {
		msg.SetContext(ctx)
	}
	if err := b.publisher.Publish(topic, msg); err != nil {
		b.logger.Error("Forwarding event failed", err, loggingpkg.LogFields{
			"event": evt.Name,
			"topic": topic,
		})
		return errors.Join(localErr, fmt.Errorf("publish %s: %w", topic, err))
	}
	b.logger.Debug("Event forwarded", loggingpkg.LogFields{
		"event":    evt.Name,
		"topic":    topic,
		"event_id": evt.ID,
	})
	return localErr
}

// Origin is the origin id of the local notifier.
func (b *WatermillBackend) Origin() string { return b.local.Origin() }

// Close closes the underlying publisher.
func (b *WatermillBackend) Close() error {
	return b.publisher.Close()
}

// NewMessage encodes an event as a Watermill message. The message UUID is the
// event ID and the event name, time and encoding ride in metadata.
func NewMessage(evt Event) (*message.Message, error) {
	if evt.Name == "" {
		return nil, errspkg.ErrTopicRequired
	}
	payload, contentType, err := jsoncodec.EncodePayload(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %s: %w", evt.Name, err)
	}

	if evt.ID == "" {
		evt.ID = idspkg.NewEventID()
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}

	md := evt.Metadata.Clone()
	for k, v := range metadatapkg.ForEvent(evt.ID, evt.Name, md[metadatapkg.KeySource], contentType, evt.Time) {
		md[k] = v
	}

	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata = metadatapkg.ToWatermill(md)
	return msg, nil
}

// EventFromMessage decodes a message produced by NewMessage. Messages without
// an event name header are named after fallbackName.
func EventFromMessage(msg *message.Message, fallbackName string) (Event, error) {
	md := metadatapkg.FromWatermill(msg.Metadata)
	name := md.EventName()
	if name == "" {
		name = fallbackName
	}
	payload, err := jsoncodec.DecodePayload(msg.Payload, md.ContentType())
	if err != nil {
		return Event{}, fmt.Errorf("decode payload for %s: %w", name, err)
	}
	return Event{
		ID:       msg.UUID,
		Name:     name,
		Payload:  payload,
		Time:     md.Time(),
		Metadata: md,
	}, nil
}
