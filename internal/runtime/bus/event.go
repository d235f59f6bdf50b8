// Package bus carries published webhook events to subscribers, either inside
// the process or across a Watermill transport.
package bus

import (
	"context"
	"time"

	idspkg "github.com/drblury/hookflow/internal/runtime/ids"
	metadatapkg "github.com/drblury/hookflow/internal/runtime/metadata"
)

// Event is one published notification.
type Event struct {
	ID       string
	Name     string
	Payload  any
	Time     time.Time
	Metadata metadatapkg.Metadata
}

// NewEvent stamps a fresh ID and time on a payload published under name.
func NewEvent(name string, payload any, md metadatapkg.Metadata) Event {
	now := time.Now()
	return Event{
		ID:       idspkg.NewEventIDAt(now),
		Name:     name,
		Payload:  payload,
		Time:     now,
		Metadata: md.Clone(),
	}
}

// Subscriber receives every matching event.
type Subscriber func(ctx context.Context, evt Event) error

// PayloadSubscriber receives only the payload of matching events.
type PayloadSubscriber func(ctx context.Context, payload any) error

// Adapter turns a payload subscriber into one the backend can invoke.
type Adapter func(PayloadSubscriber) Subscriber

// NotificationAdapter forwards only the event payload.
func NotificationAdapter(fn PayloadSubscriber) Subscriber {
	return func(ctx context.Context, evt Event) error {
		return fn(ctx, evt.Payload)
	}
}

// Matcher selects event names.
type Matcher interface {
	Match(name string) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(name string) bool

func (f MatcherFunc) Match(name string) bool { return f(name) }

// MatchAll matches every event name.
func MatchAll() Matcher {
	return MatcherFunc(func(string) bool { return true })
}

// Exact matches a single event name.
func Exact(name string) Matcher {
	return MatcherFunc(func(candidate string) bool { return candidate == name })
}

// Backend is the pub/sub contract strategies publish through.
type Backend interface {
	// Subscribe registers fn for events accepted by m. A nil matcher receives
	// every event. The returned function removes the subscription.
	Subscribe(m Matcher, fn Subscriber) (unsubscribe func())
	// Publish delivers evt to every matching subscriber.
	Publish(ctx context.Context, evt Event) error
	// Listening reports whether any subscriber would receive name.
	Listening(name string) bool
}
