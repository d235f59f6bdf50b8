package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	idspkg "github.com/drblury/hookflow/internal/runtime/ids"
)

// Notifier is an in-process Backend. Subscribers run synchronously on the
// publishing goroutine in subscription order.
type Notifier struct {
	mu     sync.RWMutex
	subs   []*subscription
	nextID uint64
	origin string
}

type subscription struct {
	id      uint64
	matcher Matcher
	fn      Subscriber
}

var (
	defaultNotifier     *Notifier
	defaultNotifierOnce sync.Once
)

// Default returns the process-wide notifier used when a strategy has no backend of its own.
func Default() *Notifier {
	defaultNotifierOnce.Do(func() {
		defaultNotifier = NewNotifier()
	})
	return defaultNotifier
}

// NewNotifier returns an empty notifier with its own origin id.
func NewNotifier() *Notifier {
	return &Notifier{origin: idspkg.NewEventID()}
}

// Subscribe registers fn for event names accepted by m; a nil m matches
// everything. The returned function removes the subscription and is safe to
// call more than once.
func (n *Notifier) Subscribe(m Matcher, fn Subscriber) func() {
	if fn == nil {
		return func() {}
	}
	if m == nil {
		m = MatchAll()
	}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, &subscription{id: id, matcher: m, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, sub := range n.subs {
		if sub.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every matching subscriber, even when an earlier one fails,
// and returns the joined subscriber errors.
func (n *Notifier) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, sub := range n.matching(evt.Name) {
		if err := sub.fn(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("subscriber for %s: %w", evt.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Origin identifies this notifier in forwarded message metadata.
func (n *Notifier) Origin() string { return n.origin }

// Listening reports whether any subscriber matches name.
func (n *Notifier) Listening(name string) bool {
	return len(n.matching(name)) > 0
}

// Len reports the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

func (n *Notifier) matching(name string) []*subscription {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []*subscription
	for _, sub := range n.subs {
		if sub.matcher.Match(name) {
			out = append(out, sub)
		}
	}
	return out
}
