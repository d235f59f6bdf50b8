package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metadatapkg "github.com/drblury/hookflow/internal/runtime/metadata"
)

func prefix(p string) Matcher {
	return MatcherFunc(func(name string) bool { return len(name) >= len(p) && name[:len(p)] == p })
}

func TestNotifierDeliversToMatchingSubscribers(t *testing.T) {
	n := NewNotifier()
	var got []string
	n.Subscribe(prefix("github.push"), func(ctx context.Context, evt Event) error {
		got = append(got, "push:"+evt.Name)
		return nil
	})
	n.Subscribe(nil, func(ctx context.Context, evt Event) error {
		got = append(got, "all:"+evt.Name)
		return nil
	})

	require.NoError(t, n.Publish(context.Background(), NewEvent("github.push", 1, nil)))
	require.NoError(t, n.Publish(context.Background(), NewEvent("github.issue", 2, nil)))

	assert.Equal(t, []string{"push:github.push", "all:github.push", "all:github.issue"}, got)
}

func TestNotifierUnsubscribe(t *testing.T) {
	n := NewNotifier()
	calls := 0
	unsubscribe := n.Subscribe(Exact("a.b"), func(ctx context.Context, evt Event) error {
		calls++
		return nil
	})
	assert.True(t, n.Listening("a.b"))
	assert.Equal(t, 1, n.Len())

	unsubscribe()
	unsubscribe()

	require.NoError(t, n.Publish(context.Background(), NewEvent("a.b", nil, nil)))
	assert.Equal(t, 0, calls)
	assert.False(t, n.Listening("a.b"))
	assert.Equal(t, 0, n.Len())
}

func TestNotifierJoinsSubscriberErrors(t *testing.T) {
	n := NewNotifier()
	boom := errors.New("boom")
	reached := false
	n.Subscribe(nil, func(ctx context.Context, evt Event) error { return boom })
	n.Subscribe(nil, func(ctx context.Context, evt Event) error {
		reached = true
		return nil
	})

	err := n.Publish(context.Background(), NewEvent("x.y", nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "x.y")
	assert.True(t, reached, "later subscribers still run")
}

func TestNotifierIgnoresNilSubscriber(t *testing.T) {
	n := NewNotifier()
	n.Subscribe(nil, nil)()
	assert.Equal(t, 0, n.Len())
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestNotifierOriginIsPerInstance(t *testing.T) {
	a, b := NewNotifier(), NewNotifier()
	assert.NotEmpty(t, a.Origin())
	assert.NotEqual(t, a.Origin(), b.Origin())
	assert.Equal(t, Default().Origin(), Default().Origin())
}

func TestNotificationAdapterForwardsPayloadOnly(t *testing.T) {
	var got any
	sub := NotificationAdapter(func(ctx context.Context, payload any) error {
		got = payload
		return nil
	})

	evt := NewEvent("dev.push", map[string]any{"a": 1}, metadatapkg.New(metadatapkg.KeyStrategy, "dev"))
	require.NoError(t, sub(context.Background(), evt))
	assert.Equal(t, map[string]any{"a": 1}, got)
}

func TestNewEventStampsIdentity(t *testing.T) {
	md := metadatapkg.New("k", "v")
	evt := NewEvent("dev.push", "payload", md)

	assert.Len(t, evt.ID, 26)
	assert.False(t, evt.Time.IsZero())
	assert.Equal(t, "v", evt.Metadata["k"])

	evt.Metadata["k"] = "changed"
	assert.Equal(t, "v", md["k"])
}

func TestMatchers(t *testing.T) {
	assert.True(t, MatchAll().Match("anything"))
	assert.True(t, Exact("a.b").Match("a.b"))
	assert.False(t, Exact("a.b").Match("a.bc"))
}
