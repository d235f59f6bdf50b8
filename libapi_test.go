package hookflow_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/hookflow"
	"github.com/drblury/hookflow/internal/runtime/metadata"
	"github.com/drblury/hookflow/strategies/developer"
)

func channelSettings(topic string) *hookflow.Settings {
	s := &hookflow.Settings{
		PathPrefix:            "/hooks",
		AllowedRequestMethods: []string{http.MethodPost},
	}
	s.Bus.Topic = topic
	return s
}

func TestNewBusFromSettingsRequiresSettings(t *testing.T) {
	_, _, err := hookflow.NewBusFromSettings(context.Background(), nil, nil)

	var cfgErr hookflow.ConfigValidationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestNewBusFromSettingsValidates(t *testing.T) {
	s := channelSettings("")
	s.Bus.System = "kafka"

	_, _, err := hookflow.NewBusFromSettings(context.Background(), s, nil)

	var cfgErr hookflow.ConfigValidationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "brokers")
}

func TestNewBusFromSettingsDefaultsToChannel(t *testing.T) {
	backend, tr, err := hookflow.NewBusFromSettings(context.Background(), channelSettings("events"), hookflow.DiscardLogger())
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := tr.Subscriber.Subscribe(ctx, "events")
	require.NoError(t, err)

	var local []string
	unsubscribe := hookflow.DefaultNotifier().Subscribe(hookflow.MatchAll(), func(ctx context.Context, evt hookflow.Event) error {
		local = append(local, evt.Name)
		return nil
	})
	defer unsubscribe()

	evt := hookflow.Event{Name: "github.push", Payload: map[string]any{"ref": "main"}}
	require.NoError(t, backend.Publish(ctx, evt))
	assert.Equal(t, []string{"github.push"}, local)

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, "github.push", msg.Metadata.Get(metadata.KeyEventName))
		assert.JSONEq(t, `{"ref":"main"}`, string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("event was not forwarded")
	}
}

func TestDeveloperEventsCrossTheRelay(t *testing.T) {
	backend, tr, err := hookflow.NewBusFromSettings(context.Background(), channelSettings("events"), hookflow.DiscardLogger())
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	received := make(chan hookflow.Event, 1)
	target := hookflow.NewNotifier()
	target.Subscribe(hookflow.MatchAll(), func(ctx context.Context, evt hookflow.Event) error {
		received <- evt
		return nil
	})

	relay, err := hookflow.NewRelay(hookflow.RelayConfig{
		Subscriber: tr.Subscriber,
		Topics:     []string{"events"},
		Target:     target,
	})
	require.NoError(t, err)
	defer func() { _ = relay.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = relay.Run(ctx) }()
	select {
	case <-relay.Running():
	case <-ctx.Done():
		t.Fatal("relay did not start")
	}

	cfg := hookflow.NewConfig()
	cfg.SetLogger(hookflow.DiscardLogger())
	b := hookflow.NewBuilder().WithConfig(cfg)
	_, err = b.Provider(developer.Name, hookflow.Values{hookflow.OptionBackend: hookflow.Backend(backend)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/hooks/developer", strings.NewReader("type=ping&id=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	b.Handler(nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case evt := <-received:
		assert.Equal(t, "developer.ping", evt.Name)
		assert.Equal(t, map[string]any{"type": "ping", "id": "1"}, evt.Payload)
		assert.Equal(t, developer.Name, evt.Metadata.Strategy())
	case <-ctx.Done():
		t.Fatal("relayed event not received")
	}
}

func TestRelayWithoutTargetDeliversOnce(t *testing.T) {
	backend, tr, err := hookflow.NewBusFromSettings(context.Background(), channelSettings("events.once"), hookflow.DiscardLogger())
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	relay, err := hookflow.NewRelay(hookflow.RelayConfig{
		Subscriber: tr.Subscriber,
		Topics:     []string{"events.once"},
	})
	require.NoError(t, err)
	defer func() { _ = relay.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = relay.Run(ctx) }()
	select {
	case <-relay.Running():
	case <-ctx.Done():
		t.Fatal("relay did not start")
	}

	var pings, remote atomic.Int32
	unsubscribe := backend.Subscribe(hookflow.MatchAll(), func(ctx context.Context, evt hookflow.Event) error {
		switch evt.Name {
		case "developer.ping":
			pings.Add(1)
		case "elsewhere.ping":
			remote.Add(1)
		}
		return nil
	})
	defer unsubscribe()

	cfg := hookflow.NewConfig()
	cfg.SetLogger(hookflow.DiscardLogger())
	b := hookflow.NewBuilder().WithConfig(cfg)
	_, err = b.Provider(developer.Name, hookflow.Values{hookflow.OptionBackend: hookflow.Backend(backend)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/hooks/developer", strings.NewReader("type=ping"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	b.Handler(nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), pings.Load())

	// Events forwarded by another backend still cross the relay.
	elsewhere, err := hookflow.NewWatermillBackend(tr.Publisher, hookflow.WithSingleTopic("events.once"))
	require.NoError(t, err)
	require.NoError(t, elsewhere.Publish(ctx, hookflow.NewEvent("elsewhere.ping", map[string]any{"type": "ping"}, nil)))
	require.Eventually(t, func() bool { return remote.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Never(t, func() bool { return pings.Load() > 1 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestAliasesReachRuntime(t *testing.T) {
	c, err := hookflow.Define("")
	assert.ErrorIs(t, err, hookflow.ErrStrategyNameRequired)
	assert.Nil(t, c)

	_, ok := hookflow.LookupStrategy(developer.Name)
	assert.True(t, ok)

	ns := hookflow.NewNamespace("github", "")
	assert.Equal(t, "github.push", ns.Call("push"))

	merged := hookflow.DeepMerge(hookflow.Values{"a": hookflow.Values{"b": 1}}, hookflow.Values{"a": hookflow.Values{"c": 2}})
	assert.Equal(t, hookflow.Values{"a": hookflow.Values{"b": 1, "c": 2}}, merged)

	caps := hookflow.GetCapabilities("channel")
	assert.False(t, caps.CrossProcess)
}

func TestEncodingAndMetadataExports(t *testing.T) {
	data, err := hookflow.Marshal(map[string]string{"hello": "world"})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, hookflow.Unmarshal(data, &out))
	assert.Equal(t, "world", out["hello"])

	md := hookflow.NewMetadata("key", "value")
	assert.Equal(t, "value", md["key"])
	assert.NotEmpty(t, hookflow.NewEventID())
}
