package runtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drblury/hookflow/internal/runtime/bus"
	"github.com/drblury/hookflow/internal/runtime/config"
	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
)

var classCounter atomic.Uint64

// uniqueName keeps test classes apart in the process-wide registry.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, classCounter.Add(1))
}

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type logStore struct {
	mu      sync.Mutex
	entries []logEntry
}

type recordingLogger struct {
	store  *logStore
	fields loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{store: &logStore{}}
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.store.entries = append(l.store.entries, logEntry{level: level, msg: msg, err: err, fields: merged})
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{store: l.store, fields: merged}
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *recordingLogger) errors() []logEntry {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	var out []logEntry
	for _, e := range l.store.entries {
		if e.level == "error" {
			out = append(out, e)
		}
	}
	return out
}

// testConfig returns an isolated configuration writing into a recording logger.
func testConfig() (*config.Config, *recordingLogger) {
	cfg := config.New()
	logger := newRecordingLogger()
	cfg.SetLogger(logger)
	return cfg, logger
}

// publication is one event seen by a recordingBackend.
type publication struct {
	name    string
	payload any
	evt     bus.Event
}

// recordingBackend wraps a notifier and remembers every published event.
type recordingBackend struct {
	*bus.Notifier
	mu     sync.Mutex
	events []publication
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{Notifier: bus.NewNotifier()}
}

func (b *recordingBackend) Publish(ctx context.Context, evt bus.Event) error {
	b.mu.Lock()
	b.events = append(b.events, publication{name: evt.Name, payload: evt.Payload, evt: evt})
	b.mu.Unlock()
	return b.Notifier.Publish(ctx, evt)
}

func (b *recordingBackend) published() []publication {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publication(nil), b.events...)
}

// awesome404 is the downstream application used by pass-through tests.
var awesome404 = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Awesome"))
})

func serve(t *testing.T, h http.Handler, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// defineTestClass declares a class whose backend is a fresh recording backend.
func defineTestClass(t *testing.T, prefix string, setup ...SetupFunc) (*Class, *recordingBackend) {
	t.Helper()
	backend := newRecordingBackend()
	c, err := Define(uniqueName(prefix), func(c *Class) error {
		return c.Option("backend", bus.Backend(backend))
	})
	require.NoError(t, err)
	for _, fn := range setup {
		require.NoError(t, c.Configure(fn))
	}
	return c, backend
}
