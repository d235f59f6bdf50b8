package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records Prometheus metrics for strategy dispatch.
type DispatchMetrics struct {
	mu sync.Mutex

	requestsTotal  *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	publishedTotal *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

func newDispatchCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hookflow",
			Subsystem: "dispatch",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewDispatchMetrics creates the collectors. A nil registerer means the
// Prometheus default registerer.
func NewDispatchMetrics(registerer prometheus.Registerer) *DispatchMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &DispatchMetrics{
		registerer:     registerer,
		requestsTotal:  newDispatchCounterVec("requests_total", "Requests seen by a strategy, by outcome", []string{"strategy", "outcome"}),
		publishedTotal: newDispatchCounterVec("published_total", "Events published by a strategy", []string{"strategy"}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hookflow",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Time spent extracting and publishing a webhook event",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *DispatchMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}
	for _, c := range []prometheus.Collector{m.requestsTotal, m.publishedTotal, m.duration} {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

// Observe records one request with its outcome. A zero duration is not
// added to the histogram.
func (m *DispatchMetrics) Observe(strategy, outcome string, d time.Duration) {
	m.requestsTotal.WithLabelValues(strategy, outcome).Inc()
	if d > 0 {
		m.duration.WithLabelValues(strategy).Observe(d.Seconds())
	}
	if outcome == OutcomePublished {
		m.publishedTotal.WithLabelValues(strategy).Inc()
	}
}

// Hooks returns dispatch hooks feeding these metrics.
func (m *DispatchMetrics) Hooks() DispatchHooks {
	return DispatchHooks{
		OnDispatchDone: func(ctx DispatchContext) {
			m.Observe(ctx.Strategy, ctx.Outcome(), ctx.Duration)
		},
		OnDispatchError: func(ctx DispatchContext, err error) {
			m.Observe(ctx.Strategy, OutcomeFailed, ctx.Duration)
		},
		OnPassThrough: func(ctx DispatchContext) {
			m.Observe(ctx.Strategy, OutcomePassThrough, 0)
		},
	}
}

// Reset clears every series.
func (m *DispatchMetrics) Reset() {
	m.requestsTotal.Reset()
	m.publishedTotal.Reset()
	m.duration.Reset()
}
