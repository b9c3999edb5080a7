// Package metrics holds the Prometheus instruments for the watcher.
//
// All methods are safe on a nil *Metrics so callers that run without the ops
// server (tests, --once) need no special casing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tokenwatch"

// Tick results.
const (
	TickOK           = "ok"
	TickFetchError   = "fetch_error"
	TickPersistError = "persist_error"
)

type Metrics struct {
	Ticks         *prometheus.CounterVec
	TickDuration  prometheus.Histogram
	Candidates    prometheus.Counter
	Matches       prometheus.Counter
	Notifications *prometheus.CounterVec
	SeenEntries   prometheus.Gauge
	LastTick      prometheus.Gauge
}

// New registers every instrument on reg. Passing a fresh prometheus.Registry
// keeps tests independent of the global default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Completed poll ticks by result",
		}, []string{"result"}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one poll tick including notifications",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		Candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "candidates_total",
			Help:      "Records returned by the upstream feed",
		}),
		Matches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "new_matches_total",
			Help:      "Previously unseen records that matched the target",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sends_total",
			Help:      "Notification attempts by channel and result",
		}, []string{"channel", "kind", "result"}),
		SeenEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "seen",
			Name:      "entries",
			Help:      "Identities recorded in the seen store",
		}),
		LastTick: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "last_tick_timestamp_seconds",
			Help:      "Unix time of the last completed tick",
		}),
	}
}

func (m *Metrics) ObserveTick(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(result).Inc()
	m.TickDuration.Observe(took.Seconds())
	m.LastTick.SetToCurrentTime()
}

func (m *Metrics) AddCandidates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Candidates.Add(float64(n))
}

func (m *Metrics) IncMatches() {
	if m == nil {
		return
	}
	m.Matches.Inc()
}

// ObserveSend counts one delivery attempt. kind is "alert" or "liveness".
func (m *Metrics) ObserveSend(channel, kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Notifications.WithLabelValues(channel, kind, result).Inc()
}

func (m *Metrics) SetSeen(n int) {
	if m == nil {
		return
	}
	m.SeenEntries.Set(float64(n))
}
