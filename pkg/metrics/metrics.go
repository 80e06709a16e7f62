package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Transport metrics
	PollsTotal      *prometheus.CounterVec
	PollLatency     prometheus.Histogram
	PushEventsTotal *prometheus.CounterVec
	PushReconnects  prometheus.Counter

	// Reconciler metrics
	DecisionsFired       prometheus.Counter
	DuplicatesSuppressed *prometheus.CounterVec
	StaleOrdersFiltered  prometheus.Counter
	DeferredPushEvents   prometheus.Counter

	// Alert lifecycle metrics
	AlertsAcknowledged prometheus.Counter
	AlertsExpired      prometheus.Counter
	CueFailures        prometheus.Counter
	CurrentlyNotifying prometheus.Gauge
	HistorySize        prometheus.Gauge

	// Seen-set metrics
	SeenSetSize         prometheus.Gauge
	SeenSetDegradations prometheus.Counter
}

// NewMetrics creates all application metrics and registers them on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith registers metrics on a caller-supplied registry, which
// lets tests construct isolated instances.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total number of order list polls by result",
		}, []string{"result"}),
		PollLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent fetching the order list",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		PushEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_total",
			Help:      "Total push events received by result",
		}, []string{"result"}),
		PushReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_reconnects_total",
			Help:      "Total push channel reconnection attempts",
		}),
		DecisionsFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_fired_total",
			Help:      "Total new-order decisions emitted",
		}),
		DuplicatesSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_suppressed_total",
			Help:      "Candidate orders suppressed by dedup guard",
		}, []string{"guard"}),
		StaleOrdersFiltered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_orders_filtered_total",
			Help:      "Candidate orders outside the relevance window",
		}),
		DeferredPushEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deferred_push_events_total",
			Help:      "Push events deferred because the initial load had not completed",
		}),
		AlertsAcknowledged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_acknowledged_total",
			Help:      "Alerts acknowledged by the user",
		}),
		AlertsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_expired_total",
			Help:      "Alerts expired without acknowledgment",
		}),
		CueFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cue_failures_total",
			Help:      "Audio cue playback failures",
		}),
		CurrentlyNotifying: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "currently_notifying",
			Help:      "Number of alerts currently firing",
		}),
		HistorySize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_size",
			Help:      "Number of alerts retained in notification history",
		}),
		SeenSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seenset_size",
			Help:      "Number of order IDs in the seen set",
		}),
		SeenSetDegradations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seenset_degradations_total",
			Help:      "Times the seen set fell back to in-memory tracking",
		}),
	}
}
