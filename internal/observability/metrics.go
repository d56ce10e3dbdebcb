package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	instrumentActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labctl",
			Subsystem: "instrument",
			Name:      "actions_total",
			Help:      "Instrument actions executed.",
		},
		[]string{"instrument", "kind", "action", "success"},
	)
	instrumentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labctl",
			Subsystem: "instrument",
			Name:      "action_duration_seconds",
			Help:      "Instrument action duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"instrument", "kind", "action", "success"},
	)
	plans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labctl",
			Subsystem: "synth",
			Name:      "plans_total",
			Help:      "Frequency plans by outcome.",
		},
		[]string{"instrument", "outcome"},
	)
	planError = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "labctl",
			Subsystem: "synth",
			Name:      "plan_error_hz",
			Help:      "Difference between achieved and requested frequency of the last plan.",
		},
		[]string{"instrument"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, instrumentActions, instrumentDuration, plans, planError)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordInstrumentAction(instrument, kind, action string, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	instrumentActions.WithLabelValues(instrument, kind, action, successLabel).Inc()
	instrumentDuration.WithLabelValues(instrument, kind, action, successLabel).Observe(duration.Seconds())
}

// RecordPlan counts one planner run. errorHz is only recorded for outcome "ok".
func RecordPlan(instrument, outcome string, errorHz float64) {
	RegisterMetrics()
	plans.WithLabelValues(instrument, outcome).Inc()
	if outcome == "ok" {
		planError.WithLabelValues(instrument).Set(errorHz)
	}
}
