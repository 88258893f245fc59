// Package metrics defines the Prometheus collectors of the solver service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScenarioRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyq_scenario_runs_total",
			Help: "Scenario evaluations by outcome",
		},
		[]string{"status"},
	)

	ScenarioDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hyq_scenario_duration_seconds",
			Help:    "Wall time of a scenario evaluation",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms .. ~65s
		},
	)

	// CellsEvaluated counts grid cells times wells times timesteps.
	CellsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hyq_cells_evaluated_total",
			Help: "Drawdown cell evaluations (cells x wells x timesteps)",
		},
	)

	Fits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyq_fits_total",
			Help: "Pumping test fits by method and outcome",
		},
		[]string{"method", "status"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hyq_worker_queue_depth",
			Help: "Batch scenarios waiting for a worker",
		},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyq_webhook_deliveries_total",
			Help: "Webhook deliveries by result (sent, failed, breaker_open, dropped)",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyq_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyq_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func RecordScenario(duration time.Duration, cells int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ScenarioRuns.WithLabelValues(status).Inc()
	ScenarioDuration.Observe(duration.Seconds())
	if err == nil && cells > 0 {
		CellsEvaluated.Add(float64(cells))
	}
}

func RecordFit(method string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Fits.WithLabelValues(method, status).Inc()
}

func RecordWebhook(result string) {
	WebhookDeliveries.WithLabelValues(result).Inc()
}

func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
