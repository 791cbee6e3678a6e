package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/microstore/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Fragment loads by outcome. Watch for: error share per fragment.
	FragmentLoadsTotal *prometheus.CounterVec

	// Fragment load latency. Watch for: a slow remote dragging page composition.
	FragmentLoadDuration *prometheus.HistogramVec

	// Fallback views rendered, by error category.
	FragmentFallbacksTotal *prometheus.CounterVec

	// Remote status probes by result.
	RemoteProbesTotal *prometheus.CounterVec

	// 1 when the last probe reached the remote, 0 otherwise.
	RemoteReachable *prometheus.GaugeVec

	// Session store failures. Watch for: memcached outages.
	StoreErrorsTotal *prometheus.CounterVec

	// Cart mutations by operation (add, update, remove, clear).
	CartOperationsTotal *prometheus.CounterVec

	// Simulated checkouts by status.
	CheckoutsTotal *prometheus.CounterVec

	// Login attempts by result.
	LoginAttemptsTotal *prometheus.CounterVec

	// Rate limit denials on shell actions.
	RateLimitDeniedTotal prometheus.Counter

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	FragmentLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragmentLoadsTotal",
			Help: "Total number of fragment loads",
		},
		[]string{"fragment", "view", "status"},
	)
	FragmentLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fragmentLoadDurationSeconds",
			Help:    "Fragment load latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"fragment", "status"},
	)
	FragmentFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragmentFallbacksTotal",
			Help: "Fallback views rendered instead of a remote fragment",
		},
		[]string{"fragment", "view", "category"},
	)
	RemoteProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remoteProbesTotal",
			Help: "Status probes sent to fragment remotes",
		},
		[]string{"remote", "result"},
	)
	RemoteReachable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remoteReachable",
			Help: "1 if the remote answered its last status probe",
		},
		[]string{"remote"},
	)
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeErrorsTotal",
			Help: "Session store errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	CartOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartOperationsTotal",
			Help: "Cart mutations by operation",
		},
		[]string{"operation"},
	)
	CheckoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkoutsTotal",
			Help: "Simulated checkouts by status",
		},
		[]string{"status"},
	)
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginAttemptsTotal",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		FragmentLoadsTotal, FragmentLoadDuration, FragmentFallbacksTotal,
		RemoteProbesTotal, RemoteReachable,
		StoreErrorsTotal,
		CartOperationsTotal, CheckoutsTotal, LoginAttemptsTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterTrafficGauges registers sliding-window gauges over fragment load
// outcomes. Call from main after config load; later calls are no-ops.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "fragmentLoadsInWindow",
					Help: "Fragment loads (rendered + fallback) in the sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "fragmentFallbacksInWindow",
					Help: "Fallback views rendered in the sliding window",
				},
				func() float64 {
					fallbacks, _ := traffic.FallbackRate(window)
					return float64(fallbacks)
				},
			),
		)
	})
}

// SetRemoteReachable mirrors a probe result into the reachability gauge.
func SetRemoteReachable(remote string, reachable bool) {
	v := 0.0
	if reachable {
		v = 1
	}
	RemoteReachable.WithLabelValues(remote).Set(v)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
