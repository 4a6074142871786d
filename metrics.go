package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "globemesh",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "globemesh",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
	}, []string{"method", "route"})

	featuresConverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "globemesh",
		Subsystem: "mesh",
		Name:      "features_converted_total",
		Help:      "Total features converted into meshes",
	}, []string{"collection"})

	featureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "globemesh",
		Subsystem: "mesh",
		Name:      "feature_failures_total",
		Help:      "Total features skipped because they could not be converted",
	}, []string{"collection", "kind"})

	conversionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "globemesh",
		Subsystem: "mesh",
		Name:      "conversion_duration_seconds",
		Help:      "Time spent converting a collection",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 9),
	}, []string{"collection"})

	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "globemesh",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total response cache hits",
	}, []string{"kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "globemesh",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total response cache misses",
	}, []string{"kind"})

	collectionReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "globemesh",
		Subsystem: "index",
		Name:      "reloads_total",
		Help:      "Total collection reloads triggered by file changes",
	}, []string{"collection", "result"})

	collectionFeatures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "globemesh",
		Subsystem: "index",
		Name:      "features",
		Help:      "Number of features in each loaded collection",
	}, []string{"collection"})
)

var metricsHandler = promhttp.Handler()

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request metrics, labelled by route pattern rather than
// raw path to keep cardinality bounded.
func instrument(route func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		pattern := route(r)
		httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	}
}
