package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	routerDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calmclinic",
		Subsystem: "router",
		Name:      "decisions_total",
		Help:      "Routed queries broken down by terminal branch and reason.",
	}, []string{"branch", "reason"})

	routerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "calmclinic",
		Subsystem: "router",
		Name:      "latency_seconds",
		Help:      "End-to-end latency of routed queries.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"branch"})

	upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calmclinic",
		Subsystem: "upstream",
		Name:      "failures_total",
		Help:      "Failed upstream calls by stage (embed, score, fetch, generate, intent, log).",
	}, []string{"stage"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calmclinic",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "TTL cache lookups by data type and result.",
	}, []string{"data_type", "result"})
)

func RecordDecision(branch, reason string, elapsed time.Duration) {
	routerDecisions.With(prometheus.Labels{"branch": branch, "reason": reason}).Inc()
	routerLatency.WithLabelValues(branch).Observe(elapsed.Seconds())
}

func RecordUpstreamFailure(stage string) {
	upstreamFailures.WithLabelValues(stage).Inc()
}

// CacheObserver satisfies cache.Observer.
type CacheObserver struct{}

func (CacheObserver) ObserveLookup(dataType string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(dataType, result).Inc()
}

func Register(r *mux.Router, path string) {
	if path == "" {
		path = "/metrics"
	}
	r.Handle(path, promhttp.Handler()).Methods(http.MethodGet)
}
