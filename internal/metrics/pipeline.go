package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation pipeline Prometheus metrics.
var (
	PipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siprank",
			Name:      "pipeline_requests_total",
			Help:      "Total number of recommendation pipeline runs",
		},
		[]string{"status"}, // "ok" / "error"
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siprank",
			Name:      "pipeline_duration_seconds",
			Help:      "Recommendation pipeline duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // "extract" / "retrieve" / "total"
	)

	PipelineFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siprank",
			Name:      "pipeline_fallbacks_total",
			Help:      "Retrievals retried with a relaxed filter after zero results",
		},
	)

	ExtractionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siprank",
			Name:      "extraction_requests_total",
			Help:      "Total number of constraint extraction requests",
		},
		[]string{"model", "status"},
	)

	ExtractionDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siprank",
			Name:      "extraction_degraded_total",
			Help:      "Extraction failures degraded to unconstrained retrieval",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineRequestsTotal)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(PipelineFallbacksTotal)
	prometheus.MustRegister(ExtractionRequestsTotal)
	prometheus.MustRegister(ExtractionDegradedTotal)
	pipelineMetricsRegistered = true
}
