package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end pipeline execution duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage execution duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"stage"},
	)

	StageRowsOut = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Name:      "stage_rows_out",
			Help:      "Rows emitted per stage execution",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"stage"},
	)

	PushdownUnavailableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Name:      "pushdown_unavailable_total",
			Help:      "Queries planned without an index-eligible predicate",
		},
	)

	SpillsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Name:      "spills_total",
			Help:      "Intermediate row sets spilled to the store",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(StageRowsOut)
	prometheus.MustRegister(PushdownUnavailableTotal)
	prometheus.MustRegister(SpillsTotal)
	pipelineMetricsRegistered = true
}
