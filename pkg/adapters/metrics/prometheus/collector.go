package prometheus

import (
	"time"

	"github.com/aescanero/dagflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	validations        *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	pipelineNodes      prometheus.Histogram
	pipelineEdges      prometheus.Histogram
	mutations          *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	queueDepth         prometheus.Gauge
	workerPoolIdle     prometheus.Gauge
	workerPoolBusy     prometheus.Gauge
	workerPoolStopped  prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered with
// reg. A nil reg uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagflow_validations_total",
				Help: "Total number of pipeline validations by outcome",
			},
			[]string{"outcome"},
		),
		validationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dagflow_validation_duration_seconds",
				Help:    "Pipeline validation duration in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"outcome"},
		),
		pipelineNodes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dagflow_pipeline_nodes",
				Help:    "Number of nodes in validated pipelines",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		pipelineEdges: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dagflow_pipeline_edges",
				Help:    "Number of edges in validated pipelines",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagflow_graph_mutations_total",
				Help: "Total number of editing session mutations",
			},
			[]string{"op", "status"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagflow_active_sessions",
				Help: "Number of open editing sessions",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagflow_validation_queue_depth",
				Help: "Validation jobs waiting for a worker",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagflow_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagflow_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagflow_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordValidation records one validation and the shape of its pipeline.
// Rejected pipelines are counted but their shape is not observed.
func (c *Collector) RecordValidation(outcome string, numNodes, numEdges int, duration time.Duration) {
	c.validations.WithLabelValues(outcome).Inc()
	c.validationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == ports.OutcomeRejected {
		return
	}
	c.pipelineNodes.Observe(float64(numNodes))
	c.pipelineEdges.Observe(float64(numEdges))
}

// RecordMutation counts a session mutation as ok or error
func (c *Collector) RecordMutation(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.mutations.WithLabelValues(op, status).Inc()
}

// SetActiveSessions sets the number of open editing sessions
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// SetQueueDepth sets the number of buffered validation jobs
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
