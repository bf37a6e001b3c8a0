package dag

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the scheduler's observability surface for counters and
// gauges, separate from the per-event Hooks in dag/observability. A nil
// *Metrics is not valid; use NewMetrics or NewNoopMetrics.
type Metrics struct {
	inflightNodes prometheus.Gauge
	queueDepth    prometheus.Gauge

	nodeLatency *prometheus.HistogramVec
	retries     *prometheus.CounterVec

	oneOfFallbacks       *prometheus.CounterVec
	recurrenceIterations *prometheus.CounterVec

	mu      sync.Mutex
	enabled bool
}

// NewMetrics registers the engine's metrics with registry, adapted from the
// teacher's PrometheusMetrics (graph/metrics.go). Passing nil registers
// against prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dagrun",
			Name:      "inflight_nodes",
			Help:      "Nodes currently executing concurrently across all pools",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dagrun",
			Name:      "queue_depth",
			Help:      "Nodes that are ready but not yet dispatched",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dagrun",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"pipeline_id", "node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagrun",
			Name:      "retries_total",
			Help:      "Retry attempts across all nodes",
		}, []string{"pipeline_id", "node_id"}),
		oneOfFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagrun",
			Name:      "oneof_fallbacks_total",
			Help:      "Times a one-of head moved on to its next candidate",
		}, []string{"pipeline_id", "head_id"}),
		recurrenceIterations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagrun",
			Name:      "recurrence_iterations_total",
			Help:      "Iterations run by a bounded recurrence",
		}, []string{"pipeline_id", "start_id", "dest_id"}),
	}
}

// NewNoopMetrics returns Metrics whose recording methods are no-ops, for
// callers that don't want a Prometheus registry.
func NewNoopMetrics() *Metrics {
	return &Metrics{enabled: false}
}

func (m *Metrics) RecordNodeLatency(pipelineID, nodeID string, d time.Duration, status string) {
	if !m.enabled {
		return
	}
	m.nodeLatency.WithLabelValues(pipelineID, nodeID, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncrementRetries(pipelineID, nodeID string) {
	if !m.enabled {
		return
	}
	m.retries.WithLabelValues(pipelineID, nodeID).Inc()
}

func (m *Metrics) IncrementOneOfFallback(pipelineID, headID string) {
	if !m.enabled {
		return
	}
	m.oneOfFallbacks.WithLabelValues(pipelineID, headID).Inc()
}

func (m *Metrics) IncrementRecurrenceIteration(pipelineID, startID, destID string) {
	if !m.enabled {
		return
	}
	m.recurrenceIterations.WithLabelValues(pipelineID, startID, destID).Inc()
}

func (m *Metrics) SetInflightNodes(n int) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflightNodes.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth.Set(float64(n))
}
