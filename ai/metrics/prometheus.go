// Package metrics provides Prometheus metrics export for the conversation pipeline.
package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/mindcare/store"
)

const namespace = "mindcare"

// PrometheusExporter exports pipeline metrics in Prometheus format.
// A nil *PrometheusExporter is valid and records nothing.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Pipeline metrics
	pipelines       *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
	pipelinesActive prometheus.Gauge

	// Triage metrics
	triageFailSafe *prometheus.CounterVec

	// Upstream generation metrics
	upstreamErrors *prometheus.CounterVec

	// Store metrics
	persistenceErrors *prometheus.CounterVec
}

var _ store.PersistenceObserver = (*PrometheusExporter)(nil)

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.pipelines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "messages_total",
			Help:      "Total number of processed messages",
		},
		[]string{"agent", "risk_level", "status"},
	)

	e.pipelineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "latency_seconds",
			Help:      "Message pipeline latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"agent"},
	)

	e.pipelinesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "active",
			Help:      "Number of messages currently in the pipeline",
		},
	)

	e.triageFailSafe = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "triage",
			Name:      "failsafe_total",
			Help:      "Total number of fail-safe assessments",
		},
		[]string{"reason"},
	)

	e.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "upstream_errors_total",
			Help:      "Total number of failed generation calls",
		},
		[]string{"kind", "caller"},
	)

	e.persistenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persistence_errors_total",
			Help:      "Total number of failed document reads and writes",
		},
		[]string{"collection", "op"},
	)

	registry.MustRegister(
		e.pipelines,
		e.pipelineLatency,
		e.pipelinesActive,
		e.triageFailSafe,
		e.upstreamErrors,
		e.persistenceErrors,
	)

	return e
}

// RecordPipeline records one completed message pipeline.
func (e *PrometheusExporter) RecordPipeline(agent, riskLevel string, latency time.Duration, degraded bool) {
	if e == nil {
		return
	}
	status := "ok"
	if degraded {
		status = "degraded"
	}
	e.pipelines.WithLabelValues(agent, riskLevel, status).Inc()
	e.pipelineLatency.WithLabelValues(agent).Observe(latency.Seconds())
}

// PipelineStarted increments the active gauge and returns its decrement.
func (e *PrometheusExporter) PipelineStarted() func() {
	if e == nil {
		return func() {}
	}
	e.pipelinesActive.Inc()
	return e.pipelinesActive.Dec
}

// RecordFailSafe records a substituted triage assessment.
func (e *PrometheusExporter) RecordFailSafe(reason string) {
	if e == nil {
		return
	}
	e.triageFailSafe.WithLabelValues(reason).Inc()
}

// RecordUpstreamError records a failed generation call by kind and caller.
func (e *PrometheusExporter) RecordUpstreamError(kind, caller string) {
	if e == nil {
		return
	}
	e.upstreamErrors.WithLabelValues(kind, caller).Inc()
}

// ObservePersistenceError implements store.PersistenceObserver.
func (e *PrometheusExporter) ObservePersistenceError(err *store.PersistenceError) {
	if e == nil || err == nil {
		return
	}
	e.persistenceErrors.WithLabelValues(err.Collection, err.Op).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}

// ExportText renders counters and gauges as "name{labels} value" lines,
// sorted, for logs and debugging.
func (e *PrometheusExporter) ExportText() (string, error) {
	families, err := e.registry.Gather()
	if err != nil {
		return "", err
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}

			name := mf.GetName()
			if len(m.GetLabel()) > 0 {
				labels := make([]string, 0, len(m.GetLabel()))
				for _, l := range m.GetLabel() {
					labels = append(labels, l.GetName()+"=\""+l.GetValue()+"\"")
				}
				sort.Strings(labels)
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, name+" "+strconv.FormatFloat(value, 'f', -1, 64))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}
