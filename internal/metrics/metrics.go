// Package metrics exports Prometheus metrics for the client core: pipeline
// outcomes and durations, camera state, guard decisions and backend traffic.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/menta2k/smodf-client/internal/session"
)

const namespace = "smodf"

// Metrics implements state.Observer and the transport response hook
type Metrics struct {
	registry *prometheus.Registry

	pipelineTotal     *prometheus.CounterVec
	pipelineDuration  *prometheus.HistogramVec
	cameraActive      prometheus.Gauge
	cameraTransitions *prometheus.CounterVec
	guardDecisions    *prometheus.CounterVec
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// New creates the metrics and registers them with registry
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register client metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.pipelineTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs partitioned by pipeline and status.",
		},
		[]string{"pipeline", "status"},
	)
	m.pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time taken by a detection or model generation run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"pipeline"},
	)
	m.cameraActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "camera_active",
			Help:      "1 while a camera stream is held.",
		},
	)
	m.cameraTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "camera_transitions_total",
			Help:      "Camera start and stop transitions.",
		},
		[]string{"state"},
	)
	m.guardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Navigation guard decisions partitioned by outcome and target.",
		},
		[]string{"outcome", "target"},
	)
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend requests partitioned by method and status code.",
		},
		[]string{"method", "code"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// PipelineFinished records one pipeline run
func (m *Metrics) PipelineFinished(pipeline string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.pipelineTotal.WithLabelValues(pipeline, status).Inc()
	m.pipelineDuration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
}

// CameraChanged records a camera transition
func (m *Metrics) CameraChanged(active bool) {
	if active {
		m.cameraActive.Set(1)
		m.cameraTransitions.WithLabelValues("started").Inc()
		return
	}
	m.cameraActive.Set(0)
	m.cameraTransitions.WithLabelValues("stopped").Inc()
}

// GuardDecision records one navigation decision
func (m *Metrics) GuardDecision(d session.Decision) {
	m.guardDecisions.WithLabelValues(d.Outcome.String(), d.Target).Inc()
}

// ObserveRequest has the transport.ResponseHook signature
func (m *Metrics) ObserveRequest(req *http.Request, resp *http.Response, elapsed time.Duration, err error) {
	code := "error"
	if resp != nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	m.requestsTotal.WithLabelValues(req.Method, code).Inc()
	m.requestDuration.WithLabelValues(req.Method).Observe(elapsed.Seconds())
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.pipelineTotal.Describe(ch)
	m.pipelineDuration.Describe(ch)
	ch <- m.cameraActive.Desc()
	m.cameraTransitions.Describe(ch)
	m.guardDecisions.Describe(ch)
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.pipelineTotal.Collect(ch)
	m.pipelineDuration.Collect(ch)
	ch <- m.cameraActive
	m.cameraTransitions.Collect(ch)
	m.guardDecisions.Collect(ch)
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
}
