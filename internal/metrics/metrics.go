package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "doclens"

// Run outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeNoTables = "no_tables"
	OutcomeFailed   = "failed"
)

// Metrics collects pipeline and HTTP metrics on a private registry
type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	pages         *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	inFlight      prometheus.Gauge
	tempDirsSwept prometheus.Counter

	runsTotal   atomic.Int64
	runsSuccess atomic.Int64
	runsFailed  atomic.Int64
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide Metrics
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New creates Metrics with its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		startTime: time.Now(),
		registry:  reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Processing runs labelled by output format and outcome",
		}, []string{"format", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one processing run.",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"format"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Classified pages labelled by extraction path",
		}, []string{"path"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of external collaborator calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests labelled by route and status",
		}, []string{"method", "route", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Processing runs currently executing",
		}),
		tempDirsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_dirs_swept_total",
			Help:      "Stale temporary directories removed by the janitor",
		}),
	}

	reg.MustRegister(
		m.runs,
		m.runDuration,
		m.pages,
		m.stageLatency,
		m.httpRequests,
		m.inFlight,
		m.tempDirsSwept,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRun counts one finished run
func (m *Metrics) RecordRun(format, outcome string, d time.Duration) {
	m.runs.WithLabelValues(format, outcome).Inc()
	m.runDuration.WithLabelValues(format).Observe(d.Seconds())

	m.runsTotal.Add(1)
	switch outcome {
	case OutcomeFailed:
		m.runsFailed.Add(1)
	default:
		m.runsSuccess.Add(1)
	}
}

// RecordPage counts a classified page by the path that produced it
func (m *Metrics) RecordPage(path string) {
	m.pages.WithLabelValues(path).Inc()
}

// ObserveStage records how long a collaborator call took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordHTTP counts one HTTP response
func (m *Metrics) RecordHTTP(method, route string, status int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncInFlight() {
	m.inFlight.Inc()
}

func (m *Metrics) DecInFlight() {
	m.inFlight.Dec()
}

// RecordSwept counts temp directories removed by the janitor
func (m *Metrics) RecordSwept(n int) {
	m.tempDirsSwept.Add(float64(n))
}

type Snapshot struct {
	Uptime      time.Duration `json:"uptime"`
	RunsTotal   int64         `json:"runs_total"`
	RunsSuccess int64         `json:"runs_success"`
	RunsFailed  int64         `json:"runs_failed"`
	SuccessRate float64       `json:"success_rate"`
}

func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{
		Uptime:      time.Since(m.startTime),
		RunsTotal:   m.runsTotal.Load(),
		RunsSuccess: m.runsSuccess.Load(),
		RunsFailed:  m.runsFailed.Load(),
	}
	if s.RunsTotal > 0 {
		s.SuccessRate = float64(s.RunsSuccess) / float64(s.RunsTotal) * 100
	}
	return s
}
