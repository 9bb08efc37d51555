package app

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"crosspay/go-backend/pkg/models"
)

// PipelineMetrics exports per-stage outcome counters and latency histograms.
type PipelineMetrics struct {
	stageTotal   *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PipelineMetrics{
		stageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crosspay",
			Name:      "pipeline_stage_total",
			Help:      "Pipeline stage completions by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crosspay",
			Name:      "pipeline_stage_seconds",
			Help:      "Pipeline stage latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	reg.MustRegister(m.stageTotal, m.stageLatency)
	return m
}

func (m *PipelineMetrics) Observe(stage string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageTotal.WithLabelValues(stage, outcome).Inc()
	m.stageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

type opMetric struct {
	count   int
	errors  int
	totalNs int64
	maxNs   int64
	lastNs  int64
}

// ServiceMetricsState is the in-memory operation/error snapshot surfaced by
// the metrics_get RPC method.
type ServiceMetricsState struct {
	mu            sync.RWMutex
	errorCounters map[string]int
	opMetrics     map[string]*opMetric
	lastUpdatedAt time.Time
}

func NewServiceMetricsState() *ServiceMetricsState {
	return &ServiceMetricsState{
		errorCounters: map[string]int{},
		opMetrics:     map[string]*opMetric{},
	}
}

func (m *ServiceMetricsState) RecordOp(operation string, started time.Time) {
	latency := time.Since(started).Nanoseconds()
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, ok := m.opMetrics[operation]
	if !ok {
		metric = &opMetric{}
		m.opMetrics[operation] = metric
	}
	metric.count++
	metric.totalNs += latency
	metric.lastNs = latency
	if latency > metric.maxNs {
		metric.maxNs = latency
	}
	m.lastUpdatedAt = time.Now().UTC()
}

func (m *ServiceMetricsState) RecordOpError(operation, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, ok := m.opMetrics[operation]
	if !ok {
		metric = &opMetric{}
		m.opMetrics[operation] = metric
	}
	metric.errors++
	if stage == "" {
		stage = "internal"
	}
	m.errorCounters[stage]++
	m.lastUpdatedAt = time.Now().UTC()
}

func (m *ServiceMetricsState) Snapshot() (map[string]int, map[string]models.OperationMetric, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int, len(m.errorCounters))
	for k, v := range m.errorCounters {
		counters[k] = v
	}
	opStats := make(map[string]models.OperationMetric, len(m.opMetrics))
	for name, metric := range m.opMetrics {
		avg := int64(0)
		if metric.count > 0 {
			avg = metric.totalNs / int64(metric.count) / int64(time.Millisecond)
		}
		opStats[name] = models.OperationMetric{
			Count:         metric.count,
			Errors:        metric.errors,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  metric.maxNs / int64(time.Millisecond),
			LastLatencyMs: metric.lastNs / int64(time.Millisecond),
		}
	}
	return counters, opStats, m.lastUpdatedAt
}
