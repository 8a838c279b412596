package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ChatTurns        prometheus.Counter
	LLMCalls         *prometheus.CounterVec
	LLMLatency       *prometheus.HistogramVec
	MemoryWrites     *prometheus.CounterVec
	Consolidations   *prometheus.CounterVec
	SummaryRefreshes *prometheus.CounterVec

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChatTurns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Completed chat turns.",
		}),
		LLMCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		LLMLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_ms",
			Help:      "LLM call latency in milliseconds by operation.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}, []string{"op"}),
		MemoryWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_writes_total",
			Help:      "Long-term memory writes by action (inserted or merged).",
		}, []string{"action"}),
		Consolidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidations_total",
			Help:      "Consolidation cycles by outcome.",
		}, []string{"outcome"}),
		SummaryRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_refreshes_total",
			Help:      "Summary refresh cycles by outcome.",
		}, []string{"outcome"}),
		stages: newStageWindow(256),
	}
}

// ObserveLLMCall records one model call with its latency and outcome.
func (m *Metrics) ObserveLLMCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMCalls.WithLabelValues(op, outcome).Inc()
	m.LLMLatency.WithLabelValues(op).Observe(float64(d.Milliseconds()))
}

// ObserveStage feeds the in-process rolling latency window served by the
// perf endpoint.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

// PerfSnapshot returns rolling stage latency stats for the perf endpoint.
func (m *Metrics) PerfSnapshot() StageSnapshot {
	if m == nil {
		return StageSnapshot{}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
