package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики выполнения. Регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler() на /metrics.
var (
	// NodeExecutions — завершённые узлы по типу и итоговому статусу.
	NodeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synapse_node_executions_total",
		Help: "Total node executions by node type and terminal status",
	}, []string{"node_type", "status"})

	// NodeDuration — длительность выполнения узла.
	NodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "synapse_node_duration_seconds",
		Help:    "Node execution duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"node_type"})

	// StreamChunks — промежуточные результаты, переданные наблюдателю.
	StreamChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synapse_stream_chunks_total",
		Help: "Streaming progress events emitted by node type",
	}, []string{"node_type"})

	// RunsTotal — завершённые run по итоговому статусу.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synapse_runs_total",
		Help: "Finished runs by terminal status",
	}, []string{"status"})

	// RunsInFlight — run, выполняющиеся прямо сейчас.
	RunsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "synapse_runs_in_flight",
		Help: "Runs currently executing",
	})
)
