package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for schedule runs. All methods are nil
// safe so call sites need no guards when metrics are disabled.
type Metrics struct {
	registry       *prometheus.Registry
	trials         prometheus.Counter
	passes         prometheus.Counter
	timeSteps      prometheus.Counter
	stalledPasses  prometheus.Counter
	nodeExecutions *prometheus.CounterVec
}

// New creates the run metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickwise_trials_total",
			Help: "Total number of completed trials",
		}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickwise_passes_total",
			Help: "Total number of completed passes",
		}),
		timeSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickwise_time_steps_total",
			Help: "Total number of emitted time steps",
		}),
		stalledPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickwise_stalled_passes_total",
			Help: "Total number of passes that produced no executions",
		}),
		nodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickwise_node_executions_total",
			Help: "Total number of node executions by node",
		}, []string{"node"}),
	}

	m.registry.MustRegister(
		m.trials,
		m.passes,
		m.timeSteps,
		m.stalledPasses,
		m.nodeExecutions,
	)

	return m
}

// Handler returns an HTTP handler serving the run metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrialCompleted increments the completed trial count.
func (m *Metrics) TrialCompleted() {
	if m == nil {
		return
	}
	m.trials.Inc()
}

// PassCompleted increments the completed pass count.
func (m *Metrics) PassCompleted() {
	if m == nil {
		return
	}
	m.passes.Inc()
}

// TimeStepEmitted books one emitted time step and its node executions. An
// empty set is counted as a stalled pass.
func (m *Metrics) TimeStepEmitted(nodes []string) {
	if m == nil {
		return
	}
	m.timeSteps.Inc()
	if len(nodes) == 0 {
		m.stalledPasses.Inc()
		return
	}
	for _, node := range nodes {
		m.nodeExecutions.WithLabelValues(node).Inc()
	}
}
