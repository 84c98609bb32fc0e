package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// PrometheusExporter mirrors an Aggregator's Snapshot onto a dedicated
// Prometheus registry (not the global DefaultRegisterer, so multiple
// orchestrator instances in one process never collide) and serves it over
// /metrics.
type PrometheusExporter struct {
	registry *prometheus.Registry
	log      *logrus.Entry

	totalNodes     prometheus.Gauge
	activeNodes    prometheus.Gauge
	totalAgents    prometheus.Gauge
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	successRate    prometheus.Gauge
	networkUtil    prometheus.Gauge
	avgResponse    prometheus.Gauge
	throughput     prometheus.Gauge

	mu            sync.Mutex
	lastCompleted int64
	lastFailed    int64

	server *http.Server
}

// NewPrometheusExporter registers a fresh set of gauges/counters on their
// own prometheus.Registry.
func NewPrometheusExporter(logger *logrus.Logger) *PrometheusExporter {
	reg := prometheus.NewRegistry()
	e := &PrometheusExporter{
		registry: reg,
		totalNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_nodes_total", Help: "Total registered nodes.",
		}),
		activeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_nodes_active", Help: "Nodes currently Active.",
		}),
		totalAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_agents_total", Help: "Total registered agents.",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_tasks_completed_total", Help: "Tasks completed across all nodes.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_tasks_failed_total", Help: "Tasks failed across all nodes.",
		}),
		successRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_success_rate", Help: "Fraction of terminal tasks that completed successfully.",
		}),
		networkUtil: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_network_utilization", Help: "Mean node load score (0-1) across registered nodes.",
		}),
		avgResponse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_average_response_time_seconds", Help: "Average execution time over the last completed tasks.",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_throughput_per_minute", Help: "Terminal tasks per minute.",
		}),
	}
	reg.MustRegister(
		e.totalNodes, e.activeNodes, e.totalAgents,
		e.tasksCompleted, e.tasksFailed, e.successRate,
		e.networkUtil, e.avgResponse, e.throughput,
	)
	return e
}

// Observe mirrors snap onto the registered gauges/counters. Counters only
// move forward, so Observe tracks the last-seen cumulative totals and
// adds the delta.
func (e *PrometheusExporter) Observe(snap Snapshot) {
	e.totalNodes.Set(float64(snap.TotalNodes))
	e.activeNodes.Set(float64(snap.ActiveNodes))
	e.totalAgents.Set(float64(snap.TotalAgents))
	e.successRate.Set(snap.SuccessRate)
	e.networkUtil.Set(snap.NetworkUtilization)
	e.avgResponse.Set(snap.AverageResponseTimeSec)
	e.throughput.Set(snap.ThroughputPerMinute)

	e.mu.Lock()
	defer e.mu.Unlock()
	if delta := snap.TasksCompleted - e.lastCompleted; delta > 0 {
		e.tasksCompleted.Add(float64(delta))
		e.lastCompleted = snap.TasksCompleted
	}
	if delta := snap.TasksFailed - e.lastFailed; delta > 0 {
		e.tasksFailed.Add(float64(delta))
		e.lastFailed = snap.TasksFailed
	}
}

// Handler returns the promhttp handler for this exporter's registry.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ListenAndServe starts a dedicated HTTP server exposing /metrics on
// addr, returning once the context is cancelled and the server has
// stopped.
func (e *PrometheusExporter) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	e.server = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
