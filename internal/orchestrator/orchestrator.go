// Package orchestrator wires the registry, task store, load balancer,
// fault detector, scheduler, recovery manager, metrics aggregator, and
// retention cleaner into a single unit with a conventional
// Start/Stop lifecycle (spec.md §1, §4.9).
package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevross-git/orchestrator/internal/config"
	"github.com/stevross-git/orchestrator/internal/faultdetector"
	"github.com/stevross-git/orchestrator/internal/loadbalancer"
	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/metrics"
	"github.com/stevross-git/orchestrator/internal/recovery"
	"github.com/stevross-git/orchestrator/internal/registry"
	"github.com/stevross-git/orchestrator/internal/retention"
	"github.com/stevross-git/orchestrator/internal/scheduler"
	"github.com/stevross-git/orchestrator/internal/taskstore"
)

// Orchestrator is the assembled system: every component plus the glue
// that starts and stops them together.
type Orchestrator struct {
	Config *config.Config

	Registry   *registry.Registry
	Tasks      *taskstore.Store
	Balancer   *loadbalancer.Balancer
	Detector   *faultdetector.Detector
	Recovery   *recovery.Manager
	Scheduler  *scheduler.Engine
	Metrics    *metrics.Aggregator
	Prometheus *metrics.PrometheusExporter
	Retention  *retention.Cleaner

	log *logrus.Entry

	cancel context.CancelFunc
}

// New assembles every component from cfg, wiring each one's
// collaborators the way cmd/orchestrator's root command expects.
func New(cfg *config.Config, logger *logrus.Logger) *Orchestrator {
	reg := registry.New(logger)
	store := taskstore.New(cfg.Scheduler.PendingQueueSoftCap)
	bal := loadbalancer.New(logger, time.Now().UnixNano())
	if err := bal.SetDefault(cfg.Scheduler.LoadBalanceAlgorithm); err != nil {
		logging.Component(logger, "orchestrator").WithError(err).Warn("falling back to default load balancing policy")
	}
	det := faultdetector.New(faultdetector.Config{
		HeartbeatTimeout:     cfg.Scheduler.HeartbeatTimeout,
		DegradeAfterFailures: cfg.Scheduler.DegradeAfterFailures,
		FailureWindow:        cfg.Scheduler.FailureWindow,
	})
	rec := recovery.New(store, logger)
	executor := scheduler.NewHTTPExecutor(cfg.Scheduler.DispatchTimeout)
	eng := scheduler.New(scheduler.Config{
		PollInterval:    cfg.Scheduler.PollInterval,
		SweepInterval:   cfg.Scheduler.SweepInterval,
		DispatchTimeout: cfg.Scheduler.DispatchTimeout,
		DefaultPolicy:   cfg.Scheduler.LoadBalanceAlgorithm,
	}, reg, store, bal, det, rec, executor, logger)

	agg := metrics.New(reg, store, logger)
	exporter := metrics.NewPrometheusExporter(logger)
	cleaner := retention.New(retention.Config{
		Interval:        cfg.Metrics.CleanupInterval,
		RetentionWindow: time.Duration(cfg.Metrics.RetentionHours) * time.Hour,
	}, store, logger)

	return &Orchestrator{
		Config:     cfg,
		Registry:   reg,
		Tasks:      store,
		Balancer:   bal,
		Detector:   det,
		Recovery:   rec,
		Scheduler:  eng,
		Metrics:    agg,
		Prometheus: exporter,
		Retention:  cleaner,
		log:        logging.Component(logger, "orchestrator"),
	}
}

// Start launches every background component. It returns once they are
// all running; it does not block.
func (o *Orchestrator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if err := o.Scheduler.Start(runCtx); err != nil {
		cancel()
		return err
	}
	o.Retention.Start(runCtx)
	o.startMetricsRefresh(runCtx)

	o.log.Info("orchestrator started")
	return nil
}

func (o *Orchestrator) startMetricsRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(o.Config.Metrics.AggregateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := o.Metrics.Refresh()
				o.Prometheus.Observe(snap)
			}
		}
	}()
}

// Stop cancels every background component and waits up to the
// configured ShutdownGrace (spec.md §5) for them to exit.
func (o *Orchestrator) Stop() {
	if o.cancel == nil {
		return
	}
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.Scheduler.Stop()
		o.Retention.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.Config.Scheduler.ShutdownGrace):
		o.log.Warn("graceful shutdown window elapsed before all components stopped")
	}
	o.log.Info("orchestrator stopped")
}
