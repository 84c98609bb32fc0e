// Package retention periodically evicts terminal tasks past their
// retention window from the task store (spec.md §4.8).
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/taskstore"
)

// Config tunes the cleaner's schedule and retention window.
type Config struct {
	Interval        time.Duration
	RetentionWindow time.Duration
}

// DefaultConfig matches spec.md §4.8: sweep hourly, keep terminal tasks
// for 24 hours.
func DefaultConfig() Config {
	return Config{Interval: time.Hour, RetentionWindow: 24 * time.Hour}
}

// Cleaner runs Evict on store on a fixed interval.
type Cleaner struct {
	cfg   Config
	store *taskstore.Store
	log   *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Cleaner over store.
func New(cfg Config, store *taskstore.Store, logger *logrus.Logger) *Cleaner {
	return &Cleaner{cfg: cfg, store: store, log: logging.Component(logger, "retention")}
}

// Start launches the cleanup loop as a cancellable goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.loop()
}

// Stop cancels the cleanup loop and waits for it to exit.
func (c *Cleaner) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Cleaner) loop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cleaner) sweep() {
	cutoff := time.Now().Add(-c.cfg.RetentionWindow)
	result := c.store.Evict(cutoff)
	if result.CompletedEvicted > 0 || result.FailedEvicted > 0 {
		c.log.WithFields(logrus.Fields{
			"completed_evicted": result.CompletedEvicted,
			"failed_evicted":    result.FailedEvicted,
		}).Info("evicted terminal tasks past retention window")
	}
}
