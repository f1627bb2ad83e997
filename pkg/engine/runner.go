package engine

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultInterval is how often Watch re-runs when the config does not say.
const DefaultInterval = time.Hour

// Runner drives the engine in one-shot or continuous mode.
type Runner struct {
	engine   *Engine
	interval time.Duration
	log      *log.Logger
}

// NewRunner wraps an engine. interval <= 0 selects DefaultInterval.
func NewRunner(e *Engine, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{engine: e, interval: interval, log: e.log}
}

// RunOnce performs a single run over every subscription.
func (r *Runner) RunOnce(ctx context.Context) (*Summary, error) {
	return r.engine.Run(ctx)
}

// Watch runs continuously on the configured interval until the context is
// canceled. Check failures are part of the summary and never stop the
// loop; a store failure does, since nothing can be committed without it.
func (r *Runner) Watch(ctx context.Context) error {
	r.log.Info("watching upstreams", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.engine.Run(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
