// Package tasks runs fire-and-forget background work on a shared pool.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/ncobase/ncore/concurrency/worker"
	"github.com/ncobase/ncore/logging/logger"
)

type Runner struct {
	pool   *worker.Pool
	logger *logger.Logger
}

type funcProcessor struct{}

func (p *funcProcessor) Process(task any) error {
	if fn, ok := task.(func() error); ok {
		return fn()
	}
	return fmt.Errorf("invalid task type")
}

func NewRunner(maxWorkers, queueSize int, log *logger.Logger) (*Runner, func()) {
	pool := worker.NewPool(&worker.Config{
		MaxWorkers: maxWorkers,
		QueueSize:  queueSize,
	}, &funcProcessor{})
	pool.Start()

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pool.Stop(ctx)
	}

	return &Runner{pool: pool, logger: log}, cleanup
}

// Submit queues fn; a full queue is logged and dropped rather than blocking
// the request path.
func (r *Runner) Submit(name string, fn func() error) {
	err := r.pool.Submit(func() error {
		if err := fn(); err != nil {
			r.logger.Error(context.Background(), "Background task failed", "task", name, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		r.logger.Error(context.Background(), "Failed to queue background task", "task", name, "error", err)
	}
}
