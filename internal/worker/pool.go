// Package worker runs detached background tasks on a bounded goroutine pool.
package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docingest/internal/domain"
)

// Pool is a non-blocking task scheduler: Schedule never waits for a free worker.
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger
}

// New creates a pool with size concurrent workers.
func New(size int, logger *zap.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithLogger(antsLogger{logger.Sugar()}),
		ants.WithPanicHandler(func(v any) {
			logger.Error("Worker task panicked", zap.Any("panic", v), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{pool: p, logger: logger}, nil
}

// Schedule submits task for background execution and returns immediately.
// A saturated or released pool yields domain.ErrOverloaded.
func (p *Pool) Schedule(task func()) error {
	err := p.pool.Submit(task)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		return fmt.Errorf("all %d workers busy: %w", p.pool.Cap(), domain.ErrOverloaded)
	case errors.Is(err, ants.ErrPoolClosed):
		return fmt.Errorf("worker pool closed: %w", domain.ErrOverloaded)
	default:
		return fmt.Errorf("submit task: %w", err)
	}
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int { return p.pool.Running() }

// Cap returns the pool capacity.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Release stops accepting tasks and waits up to timeout for running ones to finish.
func (p *Pool) Release(timeout time.Duration) error {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("release worker pool: %w", err)
	}
	return nil
}

type antsLogger struct{ s *zap.SugaredLogger }

func (l antsLogger) Printf(format string, args ...any) { l.s.Infof(format, args...) }
