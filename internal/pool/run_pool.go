// Package pool provides a bounded goroutine pool for dispatching concurrent
// workflow runs.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("run pool is closed")
	ErrPoolFull   = errors.New("run pool is full")
)

// RunTask is one run's execution, driven until the run parks or terminates.
type RunTask func(ctx context.Context) error

// RunPool caps how many runs execute concurrently. Each submitted task
// occupies one worker until it returns; excess submissions queue up to
// QueueSize and are rejected beyond that.
type RunPool struct {
	maxConcurrent int
	queue         chan runEntry
	workerCount   atomic.Int32
	activeCount   atomic.Int32
	closed        atomic.Bool
	wg            sync.WaitGroup

	// Metrics
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	idleTimeout time.Duration
}

type runEntry struct {
	task RunTask
	ctx  context.Context
}

// Config configures the pool.
type Config struct {
	MaxConcurrent int           `json:"max_concurrent" yaml:"max_concurrent"`
	QueueSize     int           `json:"queue_size" yaml:"queue_size"`
	IdleTimeout   time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// DefaultConfig returns sensible defaults for run dispatch.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 32,
		QueueSize:     128,
		IdleTimeout:   60 * time.Second,
	}
}

// NewRunPool creates a pool. Workers spawn lazily on demand.
func NewRunPool(cfg Config) *RunPool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}
	return &RunPool{
		maxConcurrent: cfg.MaxConcurrent,
		queue:         make(chan runEntry, cfg.QueueSize),
		idleTimeout:   cfg.IdleTimeout,
	}
}

// Dispatch hands a run task to the pool without waiting for it.
func (p *RunPool) Dispatch(ctx context.Context, task RunTask) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	entry := runEntry{task: task, ctx: ctx}
	select {
	case p.queue <- entry:
		p.ensureWorker()
		return nil
	default:
		if p.trySpawnWorker() {
			select {
			case p.queue <- entry:
				return nil
			default:
			}
		}
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *RunPool) ensureWorker() {
	if p.workerCount.Load() < int32(p.maxConcurrent) {
		p.trySpawnWorker()
	}
}

func (p *RunPool) trySpawnWorker() bool {
	for {
		current := p.workerCount.Load()
		if current >= int32(p.maxConcurrent) {
			return false
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return true
		}
	}
}

func (p *RunPool) worker() {
	defer p.wg.Done()
	defer p.workerCount.Add(-1)

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case entry, ok := <-p.queue:
			if !ok {
				return
			}

			p.activeCount.Add(1)
			err := p.execute(entry)
			p.activeCount.Add(-1)

			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}

			timer.Reset(p.idleTimeout)

		case <-timer.C:
			// Idle timeout, shrink down to one standing worker
			if p.workerCount.Load() > 1 {
				return
			}
			timer.Reset(p.idleTimeout)
		}
	}
}

func (p *RunPool) execute(entry runEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("run task panicked")
		}
	}()
	return entry.task(entry.ctx)
}

// Close stops accepting runs and waits for in-flight runs to finish.
func (p *RunPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.queue)
	p.wg.Wait()
}

// Stats returns pool statistics.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Stats snapshots the pool counters.
func (p *RunPool) Stats() Stats {
	return Stats{
		Workers:   int(p.workerCount.Load()),
		Active:    int(p.activeCount.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
