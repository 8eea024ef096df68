// Package worker scores queued players and writes their results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/posfit/internal/adapters/mq/queue"
	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/pkg/logger"
	"github.com/okian/posfit/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrMissingPlayerID marks a result that cannot be written because the
// player had no identifier.
var ErrMissingPlayerID = errors.New("player has no id")

// Scorer produces a result for every player, substituting the neutral
// fallback when scoring fails.
type Scorer interface {
	ScoreSafe(ctx context.Context, p model.Player) model.Result
}

// Writer persists results.
type Writer interface {
	Upsert(ctx context.Context, results ...model.Result) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue closes or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// Stats are cumulative counters shared by a pool's workers.
type Stats struct {
	Processed int64 `json:"processed"`
	Fallbacks int64 `json:"fallbacks"`
	Failed    int64 `json:"failed"`
}

type counters struct {
	processed atomic.Int64
	fallbacks atomic.Int64
	failed    atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Processed: c.processed.Load(),
		Fallbacks: c.fallbacks.Load(),
		Failed:    c.failed.Load(),
	}
}

// InMemoryWorker scores jobs read from a Queue.
type InMemoryWorker struct {
	queue  Queue
	scorer Scorer
	writer Writer
	name   string
	now    func() time.Time
	stats  *counters

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scorer Scorer, writer Writer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		scorer:   scorer,
		writer:   writer,
		name:     "worker",
		now:      time.Now,
		stats:    &counters{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// The dequeue loop ends with the worker, so a stopped worker leaves
	// queued jobs for others.
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := w.queue.Dequeue(dctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			out := w.process(ctx, j)
			if out.Err != nil {
				w.logger.Error(ctx, "error processing player",
					logger.String("player_id", out.PlayerID),
					logger.Error(out.Err))
			}
			if j.Done != nil {
				j.Done <- out
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process scores one player and writes the result.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) queue.Outcome { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	res := w.scorer.ScoreSafe(ctx, j.Player)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)

	res.RunID = j.RunID
	res.ScoredAt = w.now().UTC()

	w.stats.processed.Add(1)
	metrics.RecordPlayerScored()
	metrics.RecordBestPosition(res.BestPosition.String())
	if res.Fallback {
		w.stats.fallbacks.Add(1)
		metrics.RecordPlayerFallback()
	}

	out := queue.Outcome{PlayerID: res.PlayerID, Result: res}
	if res.PlayerID == "" {
		w.stats.failed.Add(1)
		metrics.RecordWorkerError()
		out.Err = ErrMissingPlayerID
		return out
	}
	if err := w.writer.Upsert(ctx, res); err != nil {
		w.stats.failed.Add(1)
		metrics.RecordWorkerError()
		out.Err = fmt.Errorf("failed to write result: %w", err)
	}
	return out
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *counters
	started atomic.Bool

	stopOnce sync.Once
	logger   logger.Logger
}

// NewPool creates a new worker pool. A non-positive count means one worker per CPU.
func NewPool(workerCount int, q Queue, scorer Scorer, writer Writer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		stats:   &counters{},
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, scorer, writer, wopts...)
		w.stats = pool.stats
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Stats returns the pool's cumulative counters.
func (p *Pool) Stats() Stats { return p.stats.snapshot() }

// Stop signals every worker to stop after its current job and waits for them.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		for _, w := range p.workers {
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	})
	if !p.started.Load() {
		return
	}
	for _, w := range p.workers {
		<-w.done
	}
	metrics.UpdateWorkerCount(0)
}

// Shutdown closes the queue, lets the workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
