// Package service wires the scorer, the batch pipeline and the result store
// into the operations used by the CLI and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/posfit/internal/adapters/mq/queue"
	"github.com/okian/posfit/internal/adapters/mq/worker"
	"github.com/okian/posfit/internal/adapters/repository"
	"github.com/okian/posfit/internal/adapters/source"
	"github.com/okian/posfit/internal/domain/dedupe"
	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/reference"
	"github.com/okian/posfit/internal/domain/scoring"
	"github.com/okian/posfit/internal/domain/types"
	"github.com/okian/posfit/pkg/logger"
	"github.com/okian/posfit/pkg/metrics"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrNoScorer   = errors.New("scorer is required")
)

// BatchReport summarises one batch run.
type BatchReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Read       int           `json:"read"`
	Duplicates int           `json:"duplicates"`
	Scored     int           `json:"scored"`
	Fallbacks  int           `json:"fallbacks"`
	Failed     int           `json:"failed"`
}

// Stats describes the running service.
type Stats struct {
	Started            bool         `json:"started"`
	Workers            int          `json:"workers"`
	QueueCapacity      int          `json:"queue_capacity"`
	QueueLength        int          `json:"queue_length"`
	ReferencePositions []string     `json:"reference_positions"`
	ReferenceWarnings  int          `json:"reference_warnings"`
	StoredResults      int          `json:"stored_results"`
	Pool               worker.Stats `json:"pool"`
	LastRun            *BatchReport `json:"last_run,omitempty"`
}

// Service runs batch scoring and answers result queries.
type Service struct {
	mu sync.RWMutex

	scorer *scoring.Scorer
	store  repository.ResultStore
	queue  *queue.InMemoryQueue
	pool   *worker.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	report      reference.LoadReport

	started bool
	lastRun *BatchReport

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the player queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the per-run duplicate tracker; 0 keeps it unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithStore sets the result store. The service owns it and closes it on Stop.
func WithStore(store repository.ResultStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithReferenceReport records the warnings produced while loading reference data.
func WithReferenceReport(report reference.LoadReport) Option {
	return func(s *Service) {
		s.report = report
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service around scorer.
func New(scorer *scoring.Scorer, opts ...Option) (*Service, error) {
	if scorer == nil {
		return nil, ErrNoScorer
	}
	s := &Service{
		scorer:      scorer,
		workerCount: runtime.NumCPU(),
		queueSize:   4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s, nil
}

// Start creates the store (when none was given), the queue and the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.store == nil {
		s.store = repository.NewMemStore(ctx)
		s.logger.Info(ctx, "using in-memory result store")
	}
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.scorer, s.store)
	s.pool.Start(ctx)

	positions := s.scorer.Table().Positions()
	metrics.UpdateReferencePositions(len(positions))

	s.started = true
	s.logger.Info(ctx, "position-fit service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("reference_positions", len(positions)),
	)
	return nil
}

// Stop drains the queue, stops the workers and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping position-fit service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing result store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "position-fit service stopped")
}

// RunBatch reads every player from src, scores them on the worker pool and
// writes the results. Duplicate player IDs within the run are scored once.
// A player that fails to score still gets the neutral fallback result.
func (s *Service) RunBatch(ctx context.Context, src source.Source) (report BatchReport, err error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		return BatchReport{}, ErrNotStarted
	}

	report = BatchReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := s.logger.Named("batch")
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		metrics.RecordBatchDuration(float64(report.Duration.Milliseconds()))
	}()

	players, err := src.Players(ctx)
	if err != nil {
		metrics.RecordBatchRun("error")
		return report, fmt.Errorf("failed to read players: %w", err)
	}
	report.Read = len(players)
	metrics.UpdateBatchPlayers(len(players))
	log.Info(ctx, "batch started", logger.String("run_id", report.RunID), logger.Int("players", len(players)))

	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	done := make(chan queue.Outcome, len(players))
	submitted := 0
	var submitErr error
	for _, p := range players {
		if p.ID != "" && seen.SeenAndRecord(ctx, p.ID) {
			report.Duplicates++
			metrics.RecordPlayerDuplicate()
			log.Debug(ctx, "duplicate player skipped", logger.String("player_id", p.ID))
			continue
		}
		if p.Err != nil {
			log.Warn(ctx, "malformed player row", logger.String("player_id", p.ID), logger.Error(p.Err))
		}
		if err := q.EnqueueWait(ctx, queue.Job{Player: p, RunID: report.RunID, Done: done}); err != nil {
			submitErr = fmt.Errorf("failed to enqueue player %q: %w", p.ID, err)
			break
		}
		submitted++
	}

	for i := 0; i < submitted; i++ {
		select {
		case out := <-done:
			switch {
			case out.Err != nil:
				report.Failed++
			case out.Result.Fallback:
				report.Fallbacks++
				report.Scored++
			default:
				report.Scored++
			}
		case <-ctx.Done():
			metrics.RecordBatchRun("error")
			return report, ctx.Err()
		}
	}

	s.mu.Lock()
	last := report
	last.Duration = time.Since(report.StartedAt)
	s.lastRun = &last
	s.mu.Unlock()

	if submitErr != nil {
		metrics.RecordBatchRun("error")
		return report, submitErr
	}
	metrics.RecordBatchRun("ok")
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateStoreRecords(n)
	}
	log.Info(ctx, "batch finished",
		logger.String("run_id", report.RunID),
		logger.Int("scored", report.Scored),
		logger.Int("fallbacks", report.Fallbacks),
		logger.Int("duplicates", report.Duplicates),
		logger.Int("failed", report.Failed),
	)
	return report, nil
}

// Score computes a result for p without storing it.
func (s *Service) Score(ctx context.Context, p model.Player) model.Result {
	start := time.Now()
	res := s.scorer.ScoreSafe(ctx, p)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	return res
}

// Result returns the stored result for a player.
func (s *Service) Result(ctx context.Context, playerID string) (model.Result, error) {
	store, err := s.resultStore()
	if err != nil {
		return model.Result{}, err
	}
	return store.Get(ctx, playerID)
}

// TopN returns the best n players at pos.
func (s *Service) TopN(ctx context.Context, pos position.Position, n int) ([]types.Entry, error) {
	store, err := s.resultStore()
	if err != nil {
		return nil, err
	}
	return store.TopN(ctx, pos, n)
}

// Rank returns a player's rank at pos.
func (s *Service) Rank(ctx context.Context, pos position.Position, playerID string) (types.Entry, error) {
	store, err := s.resultStore()
	if err != nil {
		return types.Entry{}, err
	}
	return store.Rank(ctx, pos, playerID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:           s.started,
		Workers:           s.workerCount,
		QueueCapacity:     s.queueSize,
		ReferenceWarnings: len(s.report.Warnings),
		LastRun:           s.lastRun,
	}
	for _, p := range s.scorer.Table().Positions() {
		stats.ReferencePositions = append(stats.ReferencePositions, p.String())
	}
	if !s.started {
		return stats
	}

	stats.QueueLength = s.queue.Len(ctx)
	stats.Pool = s.pool.Stats()
	if n, err := s.store.Count(ctx); err == nil {
		stats.StoredResults = n
		metrics.UpdateStoreRecords(n)
	} else {
		s.logger.Warn(ctx, "failed to count stored results", logger.Error(err))
	}
	return stats
}

func (s *Service) resultStore() (repository.ResultStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}
