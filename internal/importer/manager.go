package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/store"
)

// Runner processes a single claimed job. *Pipeline is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, job *store.Job)
}

// Manager owns the import worker pool. Workers claim pending jobs from the
// store oldest-first and run them through the pipeline. A background sweep
// removes terminal jobs past the retention window.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	pipeline Runner
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewManager wires a manager around a pipeline.
func NewManager(cfg *config.Config, st *store.Store, pipeline Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    st,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Start launches the worker pool and the retention sweep. It is an error to
// start a manager that is already running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("import manager already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Import.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func(worker int) {
			defer m.wg.Done()
			m.runWorker(runCtx, worker)
		}(i + 1)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runSweep(runCtx)
	}()

	m.logger.Info("import manager started",
		logging.String(logging.FieldEventType, "manager_started"),
		logging.Int("workers", workers))
	return nil
}

// Stop cancels all workers and waits for in-flight jobs to reach a
// checkpoint and exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("import manager stopped",
		logging.String(logging.FieldEventType, "manager_stopped"))
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runWorker(ctx context.Context, worker int) {
	logger := m.logger.With(logging.Int("worker", worker))
	poll := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}

	for {
		if ctx.Err() != nil {
			return
		}
		job, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, store.ErrJobNotPending) {
				// Another worker won the claim race. Try again immediately.
				continue
			}
			logger.Error("claim next job failed", logging.Error(err))
			if !sleepCtx(ctx, poll) {
				return
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, poll) {
				return
			}
			continue
		}
		logger.Info("job claimed",
			logging.String(logging.FieldEventType, "job_claimed"),
			logging.Int64(logging.FieldJobID, job.ID))
		m.pipeline.Run(ctx, job)
	}
}

func (m *Manager) runSweep(ctx context.Context) {
	interval := time.Duration(m.cfg.Import.SweepInterval) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Duration(m.cfg.Import.RetentionDays) * 24 * time.Hour)
			removed, err := m.store.DeleteTerminalBefore(ctx, cutoff)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				m.logger.Error("retention sweep failed", logging.Error(err))
				continue
			}
			if removed > 0 {
				m.logger.Info("retention sweep removed jobs",
					logging.String(logging.FieldEventType, "retention_sweep"),
					logging.Int64("removed", removed))
			}
		}
	}
}

// sleepCtx waits for the duration or context cancellation, reporting whether
// the caller should keep going.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
