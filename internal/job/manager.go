package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/transcript-diarizer/internal/diarize"
	"github.com/skypro1111/transcript-diarizer/internal/metrics"
)

var (
	// ErrNotFound is returned for unknown or already removed job ids
	ErrNotFound = errors.New("job not found")

	// ErrTooManyJobs is returned when the unfinished job limit is reached
	ErrTooManyJobs = errors.New("too many unfinished jobs")

	errCancelled = errors.New("job cancelled")
)

// Processor turns an uploaded recording into a transcription, reporting
// progress percentages along the way
type Processor func(ctx context.Context, name string, data []byte, progress func(float64)) (*diarize.Transcription, error)

// Config contains job manager settings
type Config struct {
	MaxConcurrent   int           // jobs processed at the same time
	MaxQueued       int           // unfinished jobs accepted, 0 = unlimited
	Timeout         time.Duration // per job, 0 = none
	Retention       time.Duration // how long finished jobs are kept
	CleanupInterval time.Duration
}

// Manager owns all jobs and the worker slots that process them
type Manager struct {
	jobs      map[string]*Job
	mu        sync.RWMutex
	logger    *slog.Logger
	config    Config
	processor Processor
	metrics   *metrics.Metrics

	slots chan struct{}
	wg    sync.WaitGroup

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a job manager and starts its cleanup routine. m may be nil.
func NewManager(logger *slog.Logger, config Config, processor Processor, m *metrics.Metrics) (*Manager, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}

	if config.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("max concurrent jobs must be positive, got %d", config.MaxConcurrent)
	}

	if config.MaxQueued < 0 {
		return nil, fmt.Errorf("max queued jobs cannot be negative, got %d", config.MaxQueued)
	}

	if config.Retention <= 0 {
		config.Retention = time.Hour
	}

	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		jobs:      make(map[string]*Job),
		logger:    logger,
		config:    config,
		processor: processor,
		metrics:   m,
		slots:     make(chan struct{}, config.MaxConcurrent),
		ctx:       ctx,
		cancel:    cancel,
		cleanup:   make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

// Submit queues a recording for processing and returns immediately
func (m *Manager) Submit(name string, data []byte) (*Job, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("job %s has no data", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ctx.Err(); err != nil {
		return nil, fmt.Errorf("job manager stopped: %w", err)
	}

	active := m.activeCountLocked()
	if m.config.MaxQueued > 0 && active >= m.config.MaxQueued {
		return nil, fmt.Errorf("%w: %d of %d", ErrTooManyJobs, active, m.config.MaxQueued)
	}

	jobCtx, jobCancel := context.WithCancel(m.ctx)
	job := newJob(uuid.NewString(), name, len(data), jobCancel)
	m.jobs[job.ID] = job

	m.metrics.RecordJobCreated()
	m.metrics.SetActiveJobs(active + 1)

	m.wg.Add(1)
	go m.run(jobCtx, job, data)

	m.logger.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("name", name),
		slog.Int("size", len(data)),
		slog.Int("active_jobs", active+1),
	)

	return job, nil
}

// run waits for a worker slot and processes the job
func (m *Manager) run(ctx context.Context, job *Job, data []byte) {
	defer m.wg.Done()
	defer job.cancel()

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		job.fail(cancelCause(ctx))
		m.finished(job, false)
		return
	}

	if ctx.Err() != nil {
		job.fail(cancelCause(ctx))
		m.finished(job, false)
		return
	}

	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	job.start()

	result, err := m.processor(ctx, job.Name, data, job.setProgress)
	if ctx.Err() != nil {
		err = cancelCause(ctx)
	}
	if err == nil && result == nil {
		err = fmt.Errorf("processor returned no result")
	}

	if err != nil {
		job.fail(err)
		m.finished(job, false)
		m.logger.Warn("Job failed",
			slog.String("job_id", job.ID),
			slog.String("name", job.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	job.complete(result)
	m.finished(job, true)
	m.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.String("name", job.Name),
		slog.Int("segments", len(result.Segments)),
	)
}

func (m *Manager) finished(job *Job, success bool) {
	info := job.Info()

	duration := 0.0
	if info.FinishedAt != nil {
		duration = info.FinishedAt.Sub(info.CreatedAt).Seconds()
	}

	m.metrics.RecordJobFinished(success, duration)
	m.metrics.SetActiveJobs(m.ActiveCount())
}

func cancelCause(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return errCancelled
	}
	return ctx.Err()
}

// Get returns a job by id
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// List returns snapshots of all jobs, newest first, without results
func (m *Manager) List() []Info {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(jobs))
	for _, job := range jobs {
		info := job.Info()
		info.Result = nil
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	return infos
}

// Remove deletes a job, cancelling it if it is still queued or running
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	job, exists := m.jobs[id]
	if exists {
		delete(m.jobs, id)
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	job.cancel()

	m.logger.Info("Job removed",
		slog.String("job_id", id),
		slog.String("status", string(job.Status())),
	)

	return nil
}

// Subscribe returns a channel that delivers the latest snapshot of a job
// (without its result) and is closed when the job finishes. Call the returned
// function to stop listening early.
func (m *Manager) Subscribe(id string) (<-chan Info, func(), error) {
	job, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}

	ch, unsubscribe := job.subscribe()
	return ch, unsubscribe, nil
}

// ActiveCount returns the number of queued or running jobs
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeCountLocked()
}

func (m *Manager) activeCountLocked() int {
	count := 0
	for _, job := range m.jobs {
		if !job.Status().Terminal() {
			count++
		}
	}
	return count
}

// Counts returns the number of jobs per status
func (m *Manager) Counts() map[Status]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[Status]int{
		StatusQueued:    0,
		StatusRunning:   0,
		StatusCompleted: 0,
		StatusFailed:    0,
	}
	for _, job := range m.jobs {
		counts[job.Status()]++
	}
	return counts
}

// Stop cancels unfinished jobs and waits for workers and the cleanup routine
func (m *Manager) Stop() {
	m.logger.Info("Stopping job manager...")

	m.cancel()
	m.wg.Wait()
	<-m.cleanup

	counts := m.Counts()
	m.logger.Info("Job manager stopped",
		slog.Int("completed_jobs", counts[StatusCompleted]),
		slog.Int("failed_jobs", counts[StatusFailed]),
	)
}

// startCleanupRoutine periodically drops finished jobs past their retention
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	m.logger.Debug("Job cleanup routine started",
		slog.Duration("retention", m.config.Retention),
		slog.Duration("check_interval", m.config.CleanupInterval),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Debug("Job cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupExpiredJobs(time.Now())
		}
	}
}

// cleanupExpiredJobs removes finished jobs older than the retention period
func (m *Manager) cleanupExpiredJobs(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		if job.expired(now, m.config.Retention) {
			delete(m.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("Cleaned up expired jobs",
			slog.Int("expired_count", removed),
			slog.Int("remaining", len(m.jobs)),
		)
	}

	return removed
}
