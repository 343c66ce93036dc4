package jobs

import (
	"context"
	"sync"
	"time"

	"verifier/pkg/logger"
	"verifier/pkg/metrics"
	redisstore "verifier/pkg/store/redis"
)

// Job represents a periodic background task.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// AlignedJob is a job that runs at aligned time boundaries (e.g., on the hour).
type AlignedJob interface {
	Job
	AlignToInterval() bool
}

// Manager orchestrates the lifecycle of background jobs.
type Manager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    []Job
	started bool

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewManager creates a job manager bound to the provided context.
func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make([]Job, 0),
	}
}

// Register adds a job to the manager.
func (m *Manager) Register(job Job) {
	if job == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

// Start launches all registered jobs.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	jobs := append([]Job(nil), m.jobs...)
	m.mu.Unlock()

	for _, job := range jobs {
		m.wg.Add(1)
		go m.runJob(job)
	}
	logger.InfoCtx(m.ctx, "started %d background jobs", len(jobs))
}

// Stop signals all jobs to stop.
func (m *Manager) Stop() {
	m.cancel()
}

// Wait blocks until all jobs exit.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) runJob(job Job) {
	defer m.wg.Done()

	interval := job.Interval()
	if interval <= 0 {
		interval = time.Minute
	}

	if aligned, ok := job.(AlignedJob); ok && aligned.AlignToInterval() {
		now := time.Now()
		next := now.Truncate(interval).Add(interval)
		logger.InfoCtx(m.ctx, "job %s will start at next aligned time: %v (in %v)", job.Name(), next.Format("15:04:05"), next.Sub(now))

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}
	}
	m.executeJob(job)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.executeJob(job)
		}
	}
}

func (m *Manager) executeJob(job Job) {
	if err := job.Run(m.ctx); err != nil {
		metrics.JobRuns.WithLabelValues(job.Name(), "error").Inc()
		logger.WarnCtx(m.ctx, "background job %s failed: %v", job.Name(), err)
		return
	}
	metrics.JobRuns.WithLabelValues(job.Name(), "ok").Inc()
}

// lockedJob runs the wrapped job only on the replica holding the lock
type lockedJob struct {
	Job
	lock redisstore.DistributedLock
}

// WithLock guards job with a distributed lock so that one replica runs each cycle.
// A nil lock returns job unchanged.
func WithLock(job Job, lock redisstore.DistributedLock) Job {
	if lock == nil {
		return job
	}
	return &lockedJob{Job: job, lock: lock}
}

func (j *lockedJob) Run(ctx context.Context) error {
	acquired, err := j.lock.TryLock(ctx)
	if err != nil || !acquired {
		logger.DebugCtx(ctx, "another instance is running %s, skipping this cycle", j.Name())
		metrics.JobRuns.WithLabelValues(j.Name(), "skipped").Inc()
		return nil
	}
	defer func() {
		if err := j.lock.Unlock(ctx); err != nil {
			logger.WarnCtx(ctx, "failed to release lock of job %s: %v", j.Name(), err)
		}
	}()
	return j.Job.Run(ctx)
}

// AlignToInterval forwards the alignment of the wrapped job
func (j *lockedJob) AlignToInterval() bool {
	aligned, ok := j.Job.(AlignedJob)
	return ok && aligned.AlignToInterval()
}
