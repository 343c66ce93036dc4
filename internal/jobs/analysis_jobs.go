package jobs

import (
	"context"
	"fmt"
	"time"

	"verifier/internal/model"
	"verifier/pkg/logger"
	"verifier/pkg/metrics"
)

// statusCounter counts tasks per status
type statusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// queueDepthJob publishes the task count per status
type queueDepthJob struct {
	interval time.Duration
	counter  statusCounter
}

// NewQueueDepthJob creates the queue depth gauge refresher
func NewQueueDepthJob(interval time.Duration, counter statusCounter) Job {
	return &queueDepthJob{interval: interval, counter: counter}
}

func (j *queueDepthJob) Name() string { return "queue-depth" }

func (j *queueDepthJob) Interval() time.Duration { return j.interval }

func (j *queueDepthJob) Run(ctx context.Context) error {
	counts, err := j.counter.CountByStatus(ctx)
	if err != nil {
		return err
	}
	for _, status := range []model.TaskStatus{
		model.TaskStatusQueued,
		model.TaskStatusRunning,
		model.TaskStatusSuccess,
		model.TaskStatusFailed,
		model.TaskStatusTimeout,
	} {
		metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(counts[string(status)]))
	}
	return nil
}

// Cleanup deletes rows of one table older than cutoff
type Cleanup struct {
	Name   string
	Delete func(ctx context.Context, cutoff time.Time) (int64, error)
}

// retentionJob deletes terminal tasks, task events, clustered records and heat-map
// buckets past the retention period
type retentionJob struct {
	interval  time.Duration
	retention time.Duration
	cleanups  []Cleanup
	now       func() time.Time
}

// NewRetentionJob creates the data retention job
func NewRetentionJob(interval, retention time.Duration, cleanups ...Cleanup) Job {
	return &retentionJob{
		interval:  interval,
		retention: retention,
		cleanups:  cleanups,
		now:       time.Now,
	}
}

func (j *retentionJob) Name() string { return "data-retention-cleanup" }

func (j *retentionJob) Interval() time.Duration { return j.interval }

func (j *retentionJob) AlignToInterval() bool { return true }

// Run attempts every cleanup and reports the first failure
func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)

	var firstErr error
	for _, c := range j.cleanups {
		rows, err := c.Delete(ctx, cutoff)
		if err != nil {
			logger.WarnCtx(ctx, "failed to clean up %s: %v", c.Name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("cleanup %s: %w", c.Name, err)
			}
			continue
		}
		if rows > 0 {
			logger.InfoCtx(ctx, "cleaned up %d %s older than %s", rows, c.Name, cutoff.Format(time.RFC3339))
		}
	}
	return firstErr
}
