package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verifier/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Name() string            { return "counting" }
func (j *countingJob) Interval() time.Duration { return 10 * time.Millisecond }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

type mockLock struct {
	mu       sync.Mutex
	acquire  bool
	unlocked int
}

func (l *mockLock) TryLock(ctx context.Context) (bool, error) { return l.acquire, nil }
func (l *mockLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocked++
	return nil
}
func (l *mockLock) IsHeld() bool { return l.acquire }

func TestManager_RunsUntilStopped(t *testing.T) {
	manager := NewManager(context.Background())
	job := &countingJob{}
	manager.Register(job)
	manager.Register(nil)
	manager.Start()
	manager.Start()

	require.Eventually(t, func() bool { return job.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	manager.Stop()
	manager.Wait()

	stopped := job.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, job.runs.Load())
}

func TestWithLock(t *testing.T) {
	ctx := context.Background()

	held := &mockLock{acquire: false}
	job := &countingJob{}
	require.NoError(t, WithLock(job, held).Run(ctx))
	assert.Equal(t, int32(0), job.runs.Load(), "skipped while another replica holds the lock")

	free := &mockLock{acquire: true}
	require.NoError(t, WithLock(job, free).Run(ctx))
	assert.Equal(t, int32(1), job.runs.Load())
	assert.Equal(t, 1, free.unlocked)

	assert.Same(t, job, WithLock(job, nil))
}

func TestWithLock_KeepsAlignment(t *testing.T) {
	job := NewRetentionJob(time.Hour, time.Hour)
	aligned, ok := WithLock(job, &mockLock{acquire: true}).(AlignedJob)
	require.True(t, ok)
	assert.True(t, aligned.AlignToInterval())
}

type mockStatusCounter map[string]int64

func (m mockStatusCounter) CountByStatus(ctx context.Context) (map[string]int64, error) { return m, nil }

func TestQueueDepthJob(t *testing.T) {
	job := NewQueueDepthJob(time.Minute, mockStatusCounter{"QUEUED": 7, "RUNNING": 2})
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.QueueDepth.WithLabelValues("QUEUED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.QueueDepth.WithLabelValues("RUNNING")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.QueueDepth.WithLabelValues("TIMEOUT")))
}

func TestRetentionJob(t *testing.T) {
	now := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	var cutoffs []time.Time
	record := func(rows int64, err error) func(context.Context, time.Time) (int64, error) {
		return func(ctx context.Context, cutoff time.Time) (int64, error) {
			cutoffs = append(cutoffs, cutoff)
			return rows, err
		}
	}

	job := NewRetentionJob(24*time.Hour, 10*24*time.Hour,
		Cleanup{Name: "analysis tasks", Delete: record(3, nil)},
		Cleanup{Name: "task events", Delete: record(0, errors.New("lock wait timeout"))},
		Cleanup{Name: "heatmap buckets", Delete: record(1, nil)},
	).(*retentionJob)
	job.now = func() time.Time { return now }

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task events")
	require.Len(t, cutoffs, 3, "a failing cleanup does not stop the others")
	for _, c := range cutoffs {
		assert.Equal(t, now.AddDate(0, 0, -10), c)
	}
}
