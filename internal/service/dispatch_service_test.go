package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"verifier/internal/model"
	"verifier/pkg/store/mysql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowRequest(sourceID string, mode model.DispatchMode, start, end time.Time) *model.WindowRequest {
	return &model.WindowRequest{VerificationTaskID: sourceID, Mode: mode, StartTime: start, EndTime: end}
}

func dispatchedTasks(t *testing.T, env *testEnv, resp *model.DispatchResponse) []*model.AnalysisTask {
	t.Helper()
	var tasks []*model.AnalysisTask
	for _, id := range resp.TaskIDs {
		task, err := env.tasks.GetTask(context.Background(), id)
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	return tasks
}

func TestDispatch_ServiceGuardTimeSeries(t *testing.T) {
	env := newTestEnv()
	env.addSource(testSource("S"))
	start := testNow.Add(-5 * time.Minute)

	resp, err := env.dispatch.Dispatch(context.Background(), windowRequest("S", model.ModeServiceGuardTimeSeries, start, testNow))
	require.NoError(t, err)
	require.Len(t, resp.TaskIDs, 1)

	task := dispatchedTasks(t, env, resp)[0]
	assert.Equal(t, model.TaskTypeContinuousTimeSeries, task.Type)
	assert.Equal(t, model.TaskStatusQueued, task.Status)
	assert.Equal(t, 3, task.Priority)
	require.NotNil(t, task.Payload.ServiceGuardTimeSeries)
	payload := task.Payload.ServiceGuardTimeSeries
	assert.Equal(t, 5, payload.DataLength)
	assert.Contains(t, payload.CumulativeSumsURL, "/api/v1/analysis/state/cumulative-sums?verificationTaskId=S")
	assert.Contains(t, payload.AnomalousPatternsURL, "/state/anomalous-patterns")
	assert.Contains(t, payload.ShortTermHistoryURL, "/state/short-term-history")
	assert.Contains(t, payload.MetricTemplateURL, "/time-series/metric-template")
	assert.Equal(t, payload.TestDataURL, task.URLs.InputData)

	saveURL, err := url.Parse(task.URLs.SaveResult)
	require.NoError(t, err)
	assert.Equal(t, task.ID, saveURL.Query().Get("taskId"))
	assert.Equal(t, "S", saveURL.Query().Get("verificationTaskId"))
	assert.Equal(t, env.tasks.BuildFailureCallbackURL(task.ID), task.URLs.ReportFailure)
}

func TestDispatch_ServiceGuardLogBaselineFlag(t *testing.T) {
	env := newTestEnv()
	source := testSource("S")
	source.BaselineStart = ptrTime(testNow.Add(-time.Hour))
	source.BaselineEnd = ptrTime(testNow.Add(-30 * time.Minute))
	env.addSource(source)
	ctx := context.Background()

	resp, err := env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeServiceGuardLog, testNow.Add(-50*time.Minute), testNow.Add(-45*time.Minute)))
	require.NoError(t, err)
	task := dispatchedTasks(t, env, resp)[0]
	require.NotNil(t, task.Payload.ServiceGuardLog)
	assert.True(t, task.Payload.ServiceGuardLog.BaselineWindow)
	assert.Contains(t, task.URLs.PreviousState, "/api/v1/analysis/log-clusters")

	env.taskRepo.setStatus(task.ID, model.TaskStatusSuccess, testNow)
	resp, err = env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeServiceGuardLog, testNow.Add(-5*time.Minute), testNow))
	require.NoError(t, err)
	assert.False(t, dispatchedTasks(t, env, resp)[0].Payload.ServiceGuardLog.BaselineWindow)
}

func TestDispatch_RefusesWhileWindowInFlight(t *testing.T) {
	env := newTestEnv()
	env.addSource(testSource("S"))
	ctx := context.Background()

	first, err := env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeServiceGuardTimeSeries, testNow.Add(-10*time.Minute), testNow.Add(-5*time.Minute)))
	require.NoError(t, err)

	_, err = env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeServiceGuardTimeSeries, testNow.Add(-5*time.Minute), testNow))
	assert.ErrorIs(t, err, model.ErrWindowInFlight)

	// a stale RUNNING predecessor times out and unblocks the source
	env.taskRepo.setStatus(first.TaskIDs[0], model.TaskStatusRunning, testNow.Add(-11*time.Minute))
	_, err = env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeServiceGuardTimeSeries, testNow.Add(-5*time.Minute), testNow))
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusTimeout, env.taskRepo.status(first.TaskIDs[0]))
}

func TestDispatch_OtherSourcesNotBlocked(t *testing.T) {
	env := newTestEnv()
	env.addSource(testSource("S1"))
	env.addSource(testSource("S2"))
	ctx := context.Background()

	_, err := env.dispatch.Dispatch(ctx, windowRequest("S1", model.ModeServiceGuardTimeSeries, testNow.Add(-5*time.Minute), testNow))
	require.NoError(t, err)
	_, err = env.dispatch.Dispatch(ctx, windowRequest("S2", model.ModeServiceGuardTimeSeries, testNow.Add(-5*time.Minute), testNow))
	assert.NoError(t, err)
}

func TestDispatch_RequestErrors(t *testing.T) {
	env := newTestEnv()
	env.addSource(testSource("S"))
	ctx := context.Background()

	_, err := env.dispatch.Dispatch(ctx, windowRequest("S", "NOPE", testNow.Add(-time.Minute), testNow))
	assert.ErrorIs(t, err, model.ErrUnknownVerificationMode)

	_, err = env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeServiceGuardLog, testNow, testNow))
	assert.ErrorIs(t, err, model.ErrInvalidWindow)

	_, err = env.dispatch.Dispatch(ctx, windowRequest("missing", model.ModeServiceGuardLog, testNow.Add(-time.Minute), testNow))
	assert.ErrorIs(t, err, model.ErrUnknownSource)
}

func canarySetup(env *testEnv, withPre bool) {
	source := testSource("S")
	source.JobInstanceID = "job-1"
	env.addSource(source)

	job := &model.VerificationJobInstance{
		ID:                     "job-1",
		AccountID:              "acct",
		VerificationType:       model.VerificationCanary,
		DeploymentStartTime:    testNow.Add(-10 * time.Minute),
		TrafficSplitPercentage: ptrInt(20),
		NewHosts:               []string{"pod-new-1"},
		OldHosts:               []string{"pod-old-1", "pod-old-2"},
	}
	if withPre {
		job.PreDeploymentStart = ptrTime(testNow.Add(-25 * time.Minute))
		job.PreDeploymentEnd = ptrTime(testNow.Add(-10 * time.Minute))
	}
	env.addJob(job)
}

func TestDispatch_CanaryMissingPreDeploymentWindow(t *testing.T) {
	env := newTestEnv()
	canarySetup(env, false)

	_, err := env.dispatch.Dispatch(context.Background(), windowRequest("S", model.ModeCanaryTimeSeries, testNow.Add(-time.Minute), testNow))
	assert.ErrorIs(t, err, model.ErrMissingPreDeploymentWindow)
	assert.Empty(t, env.taskRepo.tasks, "no malformed task is emitted")
}

func TestDispatch_CanaryTimeSeries(t *testing.T) {
	env := newTestEnv()
	canarySetup(env, true)

	resp, err := env.dispatch.Dispatch(context.Background(), windowRequest("S", model.ModeBlueGreenTimeSeries, testNow.Add(-time.Minute), testNow))
	require.NoError(t, err)

	task := dispatchedTasks(t, env, resp)[0]
	assert.Equal(t, model.TaskTypeCanaryTimeSeries, task.Type)
	assert.Equal(t, 0, task.Priority)
	payload := task.Payload.DeploymentTimeSeries
	require.NotNil(t, payload)
	assert.Equal(t, model.VerificationBlueGreen, payload.VerificationType)
	assert.Equal(t, []string{"pod-new-1"}, payload.NewHosts)
	assert.Equal(t, []string{"pod-old-1", "pod-old-2"}, payload.OldHosts)
	require.NotNil(t, payload.TrafficSplitPercentage)
	assert.Equal(t, 20, *payload.TrafficSplitPercentage)
	assert.True(t, payload.DeploymentStartTime.Equal(testNow.Add(-10*time.Minute)))

	pre, err := url.Parse(payload.PreDeploymentDataURL)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-25*time.Minute).Format(time.RFC3339), pre.Query().Get("startTime"))
	assert.Equal(t, []string{"pod-old-1", "pod-old-2"}, pre.Query()["hosts"])
	assert.NotEqual(t, payload.PreDeploymentDataURL, payload.PostDeploymentDataURL)
}

func TestDispatch_LoadTest(t *testing.T) {
	env := newTestEnv()
	source := testSource("S")
	source.JobInstanceID = "run-2"
	env.addSource(source)
	env.addJob(&model.VerificationJobInstance{
		ID:                    "run-2",
		VerificationType:      model.VerificationLoadTest,
		RunStartTime:          ptrTime(testNow.Add(-12 * time.Minute)),
		BaselineRunInstanceID: "run-1",
	})
	ctx := context.Background()

	_, err := env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeLoadTestTimeSeries, testNow.Add(-time.Minute), testNow))
	assert.ErrorIs(t, err, model.ErrMissingBaselineRun)

	env.addJob(&model.VerificationJobInstance{
		ID:               "run-1",
		VerificationType: model.VerificationLoadTest,
		RunStartTime:     ptrTime(testNow.Add(-24 * time.Hour)),
	})
	resp, err := env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeLoadTestTimeSeries, testNow.Add(-time.Minute), testNow))
	require.NoError(t, err)

	payload := dispatchedTasks(t, env, resp)[0].Payload.LoadTest
	require.NotNil(t, payload)
	assert.Equal(t, 12, payload.DataLength)
	assert.Contains(t, payload.TestDataURL, "verificationJobInstanceId=run-2")

	baseline, err := url.Parse(payload.BaselineDataURL)
	require.NoError(t, err)
	assert.Equal(t, "run-1", baseline.Query().Get("verificationJobInstanceId"))
	assert.Equal(t, testNow.Add(-24*time.Hour).Add(11*time.Minute).Format(time.RFC3339), baseline.Query().Get("startTime"))
}

func TestDispatch_LoadTestWithoutBaseline(t *testing.T) {
	env := newTestEnv()
	source := testSource("S")
	source.JobInstanceID = "run-1"
	env.addSource(source)
	env.addJob(&model.VerificationJobInstance{ID: "run-1", DeploymentStartTime: testNow.Add(-3 * time.Minute)})

	resp, err := env.dispatch.Dispatch(context.Background(), windowRequest("S", model.ModeLoadTestTimeSeries, testNow.Add(-time.Minute), testNow))
	require.NoError(t, err)
	payload := dispatchedTasks(t, env, resp)[0].Payload.LoadTest
	assert.Equal(t, 3, payload.DataLength)
	assert.Empty(t, payload.BaselineDataURL)
}

func TestDispatch_DeploymentLog(t *testing.T) {
	env := newTestEnv()
	canarySetup(env, true)

	resp, err := env.dispatch.Dispatch(context.Background(), windowRequest("S", model.ModeDeploymentLog, testNow.Add(-time.Minute), testNow))
	require.NoError(t, err)

	payload := dispatchedTasks(t, env, resp)[0].Payload.DeploymentLog
	require.NotNil(t, payload)
	control, err := url.Parse(payload.ControlDataURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"pod-old-1", "pod-old-2"}, control.Query()["hosts"])
	test, err := url.Parse(payload.TestDataURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"pod-new-1"}, test.Query()["hosts"])
}

func TestDispatch_L1SkipsMinutesWithoutLogs(t *testing.T) {
	env := newTestEnv()
	env.addSource(testSource("S"))
	start := testNow.Add(-5 * time.Minute)
	env.dispatch.counter = &mockCounter{counts: map[time.Time]int64{
		start:                      10,
		start.Add(2 * time.Minute): 3,
		start.Add(4 * time.Minute): 1,
	}}

	resp, err := env.dispatch.Dispatch(context.Background(), windowRequest("S", model.ModeLogClusterL1, start, testNow))
	require.NoError(t, err)

	tasks := dispatchedTasks(t, env, resp)
	require.Len(t, tasks, 3)
	var starts []time.Time
	for _, task := range tasks {
		assert.Equal(t, model.TaskTypeLogClusterL1, task.Type)
		assert.Equal(t, time.Minute, task.WindowEnd.Sub(task.WindowStart))
		starts = append(starts, task.WindowStart)
	}
	assert.ElementsMatch(t, []time.Time{start, start.Add(2 * time.Minute), start.Add(4 * time.Minute)}, starts)
}

func TestDispatch_L1WithoutCounterCoversEveryMinute(t *testing.T) {
	env := newTestEnv()
	env.addSource(testSource("S"))

	resp, err := env.dispatch.Dispatch(context.Background(), windowRequest("S", model.ModeLogClusterL1, testNow.Add(-5*time.Minute), testNow))
	require.NoError(t, err)
	assert.Len(t, resp.TaskIDs, 5)
}

func TestDispatch_L2GatedOnL1Output(t *testing.T) {
	env := newTestEnv()
	env.addSource(testSource("S"))
	ctx := context.Background()
	start := testNow.Add(-5 * time.Minute)

	resp, err := env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeLogClusterL2, start, testNow))
	require.NoError(t, err)
	assert.Empty(t, resp.TaskIDs)

	env.logRepo.records = append(env.logRepo.records, &mysql.ClusteredLogRecord{
		VerificationTaskID: "S", Level: string(model.ClusterLevelL1), Timestamp: start.Add(time.Minute),
	})
	resp, err = env.dispatch.Dispatch(ctx, windowRequest("S", model.ModeLogClusterL2, start, testNow))
	require.NoError(t, err)
	require.Len(t, resp.TaskIDs, 1)

	task := dispatchedTasks(t, env, resp)[0]
	assert.Equal(t, model.TaskTypeLogClusterL2, task.Type)
	assert.True(t, task.WindowStart.Equal(testNow.Add(-time.Minute)))
	assert.True(t, task.WindowEnd.Equal(testNow))
	assert.Contains(t, task.Payload.LogCluster.TestDataURL, "level=L1")
}
