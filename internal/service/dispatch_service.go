package service

import (
	"context"
	"errors"
	"time"

	"verifier/internal/model"
	"verifier/pkg/callback"
	"verifier/pkg/logger"
	"verifier/pkg/metrics"
	"verifier/pkg/store/mysql"
	redisstore "verifier/pkg/store/redis"

	"github.com/google/uuid"
)

// DispatchService turns a (monitored source, time range) pair into analysis tasks
type DispatchService struct {
	taskService      *TaskService
	verificationRepo verificationRepository
	logRepo          logAnalysisRepository
	counter          logRecordCounter
	locker           redisstore.SourceLocker
	urls             *callback.Builder
}

// NewDispatchService creates a new Dispatch service. counter may be nil, in which
// case every minute is assumed to hold raw log records.
func NewDispatchService(
	taskService *TaskService,
	verificationRepo verificationRepository,
	logRepo logAnalysisRepository,
	counter logRecordCounter,
	locker redisstore.SourceLocker,
	urls *callback.Builder,
) *DispatchService {
	return &DispatchService{
		taskService:      taskService,
		verificationRepo: verificationRepo,
		logRepo:          logRepo,
		counter:          counter,
		locker:           locker,
		urls:             urls,
	}
}

// Dispatch builds and enqueues the tasks of one window. The per-source lock is held
// across the in-flight check and the enqueue.
func (s *DispatchService) Dispatch(ctx context.Context, req *model.WindowRequest) (*model.DispatchResponse, error) {
	w := model.Window{Start: req.StartTime.UTC(), End: req.EndTime.UTC()}
	fail := func(err error) error {
		return &model.AnalysisError{Op: "dispatch " + string(req.Mode), SourceID: req.VerificationTaskID, Window: &w, Err: err}
	}

	if !w.End.After(w.Start) {
		return nil, fail(model.ErrInvalidWindow)
	}
	taskType, ok := taskTypeForMode(req.Mode)
	if !ok {
		return nil, fail(model.ErrUnknownVerificationMode)
	}

	row, err := s.verificationRepo.GetTask(ctx, req.VerificationTaskID)
	if err != nil {
		return nil, fail(model.StoreError(err))
	}
	if row == nil {
		return nil, fail(model.ErrUnknownSource)
	}
	source := mysql.ToVerificationTaskDomain(row)

	unlock, err := s.locker.Lock(ctx, source.ID)
	if err != nil {
		return nil, fail(err)
	}
	defer unlock()

	if taskType.CarriesSourceState() {
		inFlight, err := s.taskService.HasInFlight(ctx, source.ID, taskType)
		if err != nil {
			return nil, fail(err)
		}
		if inFlight {
			metrics.DispatchRejected.WithLabelValues("in_flight").Inc()
			logger.WarnCtx(ctx, "window %s of verification task %s refused: previous %s window still in flight",
				w, source.ID, taskType)
			return nil, fail(model.ErrWindowInFlight)
		}
	}

	var tasks []*model.AnalysisTask
	switch req.Mode {
	case model.ModeServiceGuardTimeSeries:
		tasks = []*model.AnalysisTask{s.serviceGuardTimeSeriesTask(source, w)}
	case model.ModeServiceGuardLog:
		tasks = []*model.AnalysisTask{s.serviceGuardLogTask(source, w)}
	case model.ModeCanaryTimeSeries, model.ModeBlueGreenTimeSeries:
		task, err := s.deploymentTimeSeriesTask(ctx, source, req.Mode, w)
		if err != nil {
			return nil, fail(err)
		}
		tasks = []*model.AnalysisTask{task}
	case model.ModeLoadTestTimeSeries:
		task, err := s.loadTestTask(ctx, source, w)
		if err != nil {
			return nil, fail(err)
		}
		tasks = []*model.AnalysisTask{task}
	case model.ModeDeploymentLog:
		task, err := s.deploymentLogTask(ctx, source, w)
		if err != nil {
			return nil, fail(err)
		}
		tasks = []*model.AnalysisTask{task}
	case model.ModeLogClusterL1:
		if tasks, err = s.l1Tasks(ctx, source, w); err != nil {
			return nil, fail(err)
		}
	case model.ModeLogClusterL2:
		if tasks, err = s.l2Tasks(ctx, source, w); err != nil {
			return nil, fail(err)
		}
	}

	if len(tasks) == 0 {
		metrics.DispatchRejected.WithLabelValues("no_input").Inc()
		logger.InfoCtx(ctx, "no %s tasks for verification task %s window %s", taskType, source.ID, w)
		return &model.DispatchResponse{TaskIDs: []string{}}, nil
	}

	ids, err := s.taskService.Enqueue(ctx, tasks)
	if err != nil {
		var analysisErr *model.AnalysisError
		if errors.As(err, &analysisErr) {
			return nil, err
		}
		return nil, fail(err)
	}
	logger.InfoCtx(ctx, "dispatched %d %s tasks for verification task %s window %s", len(ids), taskType, source.ID, w)
	return &model.DispatchResponse{TaskIDs: ids}, nil
}

func taskTypeForMode(mode model.DispatchMode) (model.TaskType, bool) {
	switch mode {
	case model.ModeServiceGuardTimeSeries:
		return model.TaskTypeContinuousTimeSeries, true
	case model.ModeServiceGuardLog:
		return model.TaskTypeContinuousLog, true
	case model.ModeCanaryTimeSeries, model.ModeBlueGreenTimeSeries:
		return model.TaskTypeCanaryTimeSeries, true
	case model.ModeLoadTestTimeSeries:
		return model.TaskTypeLoadTestTimeSeries, true
	case model.ModeLogClusterL1:
		return model.TaskTypeLogClusterL1, true
	case model.ModeLogClusterL2:
		return model.TaskTypeLogClusterL2, true
	case model.ModeDeploymentLog:
		return model.TaskTypeDeploymentLog, true
	}
	return "", false
}

// newTask pre-assigns the id so the save and failure URLs can carry it
func (s *DispatchService) newTask(source *model.VerificationTask, taskType model.TaskType, w model.Window, f callback.TimeFormat) *model.AnalysisTask {
	id := uuid.New().String()
	return &model.AnalysisTask{
		ID:                 id,
		AccountID:          source.AccountID,
		VerificationTaskID: source.ID,
		Type:               taskType,
		Priority:           s.taskService.PriorityFor(taskType),
		WindowStart:        w.Start,
		WindowEnd:          w.End,
		URLs: model.CallbackURLs{
			SaveResult:    s.urls.SaveResultURL(id, source.ID, w, f),
			ReportFailure: s.taskService.BuildFailureCallbackURL(id),
		},
	}
}

func (s *DispatchService) serviceGuardTimeSeriesTask(source *model.VerificationTask, w model.Window) *model.AnalysisTask {
	task := s.newTask(source, model.TaskTypeContinuousTimeSeries, w, callback.EpochMillis)
	payload := &model.ServiceGuardTimeSeriesPayload{
		DataLength:           w.Minutes(),
		TestDataURL:          s.urls.TimeSeriesDataURL(source.ID, w),
		CumulativeSumsURL:    s.urls.StateURL(model.StateCumulativeSums, source.ID),
		AnomalousPatternsURL: s.urls.StateURL(model.StateAnomalousPatterns, source.ID),
		ShortTermHistoryURL:  s.urls.StateURL(model.StateShortTermHistory, source.ID),
		MetricTemplateURL:    s.urls.MetricTemplateURL(source.ID),
	}
	task.URLs.InputData = payload.TestDataURL
	task.URLs.PreviousState = payload.CumulativeSumsURL
	task.Payload.ServiceGuardTimeSeries = payload
	return task
}

func (s *DispatchService) serviceGuardLogTask(source *model.VerificationTask, w model.Window) *model.AnalysisTask {
	task := s.newTask(source, model.TaskTypeContinuousLog, w, callback.EpochMillis)
	baseline, ok := source.BaselineWindow()
	payload := &model.ServiceGuardLogPayload{
		BaselineWindow:      ok && baseline.Contains(w),
		TestDataURL:         s.urls.LogDataURL(source.ID, w),
		PreviousClustersURL: s.urls.PreviousClustersURL(source.ID),
	}
	task.URLs.InputData = payload.TestDataURL
	task.URLs.PreviousState = payload.PreviousClustersURL
	task.Payload.ServiceGuardLog = payload
	return task
}

func (s *DispatchService) jobInstance(ctx context.Context, instanceID string) (*model.VerificationJobInstance, error) {
	if instanceID == "" {
		return nil, model.ErrUnknownJobInstance
	}
	row, err := s.verificationRepo.GetJobInstance(ctx, instanceID)
	if err != nil {
		return nil, model.StoreError(err)
	}
	if row == nil {
		return nil, model.ErrUnknownJobInstance
	}
	return mysql.ToJobInstanceDomain(row), nil
}

func (s *DispatchService) deploymentTimeSeriesTask(ctx context.Context, source *model.VerificationTask, mode model.DispatchMode, w model.Window) (*model.AnalysisTask, error) {
	job, err := s.jobInstance(ctx, source.JobInstanceID)
	if err != nil {
		return nil, err
	}
	pre, ok := job.PreDeploymentWindow()
	if !ok {
		return nil, model.ErrMissingPreDeploymentWindow
	}

	verificationType := model.VerificationCanary
	if mode == model.ModeBlueGreenTimeSeries {
		verificationType = model.VerificationBlueGreen
	}

	task := s.newTask(source, model.TaskTypeCanaryTimeSeries, w, callback.ISO8601)
	payload := &model.DeploymentTimeSeriesPayload{
		VerificationType:       verificationType,
		DataLength:             w.Minutes(),
		PreDeploymentDataURL:   s.urls.DeploymentTimeSeriesURL(source.ID, pre, job.OldHosts),
		PostDeploymentDataURL:  s.urls.DeploymentTimeSeriesURL(source.ID, w, nil),
		MetricTemplateURL:      s.urls.MetricTemplateURL(source.ID),
		DeploymentStartTime:    job.DeploymentStartTime,
		NewHosts:               job.NewHosts,
		OldHosts:               job.OldHosts,
		TrafficSplitPercentage: job.TrafficSplitPercentage,
	}
	task.URLs.InputData = payload.PostDeploymentDataURL
	task.URLs.PreviousState = payload.PreDeploymentDataURL
	task.Payload.DeploymentTimeSeries = payload
	return task, nil
}

// runStart is when a load-test run began
func runStart(job *model.VerificationJobInstance) time.Time {
	if job.RunStartTime != nil {
		return *job.RunStartTime
	}
	return job.DeploymentStartTime
}

func (s *DispatchService) loadTestTask(ctx context.Context, source *model.VerificationTask, w model.Window) (*model.AnalysisTask, error) {
	job, err := s.jobInstance(ctx, source.JobInstanceID)
	if err != nil {
		return nil, err
	}

	started := runStart(job)
	dataLength := 0
	if w.End.After(started) {
		dataLength = int(w.End.Sub(started) / time.Minute)
	}

	task := s.newTask(source, model.TaskTypeLoadTestTimeSeries, w, callback.ISO8601)
	payload := &model.LoadTestPayload{
		DataLength:        dataLength,
		TestDataURL:       s.urls.LoadTestDataURL(job.ID, source.ID, w),
		MetricTemplateURL: s.urls.MetricTemplateURL(source.ID),
	}

	if job.BaselineRunInstanceID != "" {
		baseline, err := s.jobInstance(ctx, job.BaselineRunInstanceID)
		if errors.Is(err, model.ErrUnknownJobInstance) {
			return nil, model.ErrMissingBaselineRun
		}
		if err != nil {
			return nil, err
		}
		// same offset into the baseline run
		shift := runStart(baseline).Sub(started)
		baselineWindow := model.Window{Start: w.Start.Add(shift), End: w.End.Add(shift)}
		payload.BaselineDataURL = s.urls.LoadTestDataURL(baseline.ID, source.ID, baselineWindow)
		task.URLs.PreviousState = payload.BaselineDataURL
	}

	task.URLs.InputData = payload.TestDataURL
	task.Payload.LoadTest = payload
	return task, nil
}

func (s *DispatchService) deploymentLogTask(ctx context.Context, source *model.VerificationTask, w model.Window) (*model.AnalysisTask, error) {
	job, err := s.jobInstance(ctx, source.JobInstanceID)
	if err != nil {
		return nil, err
	}

	control := w
	if pre, ok := job.PreDeploymentWindow(); ok {
		control = pre
	}

	task := s.newTask(source, model.TaskTypeDeploymentLog, w, callback.ISO8601)
	payload := &model.DeploymentLogPayload{
		VerificationType: job.VerificationType,
		ControlDataURL:   s.urls.DeploymentLogURL(source.ID, control, job.OldHosts),
		TestDataURL:      s.urls.DeploymentLogURL(source.ID, w, job.NewHosts),
		NewHosts:         job.NewHosts,
		OldHosts:         job.OldHosts,
	}
	task.URLs.InputData = payload.TestDataURL
	task.URLs.PreviousState = payload.ControlDataURL
	task.Payload.DeploymentLog = payload
	return task, nil
}

// l1Tasks issues one task per minute that holds raw log records
func (s *DispatchService) l1Tasks(ctx context.Context, source *model.VerificationTask, w model.Window) ([]*model.AnalysisTask, error) {
	var counts map[time.Time]int64
	if s.counter != nil {
		var err error
		if counts, err = s.counter.CountPerMinute(ctx, source.ID, w); err != nil {
			return nil, err
		}
	}

	var tasks []*model.AnalysisTask
	for start := w.Start; start.Before(w.End); start = start.Add(time.Minute) {
		end := start.Add(time.Minute)
		if end.After(w.End) {
			end = w.End
		}
		if counts != nil && counts[start.Truncate(time.Minute)] == 0 {
			logger.DebugCtx(ctx, "skipping L1 minute %s of verification task %s: no raw logs", start.Format(time.RFC3339), source.ID)
			continue
		}

		minute := model.Window{Start: start, End: end}
		task := s.newTask(source, model.TaskTypeLogClusterL1, minute, callback.EpochMillis)
		task.Payload.LogCluster = &model.LogClusterPayload{
			Level:       model.ClusterLevelL1,
			TestDataURL: s.urls.LogDataURL(source.ID, minute),
		}
		task.URLs.InputData = task.Payload.LogCluster.TestDataURL
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// l2Tasks issues a single task over the last minute when the window holds L1 output
func (s *DispatchService) l2Tasks(ctx context.Context, source *model.VerificationTask, w model.Window) ([]*model.AnalysisTask, error) {
	count, err := s.logRepo.CountClusteredRecords(ctx, source.ID, string(model.ClusterLevelL1), w.Start, w.End)
	if err != nil {
		return nil, model.StoreError(err)
	}
	if count == 0 {
		return nil, nil
	}

	last := model.Window{Start: w.End.Add(-time.Minute), End: w.End}
	if last.Start.Before(w.Start) {
		last.Start = w.Start
	}
	task := s.newTask(source, model.TaskTypeLogClusterL2, last, callback.EpochMillis)
	task.Payload.LogCluster = &model.LogClusterPayload{
		Level:       model.ClusterLevelL2,
		TestDataURL: s.urls.ClusteredLogsURL(source.ID, model.ClusterLevelL1, w),
	}
	task.URLs.InputData = task.Payload.LogCluster.TestDataURL
	return []*model.AnalysisTask{task}, nil
}
