package service

import (
	"context"
	"time"

	"verifier/internal/model"
	"verifier/pkg/callback"
	"verifier/pkg/config"
	"verifier/pkg/logger"
	"verifier/pkg/metrics"
	"verifier/pkg/store/mysql"
	mysqlModel "verifier/pkg/store/mysql/model"

	"github.com/google/uuid"
)

const defaultStaleTaskThreshold = 10 * time.Minute

var defaultPriorities = map[model.TaskType]int{
	model.TaskTypeCanaryTimeSeries:     0,
	model.TaskTypeDeploymentLog:        0,
	model.TaskTypeLoadTestTimeSeries:   1,
	model.TaskTypeLogClusterL1:         2,
	model.TaskTypeLogClusterL2:         2,
	model.TaskTypeContinuousTimeSeries: 3,
	model.TaskTypeContinuousLog:        3,
}

// TaskService analysis task queue
type TaskService struct {
	taskRepo      analysisTaskRepository
	taskEventRepo taskEventRepository
	urls          *callback.Builder
	staleAfter    time.Duration
	priorities    map[model.TaskType]int
	now           func() time.Time
}

// NewTaskService creates a new Task service
func NewTaskService(taskRepo analysisTaskRepository, taskEventRepo taskEventRepository, urls *callback.Builder, cfg config.AnalysisConfig) *TaskService {
	staleAfter := time.Duration(cfg.StaleTaskThreshold) * time.Second
	if staleAfter <= 0 {
		staleAfter = defaultStaleTaskThreshold
	}

	priorities := make(map[model.TaskType]int, len(defaultPriorities))
	for taskType, priority := range defaultPriorities {
		priorities[taskType] = priority
	}
	for name, priority := range cfg.Priorities {
		priorities[model.TaskType(name)] = priority
	}

	return &TaskService{
		taskRepo:      taskRepo,
		taskEventRepo: taskEventRepo,
		urls:          urls,
		staleAfter:    staleAfter,
		priorities:    priorities,
		now:           time.Now,
	}
}

// PriorityFor returns the configured priority of a task type
func (s *TaskService) PriorityFor(taskType model.TaskType) int {
	return s.priorities[taskType]
}

// BuildFailureCallbackURL returns the URL the engine calls when it cannot complete taskID
func (s *TaskService) BuildFailureCallbackURL(taskID string) string {
	return s.urls.FailureURL(taskID)
}

// Enqueue persists tasks as QUEUED and returns their ids
func (s *TaskService) Enqueue(ctx context.Context, tasks []*model.AnalysisTask) ([]string, error) {
	if len(tasks) == 0 {
		return nil, model.ErrNoTasks
	}

	now := s.now()
	rows := make([]*mysql.AnalysisTask, 0, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if !task.Type.Valid() {
			return nil, &model.AnalysisError{Op: "enqueue", SourceID: task.VerificationTaskID, Err: model.ErrUnknownVerificationMode}
		}
		if err := task.Payload.Validate(task.Type); err != nil {
			w := task.Window()
			return nil, &model.AnalysisError{Op: "enqueue", TaskID: task.ID, SourceID: task.VerificationTaskID, Window: &w, Err: err}
		}
		if task.ID == "" {
			task.ID = uuid.New().String()
		}
		if task.URLs.ReportFailure == "" {
			task.URLs.ReportFailure = s.BuildFailureCallbackURL(task.ID)
		}
		task.Status = model.TaskStatusQueued
		task.CreatedAt = now
		task.LastUpdatedAt = now

		rows = append(rows, mysql.FromAnalysisTaskDomain(task))
		ids = append(ids, task.ID)
	}

	if err := s.taskRepo.CreateBatch(ctx, rows); err != nil {
		return nil, &model.AnalysisError{Op: "enqueue", SourceID: tasks[0].VerificationTaskID, Err: model.StoreError(err)}
	}

	for _, task := range tasks {
		metrics.TasksEnqueued.WithLabelValues(string(task.Type)).Inc()
		s.recordTaskEvent(task, mysqlModel.EventTaskQueued, "", model.TaskStatusQueued, "")
	}
	logger.DebugCtx(ctx, "enqueued %d analysis tasks for verification task %s", len(tasks), tasks[0].VerificationTaskID)
	return ids, nil
}

// ClaimNext hands the highest-priority QUEUED task to the caller, or nil when none matches
func (s *TaskService) ClaimNext(ctx context.Context, taskTypes []model.TaskType) (*model.AnalysisTask, error) {
	var filter []string
	for _, taskType := range taskTypes {
		if !taskType.Valid() {
			return nil, &model.AnalysisError{Op: "claim", Err: model.ErrUnknownVerificationMode}
		}
		filter = append(filter, string(taskType))
	}

	row, err := s.taskRepo.ClaimNext(ctx, filter)
	if err != nil {
		return nil, &model.AnalysisError{Op: "claim", Err: model.StoreError(err)}
	}
	if row == nil {
		return nil, nil
	}

	task := mysql.ToAnalysisTaskDomain(row)
	metrics.TasksClaimed.WithLabelValues(string(task.Type)).Inc()
	s.recordTaskEvent(task, mysqlModel.EventTaskClaimed, model.TaskStatusQueued, model.TaskStatusRunning, "")
	logger.InfoCtx(ctx, "analysis task %s (%s) claimed, verification task %s window %s",
		task.ID, task.Type, task.VerificationTaskID, task.Window())
	return task, nil
}

// timeoutStale relabels RUNNING tasks not updated within the staleness threshold as
// TIMEOUT. Only status reads call it; nothing sweeps in the background.
func (s *TaskService) timeoutStale(ctx context.Context) (int64, error) {
	count, err := s.taskRepo.TimeoutStaleRunning(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, model.StoreError(err)
	}
	if count > 0 {
		metrics.TasksTerminated.WithLabelValues(string(model.TaskStatusTimeout)).Add(float64(count))
		logger.WarnCtx(ctx, "relabeled %d stale running analysis tasks as TIMEOUT", count)
	}
	return count, nil
}

// GetStatuses returns the status of every known id, timing out stale RUNNING tasks first
func (s *TaskService) GetStatuses(ctx context.Context, taskIDs []string) (map[string]model.TaskStatus, error) {
	if _, err := s.timeoutStale(ctx); err != nil {
		return nil, &model.AnalysisError{Op: "get statuses", Err: err}
	}
	if len(taskIDs) == 0 {
		return map[string]model.TaskStatus{}, nil
	}

	raw, err := s.taskRepo.GetStatuses(ctx, taskIDs)
	if err != nil {
		return nil, &model.AnalysisError{Op: "get statuses", Err: model.StoreError(err)}
	}
	statuses := make(map[string]model.TaskStatus, len(raw))
	for id, status := range raw {
		statuses[id] = model.TaskStatus(status)
	}
	return statuses, nil
}

// GetTask returns a task or ErrInvalidTask
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*model.AnalysisTask, error) {
	row, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, &model.AnalysisError{Op: "get task", TaskID: taskID, Err: model.StoreError(err)}
	}
	if row == nil {
		return nil, &model.AnalysisError{Op: "get task", TaskID: taskID, Err: model.ErrInvalidTask}
	}
	return mysql.ToAnalysisTaskDomain(row), nil
}

// GetTaskEvents returns the lifecycle events of a task, oldest first
func (s *TaskService) GetTaskEvents(ctx context.Context, taskID string) ([]*model.TaskEvent, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	events := make([]*model.TaskEvent, 0)
	if s.taskEventRepo == nil {
		return events, nil
	}
	rows, err := s.taskEventRepo.GetTaskEvents(ctx, taskID)
	if err != nil {
		return nil, &model.AnalysisError{Op: "get task events", TaskID: taskID, Err: model.StoreError(err)}
	}
	for _, row := range rows {
		events = append(events, mysql.ToTaskEventDomain(row))
	}
	return events, nil
}

// HasInFlight reports whether the source still has a QUEUED or RUNNING task of taskType.
// Stale RUNNING tasks are timed out before the check.
func (s *TaskService) HasInFlight(ctx context.Context, sourceID string, taskType model.TaskType) (bool, error) {
	if _, err := s.timeoutStale(ctx); err != nil {
		return false, err
	}
	inFlight, err := s.taskRepo.ExistsInFlight(ctx, sourceID, string(taskType))
	if err != nil {
		return false, model.StoreError(err)
	}
	return inFlight, nil
}

// MarkSuccess moves a task to SUCCESS
func (s *TaskService) MarkSuccess(ctx context.Context, taskID string) error {
	return s.markTerminal(ctx, taskID, model.TaskStatusSuccess, "")
}

// MarkFailure moves a task to FAILED
func (s *TaskService) MarkFailure(ctx context.Context, taskID, reason string) error {
	return s.markTerminal(ctx, taskID, model.TaskStatusFailed, reason)
}

// markTerminal is idempotent: a task that is already terminal is left alone. A task
// still QUEUED was never claimed and is refused.
func (s *TaskService) markTerminal(ctx context.Context, taskID string, status model.TaskStatus, reason string) error {
	op := "mark " + string(status)
	changed, err := s.taskRepo.MarkTerminal(ctx, taskID, string(status))
	if err != nil {
		return &model.AnalysisError{Op: op, TaskID: taskID, Err: model.StoreError(err)}
	}
	if changed {
		metrics.TasksTerminated.WithLabelValues(string(status)).Inc()
		task := &model.AnalysisTask{ID: taskID}
		if row, err := s.taskRepo.Get(ctx, taskID); err == nil && row != nil {
			task = mysql.ToAnalysisTaskDomain(row)
		}
		s.recordTaskEvent(task, terminalEvent(status), model.TaskStatusRunning, status, reason)
		logger.InfoCtx(ctx, "analysis task %s marked %s", taskID, status)
		return nil
	}

	row, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return &model.AnalysisError{Op: op, TaskID: taskID, Err: model.StoreError(err)}
	}
	if row == nil {
		return &model.AnalysisError{Op: op, TaskID: taskID, Err: model.ErrInvalidTask}
	}
	if row.Status == string(model.TaskStatusQueued) {
		return &model.AnalysisError{Op: op, TaskID: taskID, Err: model.ErrTaskNotRunning}
	}
	if row.Status != string(status) {
		logger.WarnCtx(ctx, "analysis task %s is already %s, ignoring %s", taskID, row.Status, status)
	}
	return nil
}

// completeTask moves a RUNNING task to SUCCESS as part of saving its verdict. Unlike
// MarkSuccess it refuses tasks that are QUEUED, FAILED or timed out; a task that is
// already SUCCESS is being reprocessed and reports changed=false.
func (s *TaskService) completeTask(ctx context.Context, taskID string) (bool, error) {
	changed, err := s.taskRepo.MarkTerminal(ctx, taskID, string(model.TaskStatusSuccess))
	if err != nil {
		return false, model.StoreError(err)
	}
	if changed {
		return true, nil
	}

	row, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return false, model.StoreError(err)
	}
	if row == nil {
		return false, model.ErrInvalidTask
	}
	if row.Status != string(model.TaskStatusSuccess) {
		return false, model.ErrTaskNotRunning
	}
	return false, nil
}

// taskCompleted records metrics and the lifecycle event once the SUCCESS transition committed
func (s *TaskService) taskCompleted(task *model.AnalysisTask) {
	metrics.TasksTerminated.WithLabelValues(string(model.TaskStatusSuccess)).Inc()
	s.recordTaskEvent(task, mysqlModel.EventTaskSucceeded, task.Status, model.TaskStatusSuccess, "")
}

func terminalEvent(status model.TaskStatus) mysqlModel.AnalysisTaskEventType {
	switch status {
	case model.TaskStatusSuccess:
		return mysqlModel.EventTaskSucceeded
	case model.TaskStatusTimeout:
		return mysqlModel.EventTaskTimeout
	default:
		return mysqlModel.EventTaskFailed
	}
}
