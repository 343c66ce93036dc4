package service

import (
	"context"
	"time"

	"verifier/internal/model"
	"verifier/pkg/logger"
	"verifier/pkg/store/mysql"
	mysqlModel "verifier/pkg/store/mysql/model"
)

// recordTaskEvent writes a lifecycle event to analysis_task_events.
// Runs async so the queue path never waits on the event table.
func (s *TaskService) recordTaskEvent(
	task *model.AnalysisTask,
	eventType mysqlModel.AnalysisTaskEventType,
	fromStatus model.TaskStatus,
	toStatus model.TaskStatus,
	message string,
) {
	if s.taskEventRepo == nil {
		return
	}

	event := &mysql.AnalysisTaskEvent{
		TaskID:             task.ID,
		VerificationTaskID: task.VerificationTaskID,
		EventType:          string(eventType),
		FromStatus:         string(fromStatus),
		ToStatus:           string(toStatus),
		Message:            message,
		EventTime:          time.Now(),
	}

	go func() {
		if err := s.taskEventRepo.RecordEvent(context.Background(), event); err != nil {
			logger.ErrorCtx(context.Background(), "failed to record analysis task event: %v", err)
		}
	}()
}
