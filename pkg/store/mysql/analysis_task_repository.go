package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	statusQueued  = "QUEUED"
	statusRunning = "RUNNING"
	statusTimeout = "TIMEOUT"
)

// AnalysisTaskRepository handles analysis task persistence in MySQL
type AnalysisTaskRepository struct {
	ds *Datastore
}

// NewAnalysisTaskRepository creates a new analysis task repository
func NewAnalysisTaskRepository(ds *Datastore) *AnalysisTaskRepository {
	return &AnalysisTaskRepository{ds: ds}
}

// CreateBatch inserts tasks in a single statement
func (r *AnalysisTaskRepository) CreateBatch(ctx context.Context, tasks []*AnalysisTask) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := r.ds.DB(ctx).Create(&tasks).Error; err != nil {
		return fmt.Errorf("failed to create analysis tasks: %w", err)
	}
	return nil
}

// Get retrieves a task by task_id
func (r *AnalysisTaskRepository) Get(ctx context.Context, taskID string) (*AnalysisTask, error) {
	var task AnalysisTask
	err := r.ds.DB(ctx).Where("task_id = ?", taskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis task: %w", err)
	}
	return &task, nil
}

// ClaimNext atomically moves the oldest highest-priority QUEUED task to RUNNING.
// Rows locked by a concurrent claimer are skipped; returns nil when nothing matches.
func (r *AnalysisTaskRepository) ClaimNext(ctx context.Context, taskTypes []string) (*AnalysisTask, error) {
	var claimed *AnalysisTask

	err := r.ds.ExecTx(ctx, func(txCtx context.Context) error {
		query := r.ds.DB(txCtx).Where("status = ?", statusQueued)
		if len(taskTypes) > 0 {
			query = query.Where("task_type IN ?", taskTypes)
		}

		var candidates []*AnalysisTask
		err := query.
			Order("priority ASC, created_at ASC, id ASC").
			Limit(1).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&candidates).Error
		if err != nil {
			return fmt.Errorf("failed to select queued task: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}

		task := candidates[0]
		now := r.ds.Now()
		result := r.ds.DB(txCtx).Model(&AnalysisTask{}).
			Where("task_id = ? AND status = ?", task.TaskID, statusQueued).
			Updates(map[string]interface{}{
				"status":          statusRunning,
				"last_updated_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to claim task %s: %w", task.TaskID, result.Error)
		}
		if result.RowsAffected == 0 {
			// lost the row between lock and update; treat as empty
			return nil
		}

		task.Status = statusRunning
		task.LastUpdatedAt = now
		claimed = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// TimeoutStaleRunning relabels every RUNNING task not updated since cutoff as TIMEOUT
func (r *AnalysisTaskRepository) TimeoutStaleRunning(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.ds.DB(ctx).Model(&AnalysisTask{}).
		Where("status = ? AND last_updated_at < ?", statusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":          statusTimeout,
			"last_updated_at": r.ds.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to time out stale tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetStatuses returns task_id -> status for the ids that exist
func (r *AnalysisTaskRepository) GetStatuses(ctx context.Context, taskIDs []string) (map[string]string, error) {
	statuses := make(map[string]string, len(taskIDs))
	if len(taskIDs) == 0 {
		return statuses, nil
	}

	type row struct {
		TaskID string
		Status string
	}
	var rows []row
	err := r.ds.DB(ctx).Model(&AnalysisTask{}).
		Select("task_id, status").
		Where("task_id IN ?", taskIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get task statuses: %w", err)
	}
	for _, rw := range rows {
		statuses[rw.TaskID] = rw.Status
	}
	return statuses, nil
}

// MarkTerminal moves a RUNNING task to status. Returns false when the task does not
// exist, was never claimed or is already terminal.
func (r *AnalysisTaskRepository) MarkTerminal(ctx context.Context, taskID, status string) (bool, error) {
	result := r.ds.DB(ctx).Model(&AnalysisTask{}).
		Where("task_id = ? AND status = ?", taskID, statusRunning).
		Updates(map[string]interface{}{
			"status":          status,
			"last_updated_at": r.ds.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark task %s as %s: %w", taskID, status, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ExistsInFlight reports whether the source has a QUEUED or RUNNING task of taskType
func (r *AnalysisTaskRepository) ExistsInFlight(ctx context.Context, verificationTaskID, taskType string) (bool, error) {
	var count int64
	err := r.ds.DB(ctx).Model(&AnalysisTask{}).
		Where("verification_task_id = ? AND task_type = ? AND status IN ?",
			verificationTaskID, taskType, []string{statusQueued, statusRunning}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check in-flight tasks: %w", err)
	}
	return count > 0, nil
}

// CountByStatus returns task counts grouped by status
func (r *AnalysisTaskRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	err := r.ds.DB(ctx).Model(&AnalysisTask{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}

	result := make(map[string]int64, len(counts))
	for _, c := range counts {
		result[c.Status] = c.Count
	}
	return result, nil
}

// CleanupOldTasks deletes terminal tasks whose last update is before cutoff
func (r *AnalysisTaskRepository) CleanupOldTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.ds.DB(ctx).
		Where("status NOT IN ? AND last_updated_at < ?", []string{statusQueued, statusRunning}, cutoff).
		Delete(&AnalysisTask{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup old tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// AnalysisTaskEventRepository handles task event persistence in MySQL
type AnalysisTaskEventRepository struct {
	ds *Datastore
}

// NewAnalysisTaskEventRepository creates a new task event repository
func NewAnalysisTaskEventRepository(ds *Datastore) *AnalysisTaskEventRepository {
	return &AnalysisTaskEventRepository{ds: ds}
}

// RecordEvent creates a new task event
func (r *AnalysisTaskEventRepository) RecordEvent(ctx context.Context, event *AnalysisTaskEvent) error {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}
	return r.ds.DB(ctx).Create(event).Error
}

// GetTaskEvents retrieves all events for a task (ordered by time)
func (r *AnalysisTaskEventRepository) GetTaskEvents(ctx context.Context, taskID string) ([]*AnalysisTaskEvent, error) {
	var events []*AnalysisTaskEvent
	err := r.ds.DB(ctx).
		Where("task_id = ?", taskID).
		Order("event_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get task events: %w", err)
	}
	return events, nil
}

// DeleteOldEvents deletes events older than cutoff
func (r *AnalysisTaskEventRepository) DeleteOldEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.ds.DB(ctx).
		Where("event_time < ?", cutoff).
		Delete(&AnalysisTaskEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
