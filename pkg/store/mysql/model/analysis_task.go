package model

import (
	"time"

	domain "verifier/internal/model"
)

// AnalysisTask MySQL model for analysis_tasks table
type AnalysisTask struct {
	ID                 int64                    `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID             string                   `gorm:"column:task_id;type:varchar(64);not null;uniqueIndex:idx_task_id_unique" json:"task_id"`
	AccountID          string                   `gorm:"column:account_id;type:varchar(128);not null" json:"account_id"`
	VerificationTaskID string                   `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_source_type_status,priority:1" json:"verification_task_id"`
	TaskType           string                   `gorm:"column:task_type;type:varchar(50);not null;index:idx_source_type_status,priority:2;index:idx_status_priority,priority:2" json:"task_type"`
	Status             string                   `gorm:"column:status;type:varchar(20);not null;index:idx_source_type_status,priority:3;index:idx_status_priority,priority:1" json:"status"`
	Priority           int                      `gorm:"column:priority;type:int;not null;default:0;index:idx_status_priority,priority:3" json:"priority"`
	WindowStart        time.Time                `gorm:"column:window_start;type:datetime(3);not null" json:"window_start"`
	WindowEnd          time.Time                `gorm:"column:window_end;type:datetime(3);not null" json:"window_end"`
	InputDataURL       string                   `gorm:"column:input_data_url;type:varchar(2048);not null" json:"input_data_url"`
	PreviousStateURL   string                   `gorm:"column:previous_state_url;type:varchar(2048)" json:"previous_state_url"`
	SaveResultURL      string                   `gorm:"column:save_result_url;type:varchar(2048);not null" json:"save_result_url"`
	FailureURL         string                   `gorm:"column:failure_url;type:varchar(2048);not null" json:"failure_url"`
	Payload            JSON[domain.TaskPayload] `gorm:"column:payload;type:json;not null" json:"payload"`
	CreatedAt          time.Time                `gorm:"column:created_at;type:datetime(3);not null;index:idx_status_priority,priority:4" json:"created_at"`
	LastUpdatedAt      time.Time                `gorm:"column:last_updated_at;type:datetime(3);not null;index:idx_last_updated_at" json:"last_updated_at"`
}

// TableName specifies the table name for AnalysisTask
func (AnalysisTask) TableName() string {
	return "analysis_tasks"
}

// AnalysisTaskEvent MySQL model for analysis_task_events table
type AnalysisTaskEvent struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID             string    `gorm:"column:task_id;type:varchar(64);not null;index:idx_task_id_event_time,priority:1" json:"task_id"`
	VerificationTaskID string    `gorm:"column:verification_task_id;type:varchar(128);not null" json:"verification_task_id"`
	EventType          string    `gorm:"column:event_type;type:varchar(50);not null" json:"event_type"`
	FromStatus         string    `gorm:"column:from_status;type:varchar(20)" json:"from_status"`
	ToStatus           string    `gorm:"column:to_status;type:varchar(20)" json:"to_status"`
	Message            string    `gorm:"column:message;type:text" json:"message"`
	EventTime          time.Time `gorm:"column:event_time;type:datetime(3);not null;index:idx_task_id_event_time,priority:2;index:idx_event_time" json:"event_time"`
}

// TableName specifies the table name for AnalysisTaskEvent
func (AnalysisTaskEvent) TableName() string {
	return "analysis_task_events"
}

// AnalysisTaskEventType analysis task lifecycle event
type AnalysisTaskEventType string

const (
	EventTaskQueued    AnalysisTaskEventType = "TASK_QUEUED"
	EventTaskClaimed   AnalysisTaskEventType = "TASK_CLAIMED"
	EventTaskSucceeded AnalysisTaskEventType = "TASK_SUCCEEDED"
	EventTaskFailed    AnalysisTaskEventType = "TASK_FAILED"
	EventTaskTimeout   AnalysisTaskEventType = "TASK_TIMEOUT"
)
