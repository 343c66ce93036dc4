package model

import (
	"time"
)

// TaskType analysis task type
type TaskType string

const (
	TaskTypeContinuousLog        TaskType = "CONTINUOUS_LOG"
	TaskTypeContinuousTimeSeries TaskType = "CONTINUOUS_TIME_SERIES"
	TaskTypeLogClusterL1         TaskType = "LOG_CLUSTER_L1"
	TaskTypeLogClusterL2         TaskType = "LOG_CLUSTER_L2"
	TaskTypeCanaryTimeSeries     TaskType = "CANARY_TIME_SERIES"
	TaskTypeLoadTestTimeSeries   TaskType = "LOAD_TEST_TIME_SERIES"
	TaskTypeDeploymentLog        TaskType = "DEPLOYMENT_LOG"
)

// AllTaskTypes lists every task type the aggregator understands
var AllTaskTypes = []TaskType{
	TaskTypeContinuousLog,
	TaskTypeContinuousTimeSeries,
	TaskTypeLogClusterL1,
	TaskTypeLogClusterL2,
	TaskTypeCanaryTimeSeries,
	TaskTypeLoadTestTimeSeries,
	TaskTypeDeploymentLog,
}

// Valid reports whether t is a known task type
func (t TaskType) Valid() bool {
	for _, known := range AllTaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CarriesSourceState reports whether results of this type rewrite per-source state,
// so windows of the type must be processed one at a time per source.
func (t TaskType) CarriesSourceState() bool {
	return t == TaskTypeContinuousTimeSeries || t == TaskTypeContinuousLog
}

// TaskStatus analysis task status
type TaskStatus string

const (
	TaskStatusQueued  TaskStatus = "QUEUED"
	TaskStatusRunning TaskStatus = "RUNNING"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailed  TaskStatus = "FAILED"
	TaskStatusTimeout TaskStatus = "TIMEOUT"
)

// IsTerminal reports whether no further transition is allowed
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed || s == TaskStatusTimeout
}

// CallbackURLs the URLs the compute engine uses for a task. They are built once
// at dispatch time and persisted with the task.
type CallbackURLs struct {
	InputData     string `json:"inputDataUrl"`
	PreviousState string `json:"previousStateUrl,omitempty"`
	SaveResult    string `json:"saveResultUrl"`
	ReportFailure string `json:"reportFailureUrl"`
}

// AnalysisTask unit of work handed to the compute engine
type AnalysisTask struct {
	ID                 string       `json:"id"`
	AccountID          string       `json:"accountId"`
	VerificationTaskID string       `json:"verificationTaskId"`
	Type               TaskType     `json:"type"`
	Status             TaskStatus   `json:"status"`
	Priority           int          `json:"priority"`
	WindowStart        time.Time    `json:"windowStart"`
	WindowEnd          time.Time    `json:"windowEnd"`
	URLs               CallbackURLs `json:"urls"`
	Payload            TaskPayload  `json:"payload"`
	CreatedAt          time.Time    `json:"createdAt"`
	LastUpdatedAt      time.Time    `json:"lastUpdatedAt"`
}

// Window returns the task window
func (t *AnalysisTask) Window() Window {
	return Window{Start: t.WindowStart, End: t.WindowEnd}
}

// Window a bounded time range [Start, End)
type Window struct {
	Start time.Time `json:"startTime"`
	End   time.Time `json:"endTime"`
}

// Minutes returns the number of whole minutes in the window
func (w Window) Minutes() int {
	if !w.End.After(w.Start) {
		return 0
	}
	return int(w.End.Sub(w.Start) / time.Minute)
}

// Contains reports whether w lies entirely inside other
func (w Window) Contains(other Window) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

func (w Window) String() string {
	return w.Start.UTC().Format(time.RFC3339) + "/" + w.End.UTC().Format(time.RFC3339)
}

// TaskEvent one lifecycle transition of an analysis task
type TaskEvent struct {
	TaskID     string     `json:"taskId"`
	EventType  string     `json:"eventType"`
	FromStatus TaskStatus `json:"fromStatus,omitempty"`
	ToStatus   TaskStatus `json:"toStatus"`
	Message    string     `json:"message,omitempty"`
	EventTime  time.Time  `json:"eventTime"`
}

// ClaimRequest engine request for the next task
type ClaimRequest struct {
	TaskTypes []TaskType `json:"taskTypes,omitempty"`
}

// StatusRequest engine request for task statuses
type StatusRequest struct {
	TaskIDs []string `json:"taskIds" binding:"required"`
}
