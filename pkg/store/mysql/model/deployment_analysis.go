package model

import (
	"time"

	domain "verifier/internal/model"
)

// DeploymentTimeSeriesAnalysis MySQL model for deployment_time_series_analyses table
type DeploymentTimeSeriesAnalysis struct {
	ID                  int64                                `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID  string                               `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_dts_source" json:"verification_task_id"`
	JobInstanceID       string                               `gorm:"column:job_instance_id;type:varchar(128);not null;index:idx_dts_instance_window_end,priority:1" json:"job_instance_id"`
	AccountID           string                               `gorm:"column:account_id;type:varchar(128);not null" json:"account_id"`
	WindowStart         time.Time                            `gorm:"column:window_start;type:datetime(3);not null" json:"window_start"`
	WindowEnd           time.Time                            `gorm:"column:window_end;type:datetime(3);not null;index:idx_dts_instance_window_end,priority:2" json:"window_end"`
	OverallRisk         float64                              `gorm:"column:overall_risk;type:double;not null" json:"overall_risk"`
	Score               float64                              `gorm:"column:score;type:double;not null" json:"score"`
	HostSummaries       JSON[[]domain.HostTimeSeriesSummary] `gorm:"column:host_summaries;type:json" json:"host_summaries"`
	OverallMetricScores JSON[[]domain.MetricScore]           `gorm:"column:overall_metric_scores;type:json" json:"overall_metric_scores"`
	CreatedAt           time.Time                            `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
}

// TableName specifies the table name for DeploymentTimeSeriesAnalysis
func (DeploymentTimeSeriesAnalysis) TableName() string {
	return "deployment_time_series_analyses"
}

// DeploymentLogAnalysis MySQL model for deployment_log_analyses table
type DeploymentLogAnalysis struct {
	ID                 int64                         `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string                        `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_dla_source" json:"verification_task_id"`
	JobInstanceID      string                        `gorm:"column:job_instance_id;type:varchar(128);not null;index:idx_dla_instance_window_end,priority:1" json:"job_instance_id"`
	AccountID          string                        `gorm:"column:account_id;type:varchar(128);not null" json:"account_id"`
	WindowStart        time.Time                     `gorm:"column:window_start;type:datetime(3);not null" json:"window_start"`
	WindowEnd          time.Time                     `gorm:"column:window_end;type:datetime(3);not null;index:idx_dla_instance_window_end,priority:2" json:"window_end"`
	OverallRisk        float64                       `gorm:"column:overall_risk;type:double;not null" json:"overall_risk"`
	Score              float64                       `gorm:"column:score;type:double;not null" json:"score"`
	HostSummaries      JSON[[]domain.HostLogSummary] `gorm:"column:host_summaries;type:json" json:"host_summaries"`
	Clusters           JSON[[]domain.ClusterRisk]    `gorm:"column:clusters;type:json" json:"clusters"`
	CreatedAt          time.Time                     `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
}

// TableName specifies the table name for DeploymentLogAnalysis
func (DeploymentLogAnalysis) TableName() string {
	return "deployment_log_analyses"
}
