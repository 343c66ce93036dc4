package model

import (
	"time"

	domain "verifier/internal/model"
)

// LogAnalysisCluster MySQL model for log_analysis_clusters table
type LogAnalysisCluster struct {
	ID                 int64                         `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string                        `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_source_evicted,priority:1" json:"verification_task_id"`
	Label              int64                         `gorm:"column:label;type:bigint;not null" json:"label"`
	Text               string                        `gorm:"column:text;type:text" json:"text"`
	Trend              JSON[[]domain.FrequencyPoint] `gorm:"column:trend;type:json" json:"trend"`
	IsEvicted          bool                          `gorm:"column:is_evicted;not null;default:false;index:idx_source_evicted,priority:2" json:"is_evicted"`
	WindowStart        time.Time                     `gorm:"column:window_start;type:datetime(3);not null" json:"window_start"`
	WindowEnd          time.Time                     `gorm:"column:window_end;type:datetime(3);not null" json:"window_end"`
	CreatedAt          time.Time                     `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
}

// TableName specifies the table name for LogAnalysisCluster
func (LogAnalysisCluster) TableName() string {
	return "log_analysis_clusters"
}

// LogAnalysisResult MySQL model for log_analysis_results table
type LogAnalysisResult struct {
	ID                 int64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string                     `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_source_window_end,priority:1" json:"verification_task_id"`
	WindowStart        time.Time                  `gorm:"column:window_start;type:datetime(3);not null" json:"window_start"`
	WindowEnd          time.Time                  `gorm:"column:window_end;type:datetime(3);not null;index:idx_source_window_end,priority:2" json:"window_end"`
	OverallRisk        float64                    `gorm:"column:overall_risk;type:double;not null" json:"overall_risk"`
	Score              float64                    `gorm:"column:score;type:double;not null" json:"score"`
	ClusterRisks       JSON[[]domain.ClusterRisk] `gorm:"column:cluster_risks;type:json" json:"cluster_risks"`
	CreatedAt          time.Time                  `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
}

// TableName specifies the table name for LogAnalysisResult
func (LogAnalysisResult) TableName() string {
	return "log_analysis_results"
}

// ClusteredLogRecord MySQL model for clustered_log_records table
type ClusteredLogRecord struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string    `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_source_level_ts,priority:1" json:"verification_task_id"`
	Level              string    `gorm:"column:level;type:varchar(4);not null;index:idx_source_level_ts,priority:2" json:"level"`
	Host               string    `gorm:"column:host;type:varchar(255)" json:"host"`
	Timestamp          time.Time `gorm:"column:timestamp;type:datetime(3);not null;index:idx_source_level_ts,priority:3" json:"timestamp"`
	Label              int64     `gorm:"column:label;type:bigint;not null" json:"label"`
	Text               string    `gorm:"column:text;type:text" json:"text"`
	Count              int       `gorm:"column:count;type:int;not null;default:0" json:"count"`
	CreatedAt          time.Time `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
}

// TableName specifies the table name for ClusteredLogRecord
func (ClusteredLogRecord) TableName() string {
	return "clustered_log_records"
}
