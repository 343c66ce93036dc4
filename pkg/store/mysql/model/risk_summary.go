package model

import (
	"time"

	domain "verifier/internal/model"
)

// RiskSummary MySQL model for time_series_risk_summaries table
type RiskSummary struct {
	ID                 int64                     `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string                    `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_source_window_end,priority:1" json:"verification_task_id"`
	WindowStart        time.Time                 `gorm:"column:window_start;type:datetime(3);not null" json:"window_start"`
	WindowEnd          time.Time                 `gorm:"column:window_end;type:datetime(3);not null;index:idx_source_window_end,priority:2" json:"window_end"`
	OverallRisk        float64                   `gorm:"column:overall_risk;type:double;not null" json:"overall_risk"`
	MetricRisks        JSON[[]domain.MetricRisk] `gorm:"column:metric_risks;type:json" json:"metric_risks"`
	CreatedAt          time.Time                 `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
}

// TableName specifies the table name for RiskSummary
func (RiskSummary) TableName() string {
	return "time_series_risk_summaries"
}
