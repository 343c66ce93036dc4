package model

import (
	"time"

	domain "verifier/internal/model"
)

// Anomaly MySQL model for anomalies table
type Anomaly struct {
	ID                 int64                          `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID          string                         `gorm:"column:account_id;type:varchar(128);not null;index:idx_account_source_status,priority:1" json:"account_id"`
	VerificationTaskID string                         `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_account_source_status,priority:2" json:"verification_task_id"`
	Status             string                         `gorm:"column:status;type:varchar(20);not null;index:idx_account_source_status,priority:3" json:"status"`
	StartTime          time.Time                      `gorm:"column:start_time;type:datetime(3);not null" json:"start_time"`
	EndTime            time.Time                      `gorm:"column:end_time;type:datetime(3);not null" json:"end_time"`
	Metrics            JSON[[]domain.AnomalousMetric] `gorm:"column:anomalous_metrics;type:json" json:"anomalous_metrics"`
	CreatedAt          time.Time                      `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
	LastUpdatedAt      time.Time                      `gorm:"column:last_updated_at;type:datetime(3);not null" json:"last_updated_at"`
}

// TableName specifies the table name for Anomaly
func (Anomaly) TableName() string {
	return "anomalies"
}
