package model

import "time"

// HealthHeatmap MySQL model for health_heatmaps table.
// One row per (scope, category, bucket); RiskScore keeps the highest risk seen in the bucket.
type HealthHeatmap struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   string    `gorm:"column:account_id;type:varchar(128);not null;uniqueIndex:idx_heatmap_bucket_unique,priority:1" json:"account_id"`
	OrgID       string    `gorm:"column:org_id;type:varchar(128);not null;uniqueIndex:idx_heatmap_bucket_unique,priority:2" json:"org_id"`
	ProjectID   string    `gorm:"column:project_id;type:varchar(128);not null;uniqueIndex:idx_heatmap_bucket_unique,priority:3" json:"project_id"`
	ServiceID   string    `gorm:"column:service_id;type:varchar(128);not null;uniqueIndex:idx_heatmap_bucket_unique,priority:4" json:"service_id"`
	EnvID       string    `gorm:"column:env_id;type:varchar(128);not null;uniqueIndex:idx_heatmap_bucket_unique,priority:5" json:"env_id"`
	Category    string    `gorm:"column:category;type:varchar(50);not null;uniqueIndex:idx_heatmap_bucket_unique,priority:6" json:"category"`
	BucketStart time.Time `gorm:"column:bucket_start;type:datetime(3);not null;uniqueIndex:idx_heatmap_bucket_unique,priority:7" json:"bucket_start"`
	BucketEnd   time.Time `gorm:"column:bucket_end;type:datetime(3);not null" json:"bucket_end"`
	RiskScore   float64   `gorm:"column:risk_score;type:double;not null" json:"risk_score"`
	SourceID    string    `gorm:"column:source_id;type:varchar(128)" json:"source_id"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:datetime(3);not null" json:"updated_at"`
}

// TableName specifies the table name for HealthHeatmap
func (HealthHeatmap) TableName() string {
	return "health_heatmaps"
}
