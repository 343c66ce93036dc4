package model

import "time"

// CumulativeSumsState MySQL model for time_series_cumulative_sums table.
// One row per source; Payload is a compressed blob.
type CumulativeSumsState struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string    `gorm:"column:verification_task_id;type:varchar(128);not null;uniqueIndex:idx_cumsums_source_unique" json:"verification_task_id"`
	WindowStart        time.Time `gorm:"column:window_start;type:datetime(3);not null" json:"window_start"`
	WindowEnd          time.Time `gorm:"column:window_end;type:datetime(3);not null" json:"window_end"`
	Payload            []byte    `gorm:"column:payload;type:longblob;not null" json:"-"`
	CreatedAt          time.Time `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
	LastUpdatedAt      time.Time `gorm:"column:last_updated_at;type:datetime(3);not null" json:"last_updated_at"`
}

// TableName specifies the table name for CumulativeSumsState
func (CumulativeSumsState) TableName() string {
	return "time_series_cumulative_sums"
}

// ShortTermHistoryState MySQL model for time_series_short_term_histories table
type ShortTermHistoryState struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string    `gorm:"column:verification_task_id;type:varchar(128);not null;uniqueIndex:idx_history_source_unique" json:"verification_task_id"`
	Payload            []byte    `gorm:"column:payload;type:longblob;not null" json:"-"`
	CreatedAt          time.Time `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
	LastUpdatedAt      time.Time `gorm:"column:last_updated_at;type:datetime(3);not null" json:"last_updated_at"`
}

// TableName specifies the table name for ShortTermHistoryState
func (ShortTermHistoryState) TableName() string {
	return "time_series_short_term_histories"
}

// AnomalousPatternsState MySQL model for time_series_anomalous_patterns table
type AnomalousPatternsState struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string    `gorm:"column:verification_task_id;type:varchar(128);not null;uniqueIndex:idx_patterns_source_unique" json:"verification_task_id"`
	Payload            []byte    `gorm:"column:payload;type:longblob;not null" json:"-"`
	CreatedAt          time.Time `gorm:"column:created_at;type:datetime(3);not null" json:"created_at"`
	LastUpdatedAt      time.Time `gorm:"column:last_updated_at;type:datetime(3);not null" json:"last_updated_at"`
}

// TableName specifies the table name for AnomalousPatternsState
func (AnomalousPatternsState) TableName() string {
	return "time_series_anomalous_patterns"
}
