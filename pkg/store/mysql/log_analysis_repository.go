package mysql

import (
	"context"
	"fmt"
	"time"
)

// LogAnalysisRepository handles log clusters, log analysis results and clustered log records
type LogAnalysisRepository struct {
	ds *Datastore
}

// NewLogAnalysisRepository creates a new log analysis repository
func NewLogAnalysisRepository(ds *Datastore) *LogAnalysisRepository {
	return &LogAnalysisRepository{ds: ds}
}

// ReplaceActiveClusters deletes the source's non-evicted clusters and inserts clusters
func (r *LogAnalysisRepository) ReplaceActiveClusters(ctx context.Context, sourceID string, clusters []*LogAnalysisCluster) error {
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND is_evicted = ?", sourceID, false).
		Delete(&LogAnalysisCluster{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete active clusters: %w", err)
	}
	if len(clusters) == 0 {
		return nil
	}

	now := r.ds.Now()
	for _, c := range clusters {
		c.VerificationTaskID = sourceID
		c.CreatedAt = now
	}
	if err := r.ds.DB(ctx).Create(&clusters).Error; err != nil {
		return fmt.Errorf("failed to insert clusters: %w", err)
	}
	return nil
}

// ListActiveClusters returns the source's non-evicted clusters ordered by label
func (r *LogAnalysisRepository) ListActiveClusters(ctx context.Context, sourceID string) ([]*LogAnalysisCluster, error) {
	var clusters []*LogAnalysisCluster
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND is_evicted = ?", sourceID, false).
		Order("label ASC").
		Find(&clusters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	return clusters, nil
}

// ReplaceResult deletes any result of the same source window and inserts result
func (r *LogAnalysisRepository) ReplaceResult(ctx context.Context, result *LogAnalysisResult) error {
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND window_start = ? AND window_end = ?",
			result.VerificationTaskID, result.WindowStart, result.WindowEnd).
		Delete(&LogAnalysisResult{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete log analysis result: %w", err)
	}
	result.CreatedAt = r.ds.Now()
	if err := r.ds.DB(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create log analysis result: %w", err)
	}
	return nil
}

// ReplaceClusteredRecords deletes the source's records of level inside [start, end) and inserts records
func (r *LogAnalysisRepository) ReplaceClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time, records []*ClusteredLogRecord) error {
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND level = ? AND timestamp >= ? AND timestamp < ?", sourceID, level, start, end).
		Delete(&ClusteredLogRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete clustered records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	now := r.ds.Now()
	for _, rec := range records {
		rec.VerificationTaskID = sourceID
		rec.Level = level
		rec.CreatedAt = now
	}
	if err := r.ds.DB(ctx).CreateInBatches(&records, 500).Error; err != nil {
		return fmt.Errorf("failed to insert clustered records: %w", err)
	}
	return nil
}

// CountClusteredRecords counts records of level for a source inside [start, end)
func (r *LogAnalysisRepository) CountClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time) (int64, error) {
	var count int64
	err := r.ds.DB(ctx).Model(&ClusteredLogRecord{}).
		Where("verification_task_id = ? AND level = ? AND timestamp >= ? AND timestamp < ?", sourceID, level, start, end).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count clustered records: %w", err)
	}
	return count, nil
}

// ListClusteredRecords returns records of level for a source inside [start, end)
func (r *LogAnalysisRepository) ListClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time) ([]*ClusteredLogRecord, error) {
	var records []*ClusteredLogRecord
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND level = ? AND timestamp >= ? AND timestamp < ?", sourceID, level, start, end).
		Order("timestamp ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clustered records: %w", err)
	}
	return records, nil
}

// DeleteClusteredRecordsBefore deletes clustered records older than cutoff
func (r *LogAnalysisRepository) DeleteClusteredRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.ds.DB(ctx).Where("timestamp < ?", cutoff).Delete(&ClusteredLogRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete clustered records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
