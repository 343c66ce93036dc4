package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HeatmapRepository handles health heat-map buckets
type HeatmapRepository struct {
	ds *Datastore
}

// NewHeatmapRepository creates a new heat-map repository
func NewHeatmapRepository(ds *Datastore) *HeatmapRepository {
	return &HeatmapRepository{ds: ds}
}

// UpsertMax inserts the bucket or raises its risk to the higher of the stored and new value
func (r *HeatmapRepository) UpsertMax(ctx context.Context, bucket *HealthHeatmap) error {
	bucket.UpdatedAt = r.ds.Now()
	err := r.ds.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "account_id"}, {Name: "org_id"}, {Name: "project_id"},
				{Name: "service_id"}, {Name: "env_id"}, {Name: "category"}, {Name: "bucket_start"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"risk_score": gorm.Expr("GREATEST(risk_score, VALUES(risk_score))"),
				"source_id":  gorm.Expr("IF(VALUES(risk_score) >= risk_score, VALUES(source_id), source_id)"),
				"updated_at": bucket.UpdatedAt,
			}),
		}).
		Create(bucket).Error
	if err != nil {
		return fmt.Errorf("failed to upsert heatmap bucket: %w", err)
	}
	return nil
}

// HeatmapCategoryRisk one category's highest bucket risk in a range
type HeatmapCategoryRisk struct {
	Category string
	Risk     float64
}

// MaxRiskByCategory returns the highest bucket risk per category for a service/env in [start, end)
func (r *HeatmapRepository) MaxRiskByCategory(ctx context.Context, accountID, orgID, projectID, serviceID, envID string, start, end time.Time) ([]HeatmapCategoryRisk, error) {
	var risks []HeatmapCategoryRisk
	err := r.ds.DB(ctx).Model(&HealthHeatmap{}).
		Select("category, MAX(risk_score) AS risk").
		Where("account_id = ? AND org_id = ? AND project_id = ? AND service_id = ? AND env_id = ?",
			accountID, orgID, projectID, serviceID, envID).
		Where("bucket_start >= ? AND bucket_start < ?", start, end).
		Group("category").
		Order("category ASC").
		Scan(&risks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get category risks: %w", err)
	}
	return risks, nil
}

// DeleteBefore deletes buckets older than cutoff
func (r *HeatmapRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.ds.DB(ctx).Where("bucket_end < ?", cutoff).Delete(&HealthHeatmap{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete heatmap buckets: %w", result.Error)
	}
	return result.RowsAffected, nil
}
