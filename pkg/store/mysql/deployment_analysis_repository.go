package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// DeploymentAnalysisRepository handles deployment time-series and log analyses
type DeploymentAnalysisRepository struct {
	ds *Datastore
}

// NewDeploymentAnalysisRepository creates a new deployment analysis repository
func NewDeploymentAnalysisRepository(ds *Datastore) *DeploymentAnalysisRepository {
	return &DeploymentAnalysisRepository{ds: ds}
}

// ReplaceTimeSeries deletes any analysis of the same source window and inserts analysis
func (r *DeploymentAnalysisRepository) ReplaceTimeSeries(ctx context.Context, analysis *DeploymentTimeSeriesAnalysis) error {
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND window_start = ? AND window_end = ?",
			analysis.VerificationTaskID, analysis.WindowStart, analysis.WindowEnd).
		Delete(&DeploymentTimeSeriesAnalysis{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete deployment time series analysis: %w", err)
	}
	if err := r.ds.DB(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("failed to create deployment time series analysis: %w", err)
	}
	return nil
}

// ReplaceLog deletes any log analysis of the same source window and inserts analysis
func (r *DeploymentAnalysisRepository) ReplaceLog(ctx context.Context, analysis *DeploymentLogAnalysis) error {
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND window_start = ? AND window_end = ?",
			analysis.VerificationTaskID, analysis.WindowStart, analysis.WindowEnd).
		Delete(&DeploymentLogAnalysis{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete deployment log analysis: %w", err)
	}
	if err := r.ds.DB(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("failed to create deployment log analysis: %w", err)
	}
	return nil
}

// LatestTimeSeries returns the most recent time-series analysis of each source of a job instance
func (r *DeploymentAnalysisRepository) LatestTimeSeries(ctx context.Context, jobInstanceID string) ([]*DeploymentTimeSeriesAnalysis, error) {
	latest := r.ds.DB(ctx).Model(&DeploymentTimeSeriesAnalysis{}).
		Select("verification_task_id, MAX(window_end) AS window_end").
		Where("job_instance_id = ?", jobInstanceID).
		Group("verification_task_id")

	var analyses []*DeploymentTimeSeriesAnalysis
	err := r.ds.DB(ctx).
		Joins("JOIN (?) AS latest ON latest.verification_task_id = deployment_time_series_analyses.verification_task_id AND latest.window_end = deployment_time_series_analyses.window_end", latest).
		Where("deployment_time_series_analyses.job_instance_id = ?", jobInstanceID).
		Order("deployment_time_series_analyses.id ASC").
		Find(&analyses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get latest time series analyses: %w", err)
	}
	return analyses, nil
}

// LatestLog returns the most recent log analysis of each source of a job instance
func (r *DeploymentAnalysisRepository) LatestLog(ctx context.Context, jobInstanceID string) ([]*DeploymentLogAnalysis, error) {
	latest := r.ds.DB(ctx).Model(&DeploymentLogAnalysis{}).
		Select("verification_task_id, MAX(window_end) AS window_end").
		Where("job_instance_id = ?", jobInstanceID).
		Group("verification_task_id")

	var analyses []*DeploymentLogAnalysis
	err := r.ds.DB(ctx).
		Joins("JOIN (?) AS latest ON latest.verification_task_id = deployment_log_analyses.verification_task_id AND latest.window_end = deployment_log_analyses.window_end", latest).
		Where("deployment_log_analyses.job_instance_id = ?", jobInstanceID).
		Order("deployment_log_analyses.id ASC").
		Find(&analyses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get latest log analyses: %w", err)
	}
	return analyses, nil
}

// AnomalyRepository handles anomalies
type AnomalyRepository struct {
	ds *Datastore
}

// NewAnomalyRepository creates a new anomaly repository
func NewAnomalyRepository(ds *Datastore) *AnomalyRepository {
	return &AnomalyRepository{ds: ds}
}

// FindOpenForUpdate returns the open anomaly of (account, source) and locks it
func (r *AnomalyRepository) FindOpenForUpdate(ctx context.Context, accountID, sourceID string) (*Anomaly, error) {
	var anomaly Anomaly
	err := r.ds.DB(ctx).
		Where("account_id = ? AND verification_task_id = ? AND status = ?", accountID, sourceID, "OPEN").
		Clauses(lockForUpdate).
		First(&anomaly).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open anomaly: %w", err)
	}
	return &anomaly, nil
}

// Create inserts an anomaly
func (r *AnomalyRepository) Create(ctx context.Context, anomaly *Anomaly) error {
	now := r.ds.Now()
	anomaly.CreatedAt = now
	anomaly.LastUpdatedAt = now
	if err := r.ds.DB(ctx).Create(anomaly).Error; err != nil {
		return fmt.Errorf("failed to create anomaly: %w", err)
	}
	return nil
}

// Update writes status, end time and metrics of an anomaly
func (r *AnomalyRepository) Update(ctx context.Context, anomaly *Anomaly) error {
	anomaly.LastUpdatedAt = r.ds.Now()
	err := r.ds.DB(ctx).Model(&Anomaly{}).
		Where("id = ?", anomaly.ID).
		Updates(map[string]interface{}{
			"status":            anomaly.Status,
			"end_time":          anomaly.EndTime,
			"anomalous_metrics": anomaly.Metrics,
			"last_updated_at":   anomaly.LastUpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update anomaly: %w", err)
	}
	return nil
}

// ListBySource returns anomalies of a source, newest first
func (r *AnomalyRepository) ListBySource(ctx context.Context, sourceID string, limit int) ([]*Anomaly, error) {
	if limit <= 0 {
		limit = 100
	}
	var anomalies []*Anomaly
	err := r.ds.DB(ctx).
		Where("verification_task_id = ?", sourceID).
		Order("start_time DESC").
		Limit(limit).
		Find(&anomalies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	return anomalies, nil
}
