package service

import (
	"context"
	"time"

	"verifier/internal/model"
	"verifier/pkg/logger"
	"verifier/pkg/store/mysql"
)

const defaultHeatmapResolution = 5 * time.Minute

// HeatmapService maintains the per-category health heat-map
type HeatmapService struct {
	repo       heatmapRepository
	queue      riskQueue
	mirror     riskMirror
	resolution time.Duration
}

// NewHeatmapService creates a new Heatmap service. queue and mirror are optional.
func NewHeatmapService(repo heatmapRepository, queue riskQueue, mirror riskMirror, resolution time.Duration) *HeatmapService {
	if resolution <= 0 {
		resolution = defaultHeatmapResolution
	}
	return &HeatmapService{
		repo:       repo,
		queue:      queue,
		mirror:     mirror,
		resolution: resolution,
	}
}

// BucketStart returns the start of the bucket a window ending at windowEnd falls into
func (s *HeatmapService) BucketStart(windowEnd time.Time) time.Time {
	return windowEnd.UTC().Add(-time.Nanosecond).Truncate(s.resolution)
}

// UpdateRiskScore hands the update to the async queue, or applies it inline when no
// queue is configured. Failures are logged, never returned.
func (s *HeatmapService) UpdateRiskScore(ctx context.Context, update *model.RiskUpdate) {
	if s.queue != nil {
		err := s.queue.EnqueueRiskUpdate(ctx, update)
		if err == nil {
			return
		}
		logger.WarnCtx(ctx, "failed to enqueue heatmap update for %s, applying inline: %v", update.VerificationTaskID, err)
	}
	if err := s.Apply(ctx, update); err != nil {
		logger.ErrorCtx(ctx, "failed to update heatmap for %s: %v", update.VerificationTaskID, err)
	}
}

// Apply merges an update into its bucket, keeping the highest risk. Also the
// asynq handler of heat-map tasks.
func (s *HeatmapService) Apply(ctx context.Context, update *model.RiskUpdate) error {
	if update.Risk < 0 {
		return nil
	}

	bucketStart := s.BucketStart(update.WindowEnd)
	err := s.repo.UpsertMax(ctx, &mysql.HealthHeatmap{
		AccountID:   update.AccountID,
		OrgID:       update.OrgID,
		ProjectID:   update.ProjectID,
		ServiceID:   update.ServiceID,
		EnvID:       update.EnvID,
		Category:    update.Category,
		BucketStart: bucketStart,
		BucketEnd:   bucketStart.Add(s.resolution),
		RiskScore:   update.Risk,
		SourceID:    update.VerificationTaskID,
	})
	if err != nil {
		return model.StoreError(err)
	}

	if s.mirror != nil {
		if err := s.mirror.WriteRisk(ctx, update, bucketStart); err != nil {
			logger.WarnCtx(ctx, "failed to mirror heatmap risk for %s: %v", update.VerificationTaskID, err)
		}
	}
	return nil
}

// CategoryRisks returns the highest risk per category of the source's service/env inside w
func (s *HeatmapService) CategoryRisks(ctx context.Context, source *model.VerificationTask, w model.Window) ([]model.CategoryRisk, error) {
	rows, err := s.repo.MaxRiskByCategory(ctx, source.AccountID, source.OrgID, source.ProjectID,
		source.ServiceID, source.EnvID, w.Start.UTC(), w.End.UTC())
	if err != nil {
		return nil, model.StoreError(err)
	}
	risks := make([]model.CategoryRisk, 0, len(rows))
	for _, row := range rows {
		risks = append(risks, model.CategoryRisk{Category: row.Category, Risk: row.Risk})
	}
	return risks, nil
}
