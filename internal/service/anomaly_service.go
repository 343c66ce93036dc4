package service

import (
	"context"
	"time"

	"verifier/internal/model"
	"verifier/pkg/logger"
	"verifier/pkg/metrics"
	"verifier/pkg/store/mysql"
)

// AnomalyService keeps at most one open anomaly per (account, monitored source)
type AnomalyService struct {
	repo      anomalyRepository
	threshold float64
}

// NewAnomalyService creates a new Anomaly service. A window whose overall risk is
// at or below threshold closes the open anomaly; anything above opens or refreshes it.
func NewAnomalyService(repo anomalyRepository, threshold float64) *AnomalyService {
	return &AnomalyService{repo: repo, threshold: threshold}
}

// Apply performs the single open-or-close step of one window. Must run inside the
// result transaction: the open anomaly row is locked until commit.
func (s *AnomalyService) Apply(
	ctx context.Context,
	accountID, sourceID string,
	endTime time.Time,
	overallRisk float64,
	anomalous []model.AnomalousMetric,
) (model.AnomalyTransition, *model.Anomaly, error) {
	open, err := s.repo.FindOpenForUpdate(ctx, accountID, sourceID)
	if err != nil {
		return "", nil, model.StoreError(err)
	}

	if overallRisk <= s.threshold {
		if open == nil {
			return model.AnomalyUnchanged, nil, nil
		}
		closed, err := s.CloseAnomaly(ctx, open, endTime)
		return model.AnomalyClosed, closed, err
	}

	if open == nil {
		opened, err := s.OpenAnomaly(ctx, accountID, sourceID, endTime, anomalous)
		return model.AnomalyOpened, opened, err
	}

	open.EndTime = endTime
	open.Metrics.Data = anomalous
	if err := s.repo.Update(ctx, open); err != nil {
		return "", nil, model.StoreError(err)
	}
	metrics.AnomalyTransitions.WithLabelValues(string(model.AnomalyRefreshed)).Inc()
	return model.AnomalyRefreshed, mysql.ToAnomalyDomain(open), nil
}

// OpenAnomaly records a new open anomaly starting at endTime
func (s *AnomalyService) OpenAnomaly(ctx context.Context, accountID, sourceID string, endTime time.Time, anomalous []model.AnomalousMetric) (*model.Anomaly, error) {
	anomaly := &model.Anomaly{
		AccountID:          accountID,
		VerificationTaskID: sourceID,
		Status:             model.AnomalyStatusOpen,
		StartTime:          endTime,
		EndTime:            endTime,
		Metrics:            anomalous,
	}
	row := mysql.FromAnomalyDomain(anomaly)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, model.StoreError(err)
	}
	anomaly.ID = row.ID

	metrics.AnomalyTransitions.WithLabelValues(string(model.AnomalyOpened)).Inc()
	logger.InfoCtx(ctx, "anomaly opened for verification task %s at %s with %d metrics",
		sourceID, endTime.Format(time.RFC3339), len(anomalous))
	return anomaly, nil
}

// CloseAnomaly closes an open anomaly as of endTime
func (s *AnomalyService) CloseAnomaly(ctx context.Context, open *mysql.Anomaly, endTime time.Time) (*model.Anomaly, error) {
	open.Status = string(model.AnomalyStatusClosed)
	open.EndTime = endTime
	if err := s.repo.Update(ctx, open); err != nil {
		return nil, model.StoreError(err)
	}

	metrics.AnomalyTransitions.WithLabelValues(string(model.AnomalyClosed)).Inc()
	logger.InfoCtx(ctx, "anomaly %d closed for verification task %s at %s",
		open.ID, open.VerificationTaskID, endTime.Format(time.RFC3339))
	return mysql.ToAnomalyDomain(open), nil
}

// ListAnomalies returns the most recent anomalies of a source, newest first
func (s *AnomalyService) ListAnomalies(ctx context.Context, sourceID string, limit int) ([]*model.Anomaly, error) {
	rows, err := s.repo.ListBySource(ctx, sourceID, limit)
	if err != nil {
		return nil, &model.AnalysisError{Op: "list anomalies", SourceID: sourceID, Err: model.StoreError(err)}
	}
	anomalies := make([]*model.Anomaly, 0, len(rows))
	for _, row := range rows {
		anomalies = append(anomalies, mysql.ToAnomalyDomain(row))
	}
	return anomalies, nil
}
