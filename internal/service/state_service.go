package service

import (
	"context"

	"verifier/internal/model"
	"verifier/pkg/statecodec"
	"verifier/pkg/store/mysql"
)

// StateService reads the per-source state handed to the engine with the next window
type StateService struct {
	stateRepo stateRepository
	logRepo   logAnalysisRepository
}

// NewStateService creates a new State service
func NewStateService(stateRepo stateRepository, logRepo logAnalysisRepository) *StateService {
	return &StateService{stateRepo: stateRepo, logRepo: logRepo}
}

// GetCumulativeSums returns the running sums of a source; empty for a cold source
func (s *StateService) GetCumulativeSums(ctx context.Context, sourceID string) (*model.CumulativeSums, error) {
	row, err := s.stateRepo.GetCumulativeSums(ctx, sourceID)
	if err != nil {
		return nil, stateError("get cumulative sums", sourceID, err)
	}
	sums := &model.CumulativeSums{Sums: map[string]map[string]model.MetricSums{}}
	if row == nil {
		return sums, nil
	}
	if err := statecodec.Decode(row.Payload, sums); err != nil {
		return nil, &model.AnalysisError{Op: "get cumulative sums", SourceID: sourceID, Err: err}
	}
	if sums.Sums == nil {
		sums.Sums = map[string]map[string]model.MetricSums{}
	}
	return sums, nil
}

// GetShortTermHistory returns the recent values of a source; empty for a cold source
func (s *StateService) GetShortTermHistory(ctx context.Context, sourceID string) (*model.ShortTermHistory, error) {
	row, err := s.stateRepo.GetShortTermHistory(ctx, sourceID)
	if err != nil {
		return nil, stateError("get short-term history", sourceID, err)
	}
	history := &model.ShortTermHistory{Values: map[string]map[string][]float64{}}
	if row == nil {
		return history, nil
	}
	if err := statecodec.Decode(row.Payload, history); err != nil {
		return nil, &model.AnalysisError{Op: "get short-term history", SourceID: sourceID, Err: err}
	}
	if history.Values == nil {
		history.Values = map[string]map[string][]float64{}
	}
	return history, nil
}

// GetLongTermAnomalies returns the anomalous patterns of a source; empty for a cold source
func (s *StateService) GetLongTermAnomalies(ctx context.Context, sourceID string) (*model.AnomalousPatterns, error) {
	row, err := s.stateRepo.GetAnomalousPatterns(ctx, sourceID)
	if err != nil {
		return nil, stateError("get anomalous patterns", sourceID, err)
	}
	patterns := &model.AnomalousPatterns{Patterns: map[string]map[string][]model.AnomalousPattern{}}
	if row == nil {
		return patterns, nil
	}
	if err := statecodec.Decode(row.Payload, patterns); err != nil {
		return nil, &model.AnalysisError{Op: "get anomalous patterns", SourceID: sourceID, Err: err}
	}
	if patterns.Patterns == nil {
		patterns.Patterns = map[string]map[string][]model.AnomalousPattern{}
	}
	return patterns, nil
}

// GetActiveClusters returns the non-evicted log clusters of a source
func (s *StateService) GetActiveClusters(ctx context.Context, sourceID string) ([]*model.LogAnalysisCluster, error) {
	rows, err := s.logRepo.ListActiveClusters(ctx, sourceID)
	if err != nil {
		return nil, stateError("get active clusters", sourceID, err)
	}
	clusters := make([]*model.LogAnalysisCluster, 0, len(rows))
	for _, row := range rows {
		clusters = append(clusters, mysql.ToLogClusterDomain(row))
	}
	return clusters, nil
}

// GetClusteredRecords returns the stored L1/L2 output of a source inside w
func (s *StateService) GetClusteredRecords(ctx context.Context, sourceID string, level model.ClusterLevel, w model.Window) ([]*model.ClusteredLogRecord, error) {
	rows, err := s.logRepo.ListClusteredRecords(ctx, sourceID, string(level), w.Start, w.End)
	if err != nil {
		return nil, &model.AnalysisError{Op: "get clustered records", SourceID: sourceID, Window: &w, Err: model.StoreError(err)}
	}
	records := make([]*model.ClusteredLogRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, mysql.ToClusteredLogDomain(row))
	}
	return records, nil
}

// saveTimeSeriesState compacts and upserts the three state rows of a source
func (s *StateService) saveTimeSeriesState(ctx context.Context, sourceID string, w model.Window, verdict *model.TimeSeriesVerdict) error {
	sums := verdict.CumulativeSums
	if sums == nil {
		sums = &model.CumulativeSums{}
	}
	windowStart, windowEnd := sums.WindowStart, sums.WindowEnd
	if windowStart.IsZero() || windowEnd.IsZero() {
		windowStart, windowEnd = w.Start, w.End
	}

	blob, err := statecodec.Encode(sums)
	if err != nil {
		return err
	}
	if err := s.stateRepo.UpsertCumulativeSums(ctx, sourceID, windowStart.UTC(), windowEnd.UTC(), blob); err != nil {
		return model.StoreError(err)
	}

	history := verdict.ShortTermHistory
	if history == nil {
		history = &model.ShortTermHistory{}
	}
	if blob, err = statecodec.Encode(history); err != nil {
		return err
	}
	if err := s.stateRepo.UpsertShortTermHistory(ctx, sourceID, blob); err != nil {
		return model.StoreError(err)
	}

	patterns := verdict.AnomalousPatterns
	if patterns == nil {
		patterns = &model.AnomalousPatterns{}
	}
	if blob, err = statecodec.Encode(patterns); err != nil {
		return err
	}
	if err := s.stateRepo.UpsertAnomalousPatterns(ctx, sourceID, blob); err != nil {
		return model.StoreError(err)
	}
	return nil
}

func stateError(op, sourceID string, err error) error {
	return &model.AnalysisError{Op: op, SourceID: sourceID, Err: model.StoreError(err)}
}
