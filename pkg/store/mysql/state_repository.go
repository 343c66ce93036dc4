package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateRepository persists the compressed per-source time-series state.
// Each table holds at most one row per verification task.
type StateRepository struct {
	ds *Datastore
}

// NewStateRepository creates a new state repository
func NewStateRepository(ds *Datastore) *StateRepository {
	return &StateRepository{ds: ds}
}

func sourceConflict(columns ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "verification_task_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

// UpsertCumulativeSums replaces the cumulative sums of a source
func (r *StateRepository) UpsertCumulativeSums(ctx context.Context, sourceID string, windowStart, windowEnd time.Time, payload []byte) error {
	now := r.ds.Now()
	row := &CumulativeSumsState{
		VerificationTaskID: sourceID,
		WindowStart:        windowStart,
		WindowEnd:          windowEnd,
		Payload:            payload,
		CreatedAt:          now,
		LastUpdatedAt:      now,
	}
	err := r.ds.DB(ctx).
		Clauses(sourceConflict("window_start", "window_end", "payload", "last_updated_at")).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert cumulative sums: %w", err)
	}
	return nil
}

// UpsertShortTermHistory replaces the short-term history of a source
func (r *StateRepository) UpsertShortTermHistory(ctx context.Context, sourceID string, payload []byte) error {
	now := r.ds.Now()
	row := &ShortTermHistoryState{
		VerificationTaskID: sourceID,
		Payload:            payload,
		CreatedAt:          now,
		LastUpdatedAt:      now,
	}
	err := r.ds.DB(ctx).
		Clauses(sourceConflict("payload", "last_updated_at")).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert short-term history: %w", err)
	}
	return nil
}

// UpsertAnomalousPatterns replaces the anomalous patterns of a source
func (r *StateRepository) UpsertAnomalousPatterns(ctx context.Context, sourceID string, payload []byte) error {
	now := r.ds.Now()
	row := &AnomalousPatternsState{
		VerificationTaskID: sourceID,
		Payload:            payload,
		CreatedAt:          now,
		LastUpdatedAt:      now,
	}
	err := r.ds.DB(ctx).
		Clauses(sourceConflict("payload", "last_updated_at")).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert anomalous patterns: %w", err)
	}
	return nil
}

// GetCumulativeSums returns the stored row, nil when the source is cold
func (r *StateRepository) GetCumulativeSums(ctx context.Context, sourceID string) (*CumulativeSumsState, error) {
	var row CumulativeSumsState
	found, err := r.first(ctx, sourceID, &row)
	if err != nil || !found {
		return nil, err
	}
	return &row, nil
}

// GetShortTermHistory returns the stored row, nil when the source is cold
func (r *StateRepository) GetShortTermHistory(ctx context.Context, sourceID string) (*ShortTermHistoryState, error) {
	var row ShortTermHistoryState
	found, err := r.first(ctx, sourceID, &row)
	if err != nil || !found {
		return nil, err
	}
	return &row, nil
}

// GetAnomalousPatterns returns the stored row, nil when the source is cold
func (r *StateRepository) GetAnomalousPatterns(ctx context.Context, sourceID string) (*AnomalousPatternsState, error) {
	var row AnomalousPatternsState
	found, err := r.first(ctx, sourceID, &row)
	if err != nil || !found {
		return nil, err
	}
	return &row, nil
}

func (r *StateRepository) first(ctx context.Context, sourceID string, dest interface{}) (bool, error) {
	err := r.ds.DB(ctx).Where("verification_task_id = ?", sourceID).First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get state: %w", err)
	}
	return true, nil
}

// RiskSummaryRepository handles time-series risk summaries
type RiskSummaryRepository struct {
	ds *Datastore
}

// NewRiskSummaryRepository creates a new risk summary repository
func NewRiskSummaryRepository(ds *Datastore) *RiskSummaryRepository {
	return &RiskSummaryRepository{ds: ds}
}

// Create inserts a risk summary
func (r *RiskSummaryRepository) Create(ctx context.Context, summary *RiskSummary) error {
	if err := r.ds.DB(ctx).Create(summary).Error; err != nil {
		return fmt.Errorf("failed to create risk summary: %w", err)
	}
	return nil
}

// ReplaceForWindow deletes any summary of the same source window and inserts summary
func (r *RiskSummaryRepository) ReplaceForWindow(ctx context.Context, summary *RiskSummary) error {
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND window_start = ? AND window_end = ?",
			summary.VerificationTaskID, summary.WindowStart, summary.WindowEnd).
		Delete(&RiskSummary{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete risk summary: %w", err)
	}
	return r.Create(ctx, summary)
}

// ListInRange returns the summaries of a source whose window ends in (start, end]
func (r *RiskSummaryRepository) ListInRange(ctx context.Context, sourceID string, start, end time.Time) ([]*RiskSummary, error) {
	var summaries []*RiskSummary
	err := r.ds.DB(ctx).
		Where("verification_task_id = ? AND window_end > ? AND window_end <= ?", sourceID, start, end).
		Order("window_end ASC").
		Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list risk summaries: %w", err)
	}
	return summaries, nil
}
