package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerificationRepository handles monitored sources, job instances and host records
type VerificationRepository struct {
	ds *Datastore
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(ds *Datastore) *VerificationRepository {
	return &VerificationRepository{ds: ds}
}

// GetTask retrieves a monitored source by id
func (r *VerificationRepository) GetTask(ctx context.Context, sourceID string) (*VerificationTask, error) {
	var task VerificationTask
	err := r.ds.DB(ctx).Where("source_id = ?", sourceID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get verification task: %w", err)
	}
	return &task, nil
}

// SaveTask creates or updates a monitored source
func (r *VerificationRepository) SaveTask(ctx context.Context, task *VerificationTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = r.ds.Now()
	}
	err := r.ds.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"account_id", "org_id", "project_id", "service_id", "env_id",
				"category", "job_instance_id", "baseline_start", "baseline_end",
			}),
		}).
		Create(task).Error
	if err != nil {
		return fmt.Errorf("failed to save verification task: %w", err)
	}
	return nil
}

// ListTasksByJobInstance returns the monitored sources of a job instance
func (r *VerificationRepository) ListTasksByJobInstance(ctx context.Context, jobInstanceID string) ([]*VerificationTask, error) {
	var tasks []*VerificationTask
	err := r.ds.DB(ctx).
		Where("job_instance_id = ?", jobInstanceID).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list verification tasks: %w", err)
	}
	return tasks, nil
}

// GetJobInstance retrieves a job instance by id
func (r *VerificationRepository) GetJobInstance(ctx context.Context, instanceID string) (*VerificationJobInstance, error) {
	var job VerificationJobInstance
	err := r.ds.DB(ctx).Where("instance_id = ?", instanceID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job instance: %w", err)
	}
	return &job, nil
}

// SaveJobInstance creates or updates a job instance
func (r *VerificationRepository) SaveJobInstance(ctx context.Context, job *VerificationJobInstance) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.ds.Now()
	}
	err := r.ds.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "instance_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"verification_type", "deployment_start_time", "pre_deployment_start", "pre_deployment_end",
				"traffic_split_percentage", "baseline_run_instance_id", "run_start_time",
				"new_hosts", "old_hosts", "namespace", "new_host_selector", "old_host_selector",
			}),
		}).
		Create(job).Error
	if err != nil {
		return fmt.Errorf("failed to save job instance: %w", err)
	}
	return nil
}

// CreateHostRecords inserts host records
func (r *VerificationRepository) CreateHostRecords(ctx context.Context, records []*HostRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := r.ds.DB(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to create host records: %w", err)
	}
	return nil
}

// ListHostsInRange returns the distinct hosts a source reported overlapping [start, end)
func (r *VerificationRepository) ListHostsInRange(ctx context.Context, sourceIDs []string, start, end time.Time) ([]string, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	var hosts []string
	err := r.ds.DB(ctx).Model(&HostRecord{}).
		Distinct("host").
		Where("verification_task_id IN ? AND start_time < ? AND end_time > ?", sourceIDs, end, start).
		Order("host ASC").
		Pluck("host", &hosts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	return hosts, nil
}
