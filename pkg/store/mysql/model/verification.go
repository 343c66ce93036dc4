package model

import "time"

// VerificationTask MySQL model for verification_tasks table (monitored sources)
type VerificationTask struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID      string     `gorm:"column:source_id;type:varchar(128);not null;uniqueIndex:idx_source_id_unique" json:"source_id"`
	AccountID     string     `gorm:"column:account_id;type:varchar(128);not null;index:idx_account_id" json:"account_id"`
	OrgID         string     `gorm:"column:org_id;type:varchar(128)" json:"org_id"`
	ProjectID     string     `gorm:"column:project_id;type:varchar(128)" json:"project_id"`
	ServiceID     string     `gorm:"column:service_id;type:varchar(128)" json:"service_id"`
	EnvID         string     `gorm:"column:env_id;type:varchar(128)" json:"env_id"`
	Category      string     `gorm:"column:category;type:varchar(50)" json:"category"`
	JobInstanceID string     `gorm:"column:job_instance_id;type:varchar(128);index:idx_job_instance_id" json:"job_instance_id"`
	BaselineStart *time.Time `gorm:"column:baseline_start;type:datetime(3)" json:"baseline_start"`
	BaselineEnd   *time.Time `gorm:"column:baseline_end;type:datetime(3)" json:"baseline_end"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
}

// TableName specifies the table name for VerificationTask
func (VerificationTask) TableName() string {
	return "verification_tasks"
}

// VerificationJobInstance MySQL model for verification_job_instances table
type VerificationJobInstance struct {
	ID                     int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	InstanceID             string          `gorm:"column:instance_id;type:varchar(128);not null;uniqueIndex:idx_instance_id_unique" json:"instance_id"`
	AccountID              string          `gorm:"column:account_id;type:varchar(128);not null" json:"account_id"`
	VerificationType       string          `gorm:"column:verification_type;type:varchar(30);not null" json:"verification_type"`
	DeploymentStartTime    time.Time       `gorm:"column:deployment_start_time;type:datetime(3);not null" json:"deployment_start_time"`
	PreDeploymentStart     *time.Time      `gorm:"column:pre_deployment_start;type:datetime(3)" json:"pre_deployment_start"`
	PreDeploymentEnd       *time.Time      `gorm:"column:pre_deployment_end;type:datetime(3)" json:"pre_deployment_end"`
	TrafficSplitPercentage *int            `gorm:"column:traffic_split_percentage;type:int" json:"traffic_split_percentage"`
	BaselineRunInstanceID  string          `gorm:"column:baseline_run_instance_id;type:varchar(128)" json:"baseline_run_instance_id"`
	RunStartTime           *time.Time      `gorm:"column:run_start_time;type:datetime(3)" json:"run_start_time"`
	NewHosts               JSONStringArray `gorm:"column:new_hosts;type:json" json:"new_hosts"`
	OldHosts               JSONStringArray `gorm:"column:old_hosts;type:json" json:"old_hosts"`
	Namespace              string          `gorm:"column:namespace;type:varchar(128)" json:"namespace"`
	NewHostSelector        string          `gorm:"column:new_host_selector;type:varchar(512)" json:"new_host_selector"`
	OldHostSelector        string          `gorm:"column:old_host_selector;type:varchar(512)" json:"old_host_selector"`
	CreatedAt              time.Time       `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
}

// TableName specifies the table name for VerificationJobInstance
func (VerificationJobInstance) TableName() string {
	return "verification_job_instances"
}

// HostRecord MySQL model for host_records table
type HostRecord struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VerificationTaskID string    `gorm:"column:verification_task_id;type:varchar(128);not null;index:idx_source_time,priority:1" json:"verification_task_id"`
	Host               string    `gorm:"column:host;type:varchar(255);not null" json:"host"`
	StartTime          time.Time `gorm:"column:start_time;type:datetime(3);not null;index:idx_source_time,priority:2" json:"start_time"`
	EndTime            time.Time `gorm:"column:end_time;type:datetime(3);not null" json:"end_time"`
}

// TableName specifies the table name for HostRecord
func (HostRecord) TableName() string {
	return "host_records"
}
