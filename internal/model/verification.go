package model

import "time"

// VerificationType deployment verification strategy
type VerificationType string

const (
	VerificationCanary    VerificationType = "CANARY"
	VerificationBlueGreen VerificationType = "BLUE_GREEN"
	VerificationLoadTest  VerificationType = "LOAD_TEST"
	VerificationHealth    VerificationType = "HEALTH"
)

// HostLabels the names the view uses for the two host cohorts
func (v VerificationType) HostLabels() (pre, post string) {
	if v == VerificationBlueGreen {
		return "active", "inactive"
	}
	return "primary", "canary"
}

// VerificationTask a monitored source: one configured metric or log data source
type VerificationTask struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"accountId"`
	OrgID         string     `json:"orgId"`
	ProjectID     string     `json:"projectId"`
	ServiceID     string     `json:"serviceId"`
	EnvID         string     `json:"envId"`
	Category      string     `json:"category"`
	JobInstanceID string     `json:"verificationJobInstanceId,omitempty"`
	BaselineStart *time.Time `json:"baselineStart,omitempty"`
	BaselineEnd   *time.Time `json:"baselineEnd,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// BaselineWindow returns the configured baseline range, if any
func (v *VerificationTask) BaselineWindow() (Window, bool) {
	if v.BaselineStart == nil || v.BaselineEnd == nil {
		return Window{}, false
	}
	return Window{Start: *v.BaselineStart, End: *v.BaselineEnd}, true
}

// VerificationJobInstance resolved verification job configuration of one deployment
type VerificationJobInstance struct {
	ID                     string           `json:"id"`
	AccountID              string           `json:"accountId"`
	VerificationType       VerificationType `json:"verificationType"`
	DeploymentStartTime    time.Time        `json:"deploymentStartTime"`
	PreDeploymentStart     *time.Time       `json:"preDeploymentStart,omitempty"`
	PreDeploymentEnd       *time.Time       `json:"preDeploymentEnd,omitempty"`
	TrafficSplitPercentage *int             `json:"trafficSplitPercentage,omitempty"`
	BaselineRunInstanceID  string           `json:"baselineRunInstanceId,omitempty"`
	RunStartTime           *time.Time       `json:"runStartTime,omitempty"`
	NewHosts               []string         `json:"newHosts,omitempty"`
	OldHosts               []string         `json:"oldHosts,omitempty"`
	Namespace              string           `json:"namespace,omitempty"`
	NewHostSelector        string           `json:"newHostSelector,omitempty"`
	OldHostSelector        string           `json:"oldHostSelector,omitempty"`
}

// PreDeploymentWindow returns the pre-deployment range, if configured
func (j *VerificationJobInstance) PreDeploymentWindow() (Window, bool) {
	if j.PreDeploymentStart == nil || j.PreDeploymentEnd == nil || !j.PreDeploymentEnd.After(*j.PreDeploymentStart) {
		return Window{}, false
	}
	return Window{Start: *j.PreDeploymentStart, End: *j.PreDeploymentEnd}, true
}

// HostRecord a host observed for a source during a time range
type HostRecord struct {
	VerificationTaskID string    `json:"verificationTaskId"`
	Host               string    `json:"host" binding:"required"`
	StartTime          time.Time `json:"startTime" binding:"required"`
	EndTime            time.Time `json:"endTime" binding:"required"`
}

// HostInfo one host of the canary / blue-green view
type HostInfo struct {
	Host                      string  `json:"hostName"`
	Risk                      Risk    `json:"risk"`
	RiskScore                 float64 `json:"riskScore"`
	AnomalousMetricsCount     int     `json:"anomalousMetricsCount"`
	AnomalousLogClustersCount int     `json:"anomalousLogClustersCount"`
	IsPrimary                 bool    `json:"primary"`
	IsCanary                  bool    `json:"canary"`
}

// TrafficSplit pre/post deployment traffic percentages
type TrafficSplit struct {
	PreDeploymentPercentage  int `json:"preDeploymentPercentage"`
	PostDeploymentPercentage int `json:"postDeploymentPercentage"`
}

// CanaryBlueGreenInfo host classification view consumed by rollback decisions
type CanaryBlueGreenInfo struct {
	VerificationType    VerificationType `json:"verificationType"`
	PrimaryInstanceName string           `json:"primaryInstancesLabel"`
	CanaryInstanceName  string           `json:"canaryInstancesLabel"`
	PrimaryHosts        []HostInfo       `json:"primary"`
	CanaryHosts         []HostInfo       `json:"canary"`
	TrafficSplit        *TrafficSplit    `json:"trafficSplitPercentage,omitempty"`
}

// CategoryRisk aggregated risk of one heat-map category
type CategoryRisk struct {
	Category string  `json:"category"`
	Risk     float64 `json:"risk"`
}

// HealthInfo pre/post activity category risks of a health verification
type HealthInfo struct {
	PreActivityRisks  []CategoryRisk `json:"preActivityRisks"`
	PostActivityRisks []CategoryRisk `json:"postActivityRisks"`
}

// RiskUpdate a heat-map update for one source window
type RiskUpdate struct {
	AccountID          string    `json:"accountId"`
	OrgID              string    `json:"orgId"`
	ProjectID          string    `json:"projectId"`
	ServiceID          string    `json:"serviceId"`
	EnvID              string    `json:"envId"`
	Category           string    `json:"category"`
	VerificationTaskID string    `json:"verificationTaskId"`
	WindowEnd          time.Time `json:"windowEnd"`
	Risk               float64   `json:"risk"`
}

// DispatchMode verification mode of a dispatch request
type DispatchMode string

const (
	ModeServiceGuardTimeSeries DispatchMode = "SERVICE_GUARD_TIME_SERIES"
	ModeServiceGuardLog        DispatchMode = "SERVICE_GUARD_LOG"
	ModeCanaryTimeSeries       DispatchMode = "CANARY_TIME_SERIES"
	ModeBlueGreenTimeSeries    DispatchMode = "BLUE_GREEN_TIME_SERIES"
	ModeLoadTestTimeSeries     DispatchMode = "LOAD_TEST_TIME_SERIES"
	ModeLogClusterL1           DispatchMode = "LOG_CLUSTER_L1"
	ModeLogClusterL2           DispatchMode = "LOG_CLUSTER_L2"
	ModeDeploymentLog          DispatchMode = "DEPLOYMENT_LOG"
)

// WindowRequest a (monitored source, time range) pair to dispatch
type WindowRequest struct {
	VerificationTaskID string       `json:"verificationTaskId"`
	Mode               DispatchMode `json:"mode" binding:"required"`
	StartTime          time.Time    `json:"startTime" binding:"required"`
	EndTime            time.Time    `json:"endTime" binding:"required"`
}

// DispatchResponse ids of the enqueued tasks
type DispatchResponse struct {
	TaskIDs []string `json:"taskIds"`
}
