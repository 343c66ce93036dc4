package model

import (
	"fmt"
	"time"
)

// TaskPayload mode-specific task parameters. Exactly one variant is set and it
// must match the task type; consumers switch on AnalysisTask.Type.
type TaskPayload struct {
	ServiceGuardTimeSeries *ServiceGuardTimeSeriesPayload `json:"serviceGuardTimeSeries,omitempty"`
	ServiceGuardLog        *ServiceGuardLogPayload        `json:"serviceGuardLog,omitempty"`
	LogCluster             *LogClusterPayload             `json:"logCluster,omitempty"`
	DeploymentTimeSeries   *DeploymentTimeSeriesPayload   `json:"deploymentTimeSeries,omitempty"`
	LoadTest               *LoadTestPayload               `json:"loadTest,omitempty"`
	DeploymentLog          *DeploymentLogPayload          `json:"deploymentLog,omitempty"`
}

// ServiceGuardTimeSeriesPayload continuous time-series parameters
type ServiceGuardTimeSeriesPayload struct {
	DataLength           int    `json:"dataLength"`
	TestDataURL          string `json:"testDataUrl"`
	CumulativeSumsURL    string `json:"cumulativeSumsUrl"`
	AnomalousPatternsURL string `json:"anomalousPatternsUrl"`
	ShortTermHistoryURL  string `json:"shortTermHistoryUrl"`
	MetricTemplateURL    string `json:"metricTemplateUrl"`
}

// ServiceGuardLogPayload continuous log parameters
type ServiceGuardLogPayload struct {
	BaselineWindow      bool   `json:"baselineWindow"`
	TestDataURL         string `json:"testDataUrl"`
	PreviousClustersURL string `json:"previousClustersUrl"`
}

// LogClusterPayload L1/L2 clustering parameters
type LogClusterPayload struct {
	Level       ClusterLevel `json:"level"`
	TestDataURL string       `json:"testDataUrl"`
}

// DeploymentTimeSeriesPayload canary / blue-green parameters
type DeploymentTimeSeriesPayload struct {
	VerificationType       VerificationType `json:"verificationType"`
	DataLength             int              `json:"dataLength"`
	PreDeploymentDataURL   string           `json:"preDeploymentDataUrl"`
	PostDeploymentDataURL  string           `json:"postDeploymentDataUrl"`
	MetricTemplateURL      string           `json:"metricTemplateUrl"`
	DeploymentStartTime    time.Time        `json:"deploymentStartTime"`
	NewHosts               []string         `json:"newHosts"`
	OldHosts               []string         `json:"oldHosts"`
	TrafficSplitPercentage *int             `json:"trafficSplitPercentage,omitempty"`
}

// LoadTestPayload load-test parameters
type LoadTestPayload struct {
	DataLength        int    `json:"dataLength"`
	TestDataURL       string `json:"testDataUrl"`
	BaselineDataURL   string `json:"baselineDataUrl,omitempty"`
	MetricTemplateURL string `json:"metricTemplateUrl"`
}

// DeploymentLogPayload deployment log parameters
type DeploymentLogPayload struct {
	VerificationType VerificationType `json:"verificationType"`
	ControlDataURL   string           `json:"controlDataUrl"`
	TestDataURL      string           `json:"testDataUrl"`
	NewHosts         []string         `json:"newHosts"`
	OldHosts         []string         `json:"oldHosts"`
}

// ClusterLevel log clustering stage
type ClusterLevel string

const (
	ClusterLevelL1 ClusterLevel = "L1"
	ClusterLevelL2 ClusterLevel = "L2"
)

// Validate checks that exactly the variant matching taskType is set
func (p TaskPayload) Validate(taskType TaskType) error {
	set := 0
	var match bool
	check := func(present bool, tt ...TaskType) {
		if !present {
			return
		}
		set++
		for _, t := range tt {
			if t == taskType {
				match = true
			}
		}
	}
	check(p.ServiceGuardTimeSeries != nil, TaskTypeContinuousTimeSeries)
	check(p.ServiceGuardLog != nil, TaskTypeContinuousLog)
	check(p.LogCluster != nil, TaskTypeLogClusterL1, TaskTypeLogClusterL2)
	check(p.DeploymentTimeSeries != nil, TaskTypeCanaryTimeSeries)
	check(p.LoadTest != nil, TaskTypeLoadTestTimeSeries)
	check(p.DeploymentLog != nil, TaskTypeDeploymentLog)

	if set != 1 || !match {
		return fmt.Errorf("payload does not match task type %s (%d variants set)", taskType, set)
	}
	return nil
}
