package model

import "time"

// AnomalyStatus open/closed
type AnomalyStatus string

const (
	AnomalyStatusOpen   AnomalyStatus = "OPEN"
	AnomalyStatusClosed AnomalyStatus = "CLOSED"
)

// AnomalousMetric metric listed on an open anomaly
type AnomalousMetric struct {
	GroupName  string  `json:"groupName"`
	MetricName string  `json:"metricName"`
	RiskScore  float64 `json:"riskScore"`
}

// Anomaly at most one open anomaly exists per (account, monitored source)
type Anomaly struct {
	ID                 int64             `json:"id"`
	AccountID          string            `json:"accountId"`
	VerificationTaskID string            `json:"verificationTaskId"`
	Status             AnomalyStatus     `json:"status"`
	StartTime          time.Time         `json:"startTime"`
	EndTime            time.Time         `json:"endTime"`
	Metrics            []AnomalousMetric `json:"anomalousMetrics"`
}

// AnomalyTransition outcome of one aggregation step
type AnomalyTransition string

const (
	AnomalyOpened    AnomalyTransition = "OPENED"
	AnomalyRefreshed AnomalyTransition = "REFRESHED"
	AnomalyClosed    AnomalyTransition = "CLOSED"
	AnomalyUnchanged AnomalyTransition = "UNCHANGED"
)
