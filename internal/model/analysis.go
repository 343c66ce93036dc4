package model

import "time"

// MetricRisk risk of one transaction/metric pair in a window
type MetricRisk struct {
	TransactionName   string  `json:"transactionName"`
	MetricName        string  `json:"metricName"`
	Risk              float64 `json:"risk"`
	Score             float64 `json:"score"`
	LastSeenTime      int64   `json:"lastSeenTime"`
	IsLongTermPattern bool    `json:"isLongTermPattern"`
}

// RiskSummary one per (monitored source, window)
type RiskSummary struct {
	VerificationTaskID string       `json:"verificationTaskId"`
	WindowStart        time.Time    `json:"windowStart"`
	WindowEnd          time.Time    `json:"windowEnd"`
	OverallRisk        float64      `json:"overallRisk"`
	MetricRisks        []MetricRisk `json:"transactionMetricRisks"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// MaxRisk returns the highest metric risk, 0 for an empty list
func (s *RiskSummary) MaxRisk() float64 {
	max := 0.0
	for i, m := range s.MetricRisks {
		if i == 0 || m.Risk > max {
			max = m.Risk
		}
	}
	return max
}

// FrequencyPoint one point of a cluster trend
type FrequencyPoint struct {
	Timestamp int64 `json:"timestamp"`
	Count     int   `json:"count"`
}

// LogAnalysisCluster a clustered log pattern; Label is stable across windows until evicted
type LogAnalysisCluster struct {
	VerificationTaskID string           `json:"verificationTaskId"`
	Label              int64            `json:"label"`
	Text               string           `json:"text"`
	Trend              []FrequencyPoint `json:"trend"`
	IsEvicted          bool             `json:"isEvicted"`
	WindowStart        time.Time        `json:"windowStart"`
	WindowEnd          time.Time        `json:"windowEnd"`
}

// ClusterRisk risk of one cluster in a window
type ClusterRisk struct {
	Label int64   `json:"label"`
	Text  string  `json:"text,omitempty"`
	Risk  float64 `json:"risk"`
	Count int     `json:"count"`
}

// LogAnalysisResult per window log verdict
type LogAnalysisResult struct {
	VerificationTaskID string        `json:"verificationTaskId"`
	WindowStart        time.Time     `json:"windowStart"`
	WindowEnd          time.Time     `json:"windowEnd"`
	OverallRisk        float64       `json:"overallRisk"`
	Score              float64       `json:"score"`
	ClusterRisks       []ClusterRisk `json:"logAnalysisClusters"`
}

// MaxRisk returns the highest cluster risk, or OverallRisk when no cluster is present
func (r *LogAnalysisResult) MaxRisk() float64 {
	if len(r.ClusterRisks) == 0 {
		return r.OverallRisk
	}
	max := r.ClusterRisks[0].Risk
	for _, c := range r.ClusterRisks[1:] {
		if c.Risk > max {
			max = c.Risk
		}
	}
	return max
}

// ClusteredLogRecord output record of an L1/L2 clustering task
type ClusteredLogRecord struct {
	VerificationTaskID string       `json:"verificationTaskId"`
	Level              ClusterLevel `json:"level"`
	Host               string       `json:"host"`
	Timestamp          time.Time    `json:"timestamp"`
	Label              int64        `json:"label"`
	Text               string       `json:"text"`
	Count              int          `json:"count"`
}

// HostMetricRisk per host per metric risk
type HostMetricRisk struct {
	TransactionName string  `json:"transactionName"`
	MetricName      string  `json:"metricName"`
	Risk            float64 `json:"risk"`
	Score           float64 `json:"score"`
}

// HostTimeSeriesSummary per host verdict of a deployment time-series analysis
type HostTimeSeriesSummary struct {
	Host        string           `json:"host"`
	IsPrimary   bool             `json:"isPrimary"`
	IsCanary    bool             `json:"isCanary"`
	Risk        float64          `json:"risk"`
	Score       float64          `json:"score"`
	MetricRisks []HostMetricRisk `json:"metricRisks"`
}

// MetricScore engine-reported overall score of one metric
type MetricScore struct {
	TransactionName string  `json:"transactionName"`
	MetricName      string  `json:"metricName"`
	Score           float64 `json:"score"`
}

// DeploymentTimeSeriesAnalysis canary / blue-green / load-test verdict for a window
type DeploymentTimeSeriesAnalysis struct {
	VerificationTaskID  string                  `json:"verificationTaskId"`
	VerificationJobID   string                  `json:"verificationJobInstanceId"`
	AccountID           string                  `json:"accountId"`
	WindowStart         time.Time               `json:"windowStart"`
	WindowEnd           time.Time               `json:"windowEnd"`
	OverallRisk         float64                 `json:"overallRisk"`
	Score               float64                 `json:"score"`
	HostSummaries       []HostTimeSeriesSummary `json:"hostSummaries"`
	OverallMetricScores []MetricScore           `json:"overallMetricScores"`
	CreatedAt           time.Time               `json:"createdAt"`
}

// HostLogSummary per host verdict of a deployment log analysis
type HostLogSummary struct {
	Host         string        `json:"host"`
	IsPrimary    bool          `json:"isPrimary"`
	Risk         float64       `json:"risk"`
	ClusterRisks []ClusterRisk `json:"clusterRisks"`
}

// DeploymentLogAnalysis deployment log verdict for a window
type DeploymentLogAnalysis struct {
	VerificationTaskID string           `json:"verificationTaskId"`
	VerificationJobID  string           `json:"verificationJobInstanceId"`
	AccountID          string           `json:"accountId"`
	WindowStart        time.Time        `json:"windowStart"`
	WindowEnd          time.Time        `json:"windowEnd"`
	OverallRisk        float64          `json:"overallRisk"`
	Score              float64          `json:"score"`
	HostSummaries      []HostLogSummary `json:"hostSummaries"`
	Clusters           []ClusterRisk    `json:"clusters"`
	CreatedAt          time.Time        `json:"createdAt"`
}
