package model

// TimeSeriesVerdict engine output for a continuous time-series task
type TimeSeriesVerdict struct {
	MetricRisks       []MetricRisk       `json:"transactionMetricRisks"`
	CumulativeSums    *CumulativeSums    `json:"cumulativeSums"`
	ShortTermHistory  *ShortTermHistory  `json:"shortTermHistory"`
	AnomalousPatterns *AnomalousPatterns `json:"anomalousPatterns"`
}

// LogVerdict engine output for a continuous log task
type LogVerdict struct {
	Clusters []LogAnalysisCluster `json:"clusters"`
	Result   LogAnalysisResult    `json:"result"`
}

// ClusterVerdict engine output for an L1/L2 clustering task
type ClusterVerdict struct {
	Records []ClusteredLogRecord `json:"records"`
}

// DeploymentTimeSeriesVerdict engine output for canary, blue-green and load-test tasks
type DeploymentTimeSeriesVerdict struct {
	Score               float64                 `json:"score"`
	HostSummaries       []HostTimeSeriesSummary `json:"hostSummaries"`
	OverallMetricScores []MetricScore           `json:"overallMetricScores"`
}

// MaxMetricScore returns the highest engine-reported overall metric score
func (v *DeploymentTimeSeriesVerdict) MaxMetricScore() float64 {
	max := 0.0
	for i, s := range v.OverallMetricScores {
		if i == 0 || s.Score > max {
			max = s.Score
		}
	}
	return max
}

// DeploymentLogVerdict engine output for a deployment log task
type DeploymentLogVerdict struct {
	Score         float64          `json:"score"`
	OverallRisk   float64          `json:"overallRisk"`
	HostSummaries []HostLogSummary `json:"hostSummaries"`
	Clusters      []ClusterRisk    `json:"clusters"`
}

// SaveResultResponse returned to the engine after a verdict is folded in
type SaveResultResponse struct {
	TaskID      string     `json:"taskId"`
	Status      TaskStatus `json:"status"`
	OverallRisk *float64   `json:"overallRisk,omitempty"`
}
