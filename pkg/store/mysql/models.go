package mysql

import "verifier/pkg/store/mysql/model"

// Re-export types from model package so callers can stay on the mysql package

type (
	AnalysisTask                 = model.AnalysisTask
	AnalysisTaskEvent            = model.AnalysisTaskEvent
	VerificationTask             = model.VerificationTask
	VerificationJobInstance      = model.VerificationJobInstance
	HostRecord                   = model.HostRecord
	CumulativeSumsState          = model.CumulativeSumsState
	ShortTermHistoryState        = model.ShortTermHistoryState
	AnomalousPatternsState       = model.AnomalousPatternsState
	RiskSummary                  = model.RiskSummary
	LogAnalysisCluster           = model.LogAnalysisCluster
	LogAnalysisResult            = model.LogAnalysisResult
	ClusteredLogRecord           = model.ClusteredLogRecord
	DeploymentTimeSeriesAnalysis = model.DeploymentTimeSeriesAnalysis
	DeploymentLogAnalysis        = model.DeploymentLogAnalysis
	Anomaly                      = model.Anomaly
	HealthHeatmap                = model.HealthHeatmap

	JSONStringArray = model.JSONStringArray
)
