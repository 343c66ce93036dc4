package mysql

import (
	domain "verifier/internal/model"
	"verifier/pkg/store/mysql/model"
)

// ToAnalysisTaskDomain converts MySQL AnalysisTask to domain AnalysisTask
func ToAnalysisTaskDomain(row *AnalysisTask) *domain.AnalysisTask {
	if row == nil {
		return nil
	}

	return &domain.AnalysisTask{
		ID:                 row.TaskID,
		AccountID:          row.AccountID,
		VerificationTaskID: row.VerificationTaskID,
		Type:               domain.TaskType(row.TaskType),
		Status:             domain.TaskStatus(row.Status),
		Priority:           row.Priority,
		WindowStart:        row.WindowStart,
		WindowEnd:          row.WindowEnd,
		URLs: domain.CallbackURLs{
			InputData:     row.InputDataURL,
			PreviousState: row.PreviousStateURL,
			SaveResult:    row.SaveResultURL,
			ReportFailure: row.FailureURL,
		},
		Payload:       row.Payload.Data,
		CreatedAt:     row.CreatedAt,
		LastUpdatedAt: row.LastUpdatedAt,
	}
}

// FromAnalysisTaskDomain converts domain AnalysisTask to MySQL AnalysisTask
func FromAnalysisTaskDomain(task *domain.AnalysisTask) *AnalysisTask {
	if task == nil {
		return nil
	}

	return &AnalysisTask{
		TaskID:             task.ID,
		AccountID:          task.AccountID,
		VerificationTaskID: task.VerificationTaskID,
		TaskType:           string(task.Type),
		Status:             string(task.Status),
		Priority:           task.Priority,
		WindowStart:        task.WindowStart,
		WindowEnd:          task.WindowEnd,
		InputDataURL:       task.URLs.InputData,
		PreviousStateURL:   task.URLs.PreviousState,
		SaveResultURL:      task.URLs.SaveResult,
		FailureURL:         task.URLs.ReportFailure,
		Payload:            model.NewJSON(task.Payload),
		CreatedAt:          task.CreatedAt,
		LastUpdatedAt:      task.LastUpdatedAt,
	}
}

// ToVerificationTaskDomain converts MySQL VerificationTask to domain VerificationTask
func ToVerificationTaskDomain(row *VerificationTask) *domain.VerificationTask {
	if row == nil {
		return nil
	}

	return &domain.VerificationTask{
		ID:            row.SourceID,
		AccountID:     row.AccountID,
		OrgID:         row.OrgID,
		ProjectID:     row.ProjectID,
		ServiceID:     row.ServiceID,
		EnvID:         row.EnvID,
		Category:      row.Category,
		JobInstanceID: row.JobInstanceID,
		BaselineStart: row.BaselineStart,
		BaselineEnd:   row.BaselineEnd,
		CreatedAt:     row.CreatedAt,
	}
}

// FromVerificationTaskDomain converts domain VerificationTask to MySQL VerificationTask
func FromVerificationTaskDomain(task *domain.VerificationTask) *VerificationTask {
	if task == nil {
		return nil
	}

	return &VerificationTask{
		SourceID:      task.ID,
		AccountID:     task.AccountID,
		OrgID:         task.OrgID,
		ProjectID:     task.ProjectID,
		ServiceID:     task.ServiceID,
		EnvID:         task.EnvID,
		Category:      task.Category,
		JobInstanceID: task.JobInstanceID,
		BaselineStart: task.BaselineStart,
		BaselineEnd:   task.BaselineEnd,
		CreatedAt:     task.CreatedAt,
	}
}

// ToJobInstanceDomain converts MySQL VerificationJobInstance to domain VerificationJobInstance
func ToJobInstanceDomain(row *VerificationJobInstance) *domain.VerificationJobInstance {
	if row == nil {
		return nil
	}

	return &domain.VerificationJobInstance{
		ID:                     row.InstanceID,
		AccountID:              row.AccountID,
		VerificationType:       domain.VerificationType(row.VerificationType),
		DeploymentStartTime:    row.DeploymentStartTime,
		PreDeploymentStart:     row.PreDeploymentStart,
		PreDeploymentEnd:       row.PreDeploymentEnd,
		TrafficSplitPercentage: row.TrafficSplitPercentage,
		BaselineRunInstanceID:  row.BaselineRunInstanceID,
		RunStartTime:           row.RunStartTime,
		NewHosts:               []string(row.NewHosts),
		OldHosts:               []string(row.OldHosts),
		Namespace:              row.Namespace,
		NewHostSelector:        row.NewHostSelector,
		OldHostSelector:        row.OldHostSelector,
	}
}

// FromJobInstanceDomain converts domain VerificationJobInstance to MySQL VerificationJobInstance
func FromJobInstanceDomain(job *domain.VerificationJobInstance) *VerificationJobInstance {
	if job == nil {
		return nil
	}

	return &VerificationJobInstance{
		InstanceID:             job.ID,
		AccountID:              job.AccountID,
		VerificationType:       string(job.VerificationType),
		DeploymentStartTime:    job.DeploymentStartTime,
		PreDeploymentStart:     job.PreDeploymentStart,
		PreDeploymentEnd:       job.PreDeploymentEnd,
		TrafficSplitPercentage: job.TrafficSplitPercentage,
		BaselineRunInstanceID:  job.BaselineRunInstanceID,
		RunStartTime:           job.RunStartTime,
		NewHosts:               JSONStringArray(job.NewHosts),
		OldHosts:               JSONStringArray(job.OldHosts),
		Namespace:              job.Namespace,
		NewHostSelector:        job.NewHostSelector,
		OldHostSelector:        job.OldHostSelector,
	}
}

// ToHostRecordDomain converts MySQL HostRecord to domain HostRecord
func ToHostRecordDomain(row *HostRecord) *domain.HostRecord {
	if row == nil {
		return nil
	}
	return &domain.HostRecord{
		VerificationTaskID: row.VerificationTaskID,
		Host:               row.Host,
		StartTime:          row.StartTime,
		EndTime:            row.EndTime,
	}
}

// FromHostRecordDomain converts domain HostRecord to MySQL HostRecord
func FromHostRecordDomain(record *domain.HostRecord) *HostRecord {
	if record == nil {
		return nil
	}
	return &HostRecord{
		VerificationTaskID: record.VerificationTaskID,
		Host:               record.Host,
		StartTime:          record.StartTime,
		EndTime:            record.EndTime,
	}
}

// FromRiskSummaryDomain converts domain RiskSummary to MySQL RiskSummary
func FromRiskSummaryDomain(summary *domain.RiskSummary) *RiskSummary {
	if summary == nil {
		return nil
	}
	return &RiskSummary{
		VerificationTaskID: summary.VerificationTaskID,
		WindowStart:        summary.WindowStart,
		WindowEnd:          summary.WindowEnd,
		OverallRisk:        summary.OverallRisk,
		MetricRisks:        model.NewJSON(summary.MetricRisks),
		CreatedAt:          summary.CreatedAt,
	}
}

// ToRiskSummaryDomain converts MySQL RiskSummary to domain RiskSummary
func ToRiskSummaryDomain(row *RiskSummary) *domain.RiskSummary {
	if row == nil {
		return nil
	}
	return &domain.RiskSummary{
		VerificationTaskID: row.VerificationTaskID,
		WindowStart:        row.WindowStart,
		WindowEnd:          row.WindowEnd,
		OverallRisk:        row.OverallRisk,
		MetricRisks:        row.MetricRisks.Data,
		CreatedAt:          row.CreatedAt,
	}
}

// FromLogClusterDomain converts domain LogAnalysisCluster to MySQL LogAnalysisCluster
func FromLogClusterDomain(cluster *domain.LogAnalysisCluster) *LogAnalysisCluster {
	if cluster == nil {
		return nil
	}
	return &LogAnalysisCluster{
		VerificationTaskID: cluster.VerificationTaskID,
		Label:              cluster.Label,
		Text:               cluster.Text,
		Trend:              model.NewJSON(cluster.Trend),
		IsEvicted:          cluster.IsEvicted,
		WindowStart:        cluster.WindowStart,
		WindowEnd:          cluster.WindowEnd,
	}
}

// ToLogClusterDomain converts MySQL LogAnalysisCluster to domain LogAnalysisCluster
func ToLogClusterDomain(row *LogAnalysisCluster) *domain.LogAnalysisCluster {
	if row == nil {
		return nil
	}
	return &domain.LogAnalysisCluster{
		VerificationTaskID: row.VerificationTaskID,
		Label:              row.Label,
		Text:               row.Text,
		Trend:              row.Trend.Data,
		IsEvicted:          row.IsEvicted,
		WindowStart:        row.WindowStart,
		WindowEnd:          row.WindowEnd,
	}
}

// FromLogResultDomain converts domain LogAnalysisResult to MySQL LogAnalysisResult
func FromLogResultDomain(result *domain.LogAnalysisResult) *LogAnalysisResult {
	if result == nil {
		return nil
	}
	return &LogAnalysisResult{
		VerificationTaskID: result.VerificationTaskID,
		WindowStart:        result.WindowStart,
		WindowEnd:          result.WindowEnd,
		OverallRisk:        result.OverallRisk,
		Score:              result.Score,
		ClusterRisks:       model.NewJSON(result.ClusterRisks),
	}
}

// FromClusteredLogDomain converts domain ClusteredLogRecord to MySQL ClusteredLogRecord
func FromClusteredLogDomain(record *domain.ClusteredLogRecord) *ClusteredLogRecord {
	if record == nil {
		return nil
	}
	return &ClusteredLogRecord{
		VerificationTaskID: record.VerificationTaskID,
		Level:              string(record.Level),
		Host:               record.Host,
		Timestamp:          record.Timestamp,
		Label:              record.Label,
		Text:               record.Text,
		Count:              record.Count,
	}
}

// FromDeploymentTimeSeriesDomain converts domain DeploymentTimeSeriesAnalysis to its MySQL model
func FromDeploymentTimeSeriesDomain(analysis *domain.DeploymentTimeSeriesAnalysis) *DeploymentTimeSeriesAnalysis {
	if analysis == nil {
		return nil
	}
	return &DeploymentTimeSeriesAnalysis{
		VerificationTaskID:  analysis.VerificationTaskID,
		JobInstanceID:       analysis.VerificationJobID,
		AccountID:           analysis.AccountID,
		WindowStart:         analysis.WindowStart,
		WindowEnd:           analysis.WindowEnd,
		OverallRisk:         analysis.OverallRisk,
		Score:               analysis.Score,
		HostSummaries:       model.NewJSON(analysis.HostSummaries),
		OverallMetricScores: model.NewJSON(analysis.OverallMetricScores),
		CreatedAt:           analysis.CreatedAt,
	}
}

// ToDeploymentTimeSeriesDomain converts MySQL DeploymentTimeSeriesAnalysis to its domain model
func ToDeploymentTimeSeriesDomain(row *DeploymentTimeSeriesAnalysis) *domain.DeploymentTimeSeriesAnalysis {
	if row == nil {
		return nil
	}
	return &domain.DeploymentTimeSeriesAnalysis{
		VerificationTaskID:  row.VerificationTaskID,
		VerificationJobID:   row.JobInstanceID,
		AccountID:           row.AccountID,
		WindowStart:         row.WindowStart,
		WindowEnd:           row.WindowEnd,
		OverallRisk:         row.OverallRisk,
		Score:               row.Score,
		HostSummaries:       row.HostSummaries.Data,
		OverallMetricScores: row.OverallMetricScores.Data,
		CreatedAt:           row.CreatedAt,
	}
}

// FromDeploymentLogDomain converts domain DeploymentLogAnalysis to its MySQL model
func FromDeploymentLogDomain(analysis *domain.DeploymentLogAnalysis) *DeploymentLogAnalysis {
	if analysis == nil {
		return nil
	}
	return &DeploymentLogAnalysis{
		VerificationTaskID: analysis.VerificationTaskID,
		JobInstanceID:      analysis.VerificationJobID,
		AccountID:          analysis.AccountID,
		WindowStart:        analysis.WindowStart,
		WindowEnd:          analysis.WindowEnd,
		OverallRisk:        analysis.OverallRisk,
		Score:              analysis.Score,
		HostSummaries:      model.NewJSON(analysis.HostSummaries),
		Clusters:           model.NewJSON(analysis.Clusters),
		CreatedAt:          analysis.CreatedAt,
	}
}

// ToDeploymentLogDomain converts MySQL DeploymentLogAnalysis to its domain model
func ToDeploymentLogDomain(row *DeploymentLogAnalysis) *domain.DeploymentLogAnalysis {
	if row == nil {
		return nil
	}
	return &domain.DeploymentLogAnalysis{
		VerificationTaskID: row.VerificationTaskID,
		VerificationJobID:  row.JobInstanceID,
		AccountID:          row.AccountID,
		WindowStart:        row.WindowStart,
		WindowEnd:          row.WindowEnd,
		OverallRisk:        row.OverallRisk,
		Score:              row.Score,
		HostSummaries:      row.HostSummaries.Data,
		Clusters:           row.Clusters.Data,
		CreatedAt:          row.CreatedAt,
	}
}

// ToAnomalyDomain converts MySQL Anomaly to domain Anomaly
func ToAnomalyDomain(row *Anomaly) *domain.Anomaly {
	if row == nil {
		return nil
	}
	return &domain.Anomaly{
		ID:                 row.ID,
		AccountID:          row.AccountID,
		VerificationTaskID: row.VerificationTaskID,
		Status:             domain.AnomalyStatus(row.Status),
		StartTime:          row.StartTime,
		EndTime:            row.EndTime,
		Metrics:            row.Metrics.Data,
	}
}

// FromAnomalyDomain converts domain Anomaly to MySQL Anomaly
func FromAnomalyDomain(anomaly *domain.Anomaly) *Anomaly {
	if anomaly == nil {
		return nil
	}
	return &Anomaly{
		ID:                 anomaly.ID,
		AccountID:          anomaly.AccountID,
		VerificationTaskID: anomaly.VerificationTaskID,
		Status:             string(anomaly.Status),
		StartTime:          anomaly.StartTime,
		EndTime:            anomaly.EndTime,
		Metrics:            model.NewJSON(anomaly.Metrics),
	}
}

// ToClusteredLogDomain converts MySQL ClusteredLogRecord to domain ClusteredLogRecord
func ToClusteredLogDomain(row *ClusteredLogRecord) *domain.ClusteredLogRecord {
	if row == nil {
		return nil
	}
	return &domain.ClusteredLogRecord{
		VerificationTaskID: row.VerificationTaskID,
		Level:              domain.ClusterLevel(row.Level),
		Host:               row.Host,
		Timestamp:          row.Timestamp,
		Label:              row.Label,
		Text:               row.Text,
		Count:              row.Count,
	}
}

// ToTaskEventDomain converts an event row
func ToTaskEventDomain(row *AnalysisTaskEvent) *domain.TaskEvent {
	return &domain.TaskEvent{
		TaskID:     row.TaskID,
		EventType:  row.EventType,
		FromStatus: domain.TaskStatus(row.FromStatus),
		ToStatus:   domain.TaskStatus(row.ToStatus),
		Message:    row.Message,
		EventTime:  row.EventTime,
	}
}
