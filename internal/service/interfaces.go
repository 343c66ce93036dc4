package service

import (
	"context"
	"time"

	"verifier/internal/model"
	"verifier/pkg/notification"
	"verifier/pkg/store/mysql"
)

// transactor runs fn inside a store transaction bound to ctx
type transactor interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type analysisTaskRepository interface {
	CreateBatch(ctx context.Context, tasks []*mysql.AnalysisTask) error
	Get(ctx context.Context, taskID string) (*mysql.AnalysisTask, error)
	ClaimNext(ctx context.Context, taskTypes []string) (*mysql.AnalysisTask, error)
	TimeoutStaleRunning(ctx context.Context, cutoff time.Time) (int64, error)
	GetStatuses(ctx context.Context, taskIDs []string) (map[string]string, error)
	MarkTerminal(ctx context.Context, taskID, status string) (bool, error)
	ExistsInFlight(ctx context.Context, verificationTaskID, taskType string) (bool, error)
}

type taskEventRepository interface {
	RecordEvent(ctx context.Context, event *mysql.AnalysisTaskEvent) error
	GetTaskEvents(ctx context.Context, taskID string) ([]*mysql.AnalysisTaskEvent, error)
}

type stateRepository interface {
	UpsertCumulativeSums(ctx context.Context, sourceID string, windowStart, windowEnd time.Time, payload []byte) error
	UpsertShortTermHistory(ctx context.Context, sourceID string, payload []byte) error
	UpsertAnomalousPatterns(ctx context.Context, sourceID string, payload []byte) error
	GetCumulativeSums(ctx context.Context, sourceID string) (*mysql.CumulativeSumsState, error)
	GetShortTermHistory(ctx context.Context, sourceID string) (*mysql.ShortTermHistoryState, error)
	GetAnomalousPatterns(ctx context.Context, sourceID string) (*mysql.AnomalousPatternsState, error)
}

type riskSummaryRepository interface {
	ReplaceForWindow(ctx context.Context, summary *mysql.RiskSummary) error
	ListInRange(ctx context.Context, sourceID string, start, end time.Time) ([]*mysql.RiskSummary, error)
}

type logAnalysisRepository interface {
	ReplaceActiveClusters(ctx context.Context, sourceID string, clusters []*mysql.LogAnalysisCluster) error
	ListActiveClusters(ctx context.Context, sourceID string) ([]*mysql.LogAnalysisCluster, error)
	ReplaceResult(ctx context.Context, result *mysql.LogAnalysisResult) error
	ReplaceClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time, records []*mysql.ClusteredLogRecord) error
	CountClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time) (int64, error)
	ListClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time) ([]*mysql.ClusteredLogRecord, error)
}

type deploymentAnalysisRepository interface {
	ReplaceTimeSeries(ctx context.Context, analysis *mysql.DeploymentTimeSeriesAnalysis) error
	ReplaceLog(ctx context.Context, analysis *mysql.DeploymentLogAnalysis) error
	LatestTimeSeries(ctx context.Context, jobInstanceID string) ([]*mysql.DeploymentTimeSeriesAnalysis, error)
	LatestLog(ctx context.Context, jobInstanceID string) ([]*mysql.DeploymentLogAnalysis, error)
}

type anomalyRepository interface {
	FindOpenForUpdate(ctx context.Context, accountID, sourceID string) (*mysql.Anomaly, error)
	Create(ctx context.Context, anomaly *mysql.Anomaly) error
	Update(ctx context.Context, anomaly *mysql.Anomaly) error
	ListBySource(ctx context.Context, sourceID string, limit int) ([]*mysql.Anomaly, error)
}

type heatmapRepository interface {
	UpsertMax(ctx context.Context, bucket *mysql.HealthHeatmap) error
	MaxRiskByCategory(ctx context.Context, accountID, orgID, projectID, serviceID, envID string, start, end time.Time) ([]mysql.HeatmapCategoryRisk, error)
}

type verificationRepository interface {
	GetTask(ctx context.Context, sourceID string) (*mysql.VerificationTask, error)
	SaveTask(ctx context.Context, task *mysql.VerificationTask) error
	ListTasksByJobInstance(ctx context.Context, jobInstanceID string) ([]*mysql.VerificationTask, error)
	GetJobInstance(ctx context.Context, instanceID string) (*mysql.VerificationJobInstance, error)
	SaveJobInstance(ctx context.Context, job *mysql.VerificationJobInstance) error
	CreateHostRecords(ctx context.Context, records []*mysql.HostRecord) error
	ListHostsInRange(ctx context.Context, sourceIDs []string, start, end time.Time) ([]string, error)
}

// logRecordCounter counts raw log records per minute; nil means every minute has records
type logRecordCounter interface {
	CountPerMinute(ctx context.Context, sourceID string, w model.Window) (map[time.Time]int64, error)
}

// hostResolver fills deployment host sets from label selectors
type hostResolver interface {
	ResolveHosts(ctx context.Context, job *model.VerificationJobInstance) (bool, error)
}

// riskQueue delivers heat-map updates asynchronously
type riskQueue interface {
	EnqueueRiskUpdate(ctx context.Context, update *model.RiskUpdate) error
}

// riskMirror copies heat-map points to a time-series database
type riskMirror interface {
	WriteRisk(ctx context.Context, update *model.RiskUpdate, bucketStart time.Time) error
}

// anomalyNotifier announces anomaly transitions
type anomalyNotifier interface {
	NotifyAnomaly(ctx context.Context, n *notification.AnomalyNotification) error
}

var (
	_ transactor                   = (*mysql.Datastore)(nil)
	_ analysisTaskRepository       = (*mysql.AnalysisTaskRepository)(nil)
	_ taskEventRepository          = (*mysql.AnalysisTaskEventRepository)(nil)
	_ stateRepository              = (*mysql.StateRepository)(nil)
	_ riskSummaryRepository        = (*mysql.RiskSummaryRepository)(nil)
	_ logAnalysisRepository        = (*mysql.LogAnalysisRepository)(nil)
	_ deploymentAnalysisRepository = (*mysql.DeploymentAnalysisRepository)(nil)
	_ anomalyRepository            = (*mysql.AnomalyRepository)(nil)
	_ heatmapRepository            = (*mysql.HeatmapRepository)(nil)
	_ verificationRepository       = (*mysql.VerificationRepository)(nil)
	_ anomalyNotifier              = (*notification.FeishuNotifier)(nil)
)
