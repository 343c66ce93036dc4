package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"verifier/internal/model"
	"verifier/pkg/logger"
	"verifier/pkg/metrics"
	"verifier/pkg/notification"
	"verifier/pkg/store/mysql"
	redisstore "verifier/pkg/store/redis"
)

// logGroupName groups log clusters listed on an anomaly
const logGroupName = "log"

// ResultService folds engine verdicts into the risk model
type ResultService struct {
	tx               transactor
	taskService      *TaskService
	stateService     *StateService
	summaryRepo      riskSummaryRepository
	logRepo          logAnalysisRepository
	deploymentRepo   deploymentAnalysisRepository
	verificationRepo verificationRepository
	anomalyService   *AnomalyService
	heatmapService   *HeatmapService
	notifier         anomalyNotifier
	locker           redisstore.SourceLocker
	now              func() time.Time
}

// NewResultService creates a new Result service. notifier may be nil.
func NewResultService(
	tx transactor,
	taskService *TaskService,
	stateService *StateService,
	summaryRepo riskSummaryRepository,
	logRepo logAnalysisRepository,
	deploymentRepo deploymentAnalysisRepository,
	verificationRepo verificationRepository,
	anomalyService *AnomalyService,
	heatmapService *HeatmapService,
	notifier anomalyNotifier,
	locker redisstore.SourceLocker,
) *ResultService {
	return &ResultService{
		tx:               tx,
		taskService:      taskService,
		stateService:     stateService,
		summaryRepo:      summaryRepo,
		logRepo:          logRepo,
		deploymentRepo:   deploymentRepo,
		verificationRepo: verificationRepo,
		anomalyService:   anomalyService,
		heatmapService:   heatmapService,
		notifier:         notifier,
		locker:           locker,
		now:              time.Now,
	}
}

// aggregation what one verdict produced, for the steps that run after commit
type aggregation struct {
	overallRisk float64
	hasRisk     bool
	transition  model.AnomalyTransition
	anomaly     *model.Anomaly
}

// SaveResult persists the verdict of taskID and marks the task SUCCESS. Everything up
// to and including the status change commits in one transaction; the heat-map update
// and the anomaly notification follow the commit.
func (s *ResultService) SaveResult(ctx context.Context, taskID string, body []byte) (*model.SaveResultResponse, error) {
	started := time.Now()

	task, err := s.taskService.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	w := task.Window()
	fail := func(err error) error {
		return &model.AnalysisError{Op: "save result", TaskID: task.ID, SourceID: task.VerificationTaskID, Window: &w, Err: err}
	}

	if task.Status == model.TaskStatusQueued || task.Status == model.TaskStatusFailed || task.Status == model.TaskStatusTimeout {
		logger.WarnCtx(ctx, "dropping verdict of analysis task %s: task is %s", task.ID, task.Status)
		return nil, fail(model.ErrTaskNotRunning)
	}

	verdict, err := decodeVerdict(task.Type, body)
	if err != nil {
		return nil, fail(err)
	}

	sourceRow, err := s.verificationRepo.GetTask(ctx, task.VerificationTaskID)
	if err != nil {
		return nil, fail(model.StoreError(err))
	}
	source := mysql.ToVerificationTaskDomain(sourceRow)

	unlock, err := s.locker.Lock(ctx, task.VerificationTaskID)
	if err != nil {
		return nil, fail(err)
	}
	defer unlock()

	var agg aggregation
	var completed bool
	err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		if agg, err = s.persist(ctx, task, source, verdict); err != nil {
			return err
		}
		if agg.hasRisk {
			agg.transition, agg.anomaly, err = s.anomalyService.Apply(ctx, task.AccountID, task.VerificationTaskID,
				task.WindowEnd, agg.overallRisk, anomalousMetrics(verdict))
			if err != nil {
				return err
			}
		}
		completed, err = s.taskService.completeTask(ctx, task.ID)
		return err
	})
	if err != nil {
		return nil, fail(err)
	}
	if completed {
		s.taskService.taskCompleted(task)
	}

	metrics.ResultDuration.WithLabelValues(string(task.Type)).Observe(time.Since(started).Seconds())
	resp := &model.SaveResultResponse{TaskID: task.ID, Status: model.TaskStatusSuccess}
	if !agg.hasRisk {
		return resp, nil
	}

	resp.OverallRisk = &agg.overallRisk
	metrics.OverallRisk.WithLabelValues(string(task.Type)).Observe(agg.overallRisk)
	logger.InfoCtx(ctx, "saved %s verdict of task %s for verification task %s window %s: overall risk %.3f",
		task.Type, task.ID, task.VerificationTaskID, w, agg.overallRisk)

	if source != nil {
		s.heatmapService.UpdateRiskScore(ctx, &model.RiskUpdate{
			AccountID:          source.AccountID,
			OrgID:              source.OrgID,
			ProjectID:          source.ProjectID,
			ServiceID:          source.ServiceID,
			EnvID:              source.EnvID,
			Category:           source.Category,
			VerificationTaskID: source.ID,
			WindowEnd:          task.WindowEnd,
			Risk:               agg.overallRisk,
		})
	}
	s.notify(ctx, source, agg)
	return resp, nil
}

// ListRiskSummaries returns the risk summaries of a source whose window ends inside w
func (s *ResultService) ListRiskSummaries(ctx context.Context, sourceID string, w model.Window) ([]*model.RiskSummary, error) {
	if !w.End.After(w.Start) {
		return nil, &model.AnalysisError{Op: "list risk summaries", SourceID: sourceID, Window: &w, Err: model.ErrInvalidWindow}
	}
	rows, err := s.summaryRepo.ListInRange(ctx, sourceID, w.Start, w.End)
	if err != nil {
		return nil, &model.AnalysisError{Op: "list risk summaries", SourceID: sourceID, Window: &w, Err: model.StoreError(err)}
	}
	summaries := make([]*model.RiskSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, mysql.ToRiskSummaryDomain(row))
	}
	return summaries, nil
}

// ListAnomalies returns the latest anomalies of a source
func (s *ResultService) ListAnomalies(ctx context.Context, sourceID string, limit int) ([]*model.Anomaly, error) {
	return s.anomalyService.ListAnomalies(ctx, sourceID, limit)
}

func (s *ResultService) notify(ctx context.Context, source *model.VerificationTask, agg aggregation) {
	if s.notifier == nil || agg.anomaly == nil {
		return
	}
	n := &notification.AnomalyNotification{
		Transition:  agg.transition,
		Anomaly:     agg.anomaly,
		OverallRisk: agg.overallRisk,
	}
	if source != nil {
		n.ServiceID = source.ServiceID
		n.EnvID = source.EnvID
		n.Category = source.Category
	}
	go func() {
		if err := s.notifier.NotifyAnomaly(context.Background(), n); err != nil {
			logger.WarnCtx(ctx, "failed to send anomaly notification: %v", err)
		}
	}()
}

// decodeVerdict returns the verdict variant matching taskType
func decodeVerdict(taskType model.TaskType, body []byte) (interface{}, error) {
	var verdict interface{}
	switch taskType {
	case model.TaskTypeContinuousTimeSeries:
		verdict = &model.TimeSeriesVerdict{}
	case model.TaskTypeContinuousLog:
		verdict = &model.LogVerdict{}
	case model.TaskTypeLogClusterL1, model.TaskTypeLogClusterL2:
		verdict = &model.ClusterVerdict{}
	case model.TaskTypeCanaryTimeSeries, model.TaskTypeLoadTestTimeSeries:
		verdict = &model.DeploymentTimeSeriesVerdict{}
	case model.TaskTypeDeploymentLog:
		verdict = &model.DeploymentLogVerdict{}
	default:
		return nil, model.ErrUnknownVerificationMode
	}
	if err := json.Unmarshal(body, verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidVerdict, err)
	}
	return verdict, nil
}

// persist writes the verdict rows and returns the window's overall risk
func (s *ResultService) persist(ctx context.Context, task *model.AnalysisTask, source *model.VerificationTask, verdict interface{}) (aggregation, error) {
	switch v := verdict.(type) {
	case *model.TimeSeriesVerdict:
		return s.persistTimeSeries(ctx, task, v)
	case *model.LogVerdict:
		return s.persistLog(ctx, task, v)
	case *model.ClusterVerdict:
		return aggregation{}, s.persistClusteredRecords(ctx, task, v)
	case *model.DeploymentTimeSeriesVerdict:
		return s.persistDeploymentTimeSeries(ctx, task, source, v)
	case *model.DeploymentLogVerdict:
		return s.persistDeploymentLog(ctx, task, source, v)
	}
	return aggregation{}, model.ErrUnknownVerificationMode
}

func (s *ResultService) persistTimeSeries(ctx context.Context, task *model.AnalysisTask, v *model.TimeSeriesVerdict) (aggregation, error) {
	if err := s.stateService.saveTimeSeriesState(ctx, task.VerificationTaskID, task.Window(), v); err != nil {
		return aggregation{}, err
	}

	summary := &model.RiskSummary{
		VerificationTaskID: task.VerificationTaskID,
		WindowStart:        task.WindowStart,
		WindowEnd:          task.WindowEnd,
		MetricRisks:        v.MetricRisks,
		CreatedAt:          s.now(),
	}
	summary.OverallRisk = summary.MaxRisk()
	if err := s.summaryRepo.ReplaceForWindow(ctx, mysql.FromRiskSummaryDomain(summary)); err != nil {
		return aggregation{}, model.StoreError(err)
	}
	return aggregation{overallRisk: summary.OverallRisk, hasRisk: true}, nil
}

func (s *ResultService) persistLog(ctx context.Context, task *model.AnalysisTask, v *model.LogVerdict) (aggregation, error) {
	clusters := make([]*mysql.LogAnalysisCluster, 0, len(v.Clusters))
	for i := range v.Clusters {
		if v.Clusters[i].IsEvicted {
			continue
		}
		row := mysql.FromLogClusterDomain(&v.Clusters[i])
		if row.WindowStart.IsZero() {
			row.WindowStart, row.WindowEnd = task.WindowStart, task.WindowEnd
		}
		clusters = append(clusters, row)
	}
	if err := s.logRepo.ReplaceActiveClusters(ctx, task.VerificationTaskID, clusters); err != nil {
		return aggregation{}, model.StoreError(err)
	}

	result := v.Result
	result.VerificationTaskID = task.VerificationTaskID
	result.WindowStart = task.WindowStart
	result.WindowEnd = task.WindowEnd
	result.OverallRisk = result.MaxRisk()
	if err := s.logRepo.ReplaceResult(ctx, mysql.FromLogResultDomain(&result)); err != nil {
		return aggregation{}, model.StoreError(err)
	}
	return aggregation{overallRisk: result.OverallRisk, hasRisk: true}, nil
}

func (s *ResultService) persistClusteredRecords(ctx context.Context, task *model.AnalysisTask, v *model.ClusterVerdict) error {
	level := model.ClusterLevelL1
	if task.Type == model.TaskTypeLogClusterL2 {
		level = model.ClusterLevelL2
	}

	records := make([]*mysql.ClusteredLogRecord, 0, len(v.Records))
	for i := range v.Records {
		row := mysql.FromClusteredLogDomain(&v.Records[i])
		if row.Timestamp.IsZero() {
			row.Timestamp = task.WindowStart
		}
		records = append(records, row)
	}
	err := s.logRepo.ReplaceClusteredRecords(ctx, task.VerificationTaskID, string(level), task.WindowStart, task.WindowEnd, records)
	return model.StoreError(err)
}

func (s *ResultService) persistDeploymentTimeSeries(ctx context.Context, task *model.AnalysisTask, source *model.VerificationTask, v *model.DeploymentTimeSeriesVerdict) (aggregation, error) {
	analysis := &model.DeploymentTimeSeriesAnalysis{
		VerificationTaskID:  task.VerificationTaskID,
		AccountID:           task.AccountID,
		WindowStart:         task.WindowStart,
		WindowEnd:           task.WindowEnd,
		OverallRisk:         v.MaxMetricScore(),
		Score:               v.Score,
		HostSummaries:       v.HostSummaries,
		OverallMetricScores: v.OverallMetricScores,
		CreatedAt:           s.now(),
	}
	if source != nil {
		analysis.VerificationJobID = source.JobInstanceID
	}
	if err := s.deploymentRepo.ReplaceTimeSeries(ctx, mysql.FromDeploymentTimeSeriesDomain(analysis)); err != nil {
		return aggregation{}, model.StoreError(err)
	}
	return aggregation{overallRisk: analysis.OverallRisk, hasRisk: true}, nil
}

func (s *ResultService) persistDeploymentLog(ctx context.Context, task *model.AnalysisTask, source *model.VerificationTask, v *model.DeploymentLogVerdict) (aggregation, error) {
	analysis := &model.DeploymentLogAnalysis{
		VerificationTaskID: task.VerificationTaskID,
		AccountID:          task.AccountID,
		WindowStart:        task.WindowStart,
		WindowEnd:          task.WindowEnd,
		OverallRisk:        v.OverallRisk,
		Score:              v.Score,
		HostSummaries:      v.HostSummaries,
		Clusters:           v.Clusters,
		CreatedAt:          s.now(),
	}
	if source != nil {
		analysis.VerificationJobID = source.JobInstanceID
	}
	if err := s.deploymentRepo.ReplaceLog(ctx, mysql.FromDeploymentLogDomain(analysis)); err != nil {
		return aggregation{}, model.StoreError(err)
	}
	return aggregation{overallRisk: analysis.OverallRisk, hasRisk: true}, nil
}

// anomalousMetrics lists every metric or cluster of the verdict with a risk above zero
func anomalousMetrics(verdict interface{}) []model.AnomalousMetric {
	var out []model.AnomalousMetric
	switch v := verdict.(type) {
	case *model.TimeSeriesVerdict:
		for _, m := range v.MetricRisks {
			if m.Risk > 0 {
				out = append(out, model.AnomalousMetric{GroupName: m.TransactionName, MetricName: m.MetricName, RiskScore: m.Risk})
			}
		}
	case *model.DeploymentTimeSeriesVerdict:
		for _, m := range v.OverallMetricScores {
			if m.Score > 0 {
				out = append(out, model.AnomalousMetric{GroupName: m.TransactionName, MetricName: m.MetricName, RiskScore: m.Score})
			}
		}
	case *model.LogVerdict:
		out = clusterMetrics(v.Result.ClusterRisks)
	case *model.DeploymentLogVerdict:
		out = clusterMetrics(v.Clusters)
	}
	return out
}

func clusterMetrics(clusters []model.ClusterRisk) []model.AnomalousMetric {
	var out []model.AnomalousMetric
	for _, c := range clusters {
		if c.Risk <= 0 {
			continue
		}
		name := c.Text
		if name == "" {
			name = strconv.FormatInt(c.Label, 10)
		}
		out = append(out, model.AnomalousMetric{GroupName: logGroupName, MetricName: name, RiskScore: c.Risk})
	}
	return out
}
