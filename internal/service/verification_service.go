package service

import (
	"context"
	"sort"
	"time"

	"verifier/internal/model"
	"verifier/pkg/logger"
	"verifier/pkg/store/mysql"
)

// VerificationService registers monitored sources and job instances, and composes the
// deployment risk views consumed by rollback decisions
type VerificationService struct {
	verificationRepo verificationRepository
	deploymentRepo   deploymentAnalysisRepository
	heatmapService   *HeatmapService
	resolver         hostResolver
	thresholds       model.RiskThresholds
	now              func() time.Time
}

// NewVerificationService creates a new Verification service. resolver may be nil.
func NewVerificationService(
	verificationRepo verificationRepository,
	deploymentRepo deploymentAnalysisRepository,
	heatmapService *HeatmapService,
	resolver hostResolver,
	thresholds model.RiskThresholds,
) *VerificationService {
	return &VerificationService{
		verificationRepo: verificationRepo,
		deploymentRepo:   deploymentRepo,
		heatmapService:   heatmapService,
		resolver:         resolver,
		thresholds:       thresholds,
		now:              time.Now,
	}
}

// SaveVerificationTask registers or updates a monitored source
func (s *VerificationService) SaveVerificationTask(ctx context.Context, task *model.VerificationTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.now()
	}
	if err := s.verificationRepo.SaveTask(ctx, mysql.FromVerificationTaskDomain(task)); err != nil {
		return &model.AnalysisError{Op: "save verification task", SourceID: task.ID, Err: model.StoreError(err)}
	}
	return nil
}

// GetVerificationTask returns a monitored source or ErrUnknownSource
func (s *VerificationService) GetVerificationTask(ctx context.Context, sourceID string) (*model.VerificationTask, error) {
	row, err := s.verificationRepo.GetTask(ctx, sourceID)
	if err != nil {
		return nil, &model.AnalysisError{Op: "get verification task", SourceID: sourceID, Err: model.StoreError(err)}
	}
	if row == nil {
		return nil, &model.AnalysisError{Op: "get verification task", SourceID: sourceID, Err: model.ErrUnknownSource}
	}
	return mysql.ToVerificationTaskDomain(row), nil
}

// SaveJobInstance registers a job instance. Empty host lists are resolved from the
// pod selectors, and resolved old hosts are recorded for the pre-deployment window of
// every source already attached to the job.
func (s *VerificationService) SaveJobInstance(ctx context.Context, job *model.VerificationJobInstance) error {
	resolved := false
	if s.resolver != nil {
		var err error
		if resolved, err = s.resolver.ResolveHosts(ctx, job); err != nil {
			logger.WarnCtx(ctx, "failed to resolve hosts of job instance %s: %v", job.ID, err)
		}
	}

	if err := s.verificationRepo.SaveJobInstance(ctx, mysql.FromJobInstanceDomain(job)); err != nil {
		return &model.AnalysisError{Op: "save job instance", Err: model.StoreError(err)}
	}

	pre, ok := job.PreDeploymentWindow()
	if !resolved || !ok || len(job.OldHosts) == 0 {
		return nil
	}
	sources, err := s.verificationRepo.ListTasksByJobInstance(ctx, job.ID)
	if err != nil {
		return &model.AnalysisError{Op: "snapshot hosts", Err: model.StoreError(err)}
	}
	var records []*mysql.HostRecord
	for _, source := range sources {
		for _, host := range job.OldHosts {
			records = append(records, &mysql.HostRecord{
				VerificationTaskID: source.SourceID,
				Host:               host,
				StartTime:          pre.Start,
				EndTime:            pre.End,
			})
		}
	}
	if len(records) == 0 {
		return nil
	}
	if err := s.verificationRepo.CreateHostRecords(ctx, records); err != nil {
		return &model.AnalysisError{Op: "snapshot hosts", Window: &pre, Err: model.StoreError(err)}
	}
	logger.InfoCtx(ctx, "recorded %d pre-deployment hosts for job instance %s", len(records), job.ID)
	return nil
}

// AddHostRecords stores hosts observed for a source
func (s *VerificationService) AddHostRecords(ctx context.Context, sourceID string, records []*model.HostRecord) error {
	if _, err := s.GetVerificationTask(ctx, sourceID); err != nil {
		return err
	}
	rows := make([]*mysql.HostRecord, 0, len(records))
	for _, record := range records {
		if !record.EndTime.After(record.StartTime) {
			w := model.Window{Start: record.StartTime, End: record.EndTime}
			return &model.AnalysisError{Op: "add host records", SourceID: sourceID, Window: &w, Err: model.ErrInvalidWindow}
		}
		record.VerificationTaskID = sourceID
		rows = append(rows, mysql.FromHostRecordDomain(record))
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.verificationRepo.CreateHostRecords(ctx, rows); err != nil {
		return &model.AnalysisError{Op: "add host records", SourceID: sourceID, Err: model.StoreError(err)}
	}
	return nil
}

func (s *VerificationService) jobInstance(ctx context.Context, accountID, instanceID string) (*model.VerificationJobInstance, error) {
	row, err := s.verificationRepo.GetJobInstance(ctx, instanceID)
	if err != nil {
		return nil, model.StoreError(err)
	}
	if row == nil || (accountID != "" && row.AccountID != accountID) {
		return nil, model.ErrUnknownJobInstance
	}
	return mysql.ToJobInstanceDomain(row), nil
}

func (s *VerificationService) latestAnalyses(ctx context.Context, instanceID string) ([]*model.DeploymentTimeSeriesAnalysis, []*model.DeploymentLogAnalysis, error) {
	tsRows, err := s.deploymentRepo.LatestTimeSeries(ctx, instanceID)
	if err != nil {
		return nil, nil, model.StoreError(err)
	}
	logRows, err := s.deploymentRepo.LatestLog(ctx, instanceID)
	if err != nil {
		return nil, nil, model.StoreError(err)
	}

	timeSeries := make([]*model.DeploymentTimeSeriesAnalysis, 0, len(tsRows))
	for _, row := range tsRows {
		timeSeries = append(timeSeries, mysql.ToDeploymentTimeSeriesDomain(row))
	}
	logs := make([]*model.DeploymentLogAnalysis, 0, len(logRows))
	for _, row := range logRows {
		logs = append(logs, mysql.ToDeploymentLogDomain(row))
	}
	return timeSeries, logs, nil
}

// GetLatestRisk returns the higher of the latest time-series and log risk of a job
// instance, or nil when neither kind has produced a result yet
func (s *VerificationService) GetLatestRisk(ctx context.Context, accountID, instanceID string) (*model.Risk, error) {
	fail := func(err error) error {
		return &model.AnalysisError{Op: "get latest risk", Err: err}
	}
	if _, err := s.jobInstance(ctx, accountID, instanceID); err != nil {
		return nil, fail(err)
	}
	timeSeries, logs, err := s.latestAnalyses(ctx, instanceID)
	if err != nil {
		return nil, fail(err)
	}
	if len(timeSeries) == 0 && len(logs) == 0 {
		return nil, nil
	}

	latest := model.RiskNoAnalysis
	for _, a := range timeSeries {
		if r := s.thresholds.Classify(a.OverallRisk); r > latest {
			latest = r
		}
	}
	for _, a := range logs {
		if r := s.thresholds.Classify(a.OverallRisk); r > latest {
			latest = r
		}
	}
	return &latest, nil
}

// hostSet keeps hosts in first-seen order
type hostSet struct {
	order []string
	hosts map[string]*model.HostInfo
}

func newHostSet() *hostSet {
	return &hostSet{hosts: map[string]*model.HostInfo{}}
}

func (h *hostSet) set(info *model.HostInfo) {
	if _, ok := h.hosts[info.Host]; !ok {
		h.order = append(h.order, info.Host)
	}
	h.hosts[info.Host] = info
}

// merge keeps the higher risk; a tie keeps the existing entry. Anomalous counts of
// both kinds are carried over.
func (h *hostSet) merge(info *model.HostInfo) {
	existing, ok := h.hosts[info.Host]
	if !ok {
		h.set(info)
		return
	}
	metricsCount := existing.AnomalousMetricsCount + info.AnomalousMetricsCount
	clustersCount := existing.AnomalousLogClustersCount + info.AnomalousLogClustersCount
	if info.RiskScore > existing.RiskScore {
		existing.Risk = info.Risk
		existing.RiskScore = info.RiskScore
	}
	existing.AnomalousMetricsCount = metricsCount
	existing.AnomalousLogClustersCount = clustersCount
}

func (h *hostSet) list() []model.HostInfo {
	out := make([]model.HostInfo, 0, len(h.order))
	for _, host := range h.order {
		out = append(out, *h.hosts[host])
	}
	return out
}

// GetCanaryOrBlueGreenInfo builds the primary / canary host classification of a job instance
func (s *VerificationService) GetCanaryOrBlueGreenInfo(ctx context.Context, accountID, instanceID string) (*model.CanaryBlueGreenInfo, error) {
	fail := func(err error) error {
		return &model.AnalysisError{Op: "get canary info", Err: err}
	}
	job, err := s.jobInstance(ctx, accountID, instanceID)
	if err != nil {
		return nil, fail(err)
	}

	primary := newHostSet()
	if pre, ok := job.PreDeploymentWindow(); ok {
		sources, err := s.verificationRepo.ListTasksByJobInstance(ctx, instanceID)
		if err != nil {
			return nil, fail(model.StoreError(err))
		}
		sourceIDs := make([]string, 0, len(sources))
		for _, source := range sources {
			sourceIDs = append(sourceIDs, source.SourceID)
		}
		if len(sourceIDs) > 0 {
			hosts, err := s.verificationRepo.ListHostsInRange(ctx, sourceIDs, pre.Start, pre.End)
			if err != nil {
				return nil, fail(model.StoreError(err))
			}
			sort.Strings(hosts)
			for _, host := range hosts {
				primary.set(&model.HostInfo{Host: host, Risk: model.RiskNoAnalysis, RiskScore: -1, IsPrimary: true})
			}
		}
	}

	timeSeries, logs, err := s.latestAnalyses(ctx, instanceID)
	if err != nil {
		return nil, fail(err)
	}

	canary := newHostSet()
	for _, analysis := range timeSeries {
		for _, summary := range analysis.HostSummaries {
			info := &model.HostInfo{
				Host:                  summary.Host,
				Risk:                  s.thresholds.Classify(summary.Risk),
				RiskScore:             summary.Risk,
				AnomalousMetricsCount: s.countAnomalousMetrics(summary.MetricRisks),
				IsPrimary:             summary.IsPrimary,
				IsCanary:              summary.IsCanary,
			}
			switch {
			case summary.IsPrimary:
				primary.set(info)
			case summary.IsCanary:
				canary.merge(info)
			}
		}
	}
	for _, analysis := range logs {
		for _, summary := range analysis.HostSummaries {
			if summary.IsPrimary {
				continue
			}
			canary.merge(&model.HostInfo{
				Host:                      summary.Host,
				Risk:                      s.thresholds.Classify(summary.Risk),
				RiskScore:                 summary.Risk,
				AnomalousLogClustersCount: s.countAnomalousClusters(summary.ClusterRisks),
				IsCanary:                  true,
			})
		}
	}

	preLabel, postLabel := job.VerificationType.HostLabels()
	info := &model.CanaryBlueGreenInfo{
		VerificationType:    job.VerificationType,
		PrimaryInstanceName: preLabel,
		CanaryInstanceName:  postLabel,
		PrimaryHosts:        primary.list(),
		CanaryHosts:         canary.list(),
	}
	if job.TrafficSplitPercentage != nil {
		split := *job.TrafficSplitPercentage
		info.TrafficSplit = &model.TrafficSplit{
			PreDeploymentPercentage:  100 - split,
			PostDeploymentPercentage: split,
		}
	}

	if len(info.CanaryHosts) == 0 && len(info.PrimaryHosts) > 0 {
		logger.DebugCtx(ctx, "no canary hosts for job instance %s, promoting %d primary hosts", instanceID, len(info.PrimaryHosts))
		info.CanaryHosts = make([]model.HostInfo, len(info.PrimaryHosts))
		copy(info.CanaryHosts, info.PrimaryHosts)
		for i := range info.CanaryHosts {
			info.CanaryHosts[i].IsPrimary = false
			info.CanaryHosts[i].IsCanary = true
		}
	}
	return info, nil
}

func (s *VerificationService) countAnomalousMetrics(risks []model.HostMetricRisk) int {
	count := 0
	for _, r := range risks {
		if s.thresholds.Classify(r.Risk) >= model.RiskObserve {
			count++
		}
	}
	return count
}

func (s *VerificationService) countAnomalousClusters(risks []model.ClusterRisk) int {
	count := 0
	for _, r := range risks {
		if s.thresholds.Classify(r.Risk) >= model.RiskObserve {
			count++
		}
	}
	return count
}

// GetHealthInfo returns the heat-map category risks before and after the activity of
// a health verification. Without a configured pre-deployment range the pre-activity
// range mirrors the post-activity duration.
func (s *VerificationService) GetHealthInfo(ctx context.Context, sourceID string) (*model.HealthInfo, error) {
	source, err := s.GetVerificationTask(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	fail := func(err error) error {
		return &model.AnalysisError{Op: "get health info", SourceID: sourceID, Err: err}
	}
	job, err := s.jobInstance(ctx, "", source.JobInstanceID)
	if err != nil {
		return nil, fail(err)
	}

	post := model.Window{Start: job.DeploymentStartTime, End: s.now()}
	if !post.End.After(post.Start) {
		return nil, fail(model.ErrInvalidWindow)
	}
	pre, ok := job.PreDeploymentWindow()
	if !ok {
		pre = model.Window{Start: post.Start.Add(-post.End.Sub(post.Start)), End: post.Start}
	}

	preRisks, err := s.heatmapService.CategoryRisks(ctx, source, pre)
	if err != nil {
		return nil, fail(err)
	}
	postRisks, err := s.heatmapService.CategoryRisks(ctx, source, post)
	if err != nil {
		return nil, fail(err)
	}
	return &model.HealthInfo{PreActivityRisks: preRisks, PostActivityRisks: postRisks}, nil
}
