package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"verifier/internal/model"
	"verifier/pkg/callback"
	"verifier/pkg/config"
	"verifier/pkg/notification"
	"verifier/pkg/store/mysql"
	redisstore "verifier/pkg/store/redis"
)

var errStoreDown = errors.New("connection refused")

// mockClock is a settable clock shared by services and mocks
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockTaskRepo in-memory analysis task store. ClaimNext is serialised by mu, standing
// in for the row lock of the real store.
type mockTaskRepo struct {
	mu        sync.Mutex
	clock     *mockClock
	seq       int64
	tasks     map[string]*mysql.AnalysisTask
	createErr error
	markCalls int
}

func newMockTaskRepo(clock *mockClock) *mockTaskRepo {
	return &mockTaskRepo{clock: clock, tasks: map[string]*mysql.AnalysisTask{}}
}

func (m *mockTaskRepo) CreateBatch(ctx context.Context, tasks []*mysql.AnalysisTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, t := range tasks {
		m.seq++
		row := *t
		row.ID = m.seq
		m.tasks[row.TaskID] = &row
	}
	return nil
}

func (m *mockTaskRepo) Get(ctx context.Context, taskID string) (*mysql.AnalysisTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tasks[taskID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *mockTaskRepo) ClaimNext(ctx context.Context, taskTypes []string) (*mysql.AnalysisTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*mysql.AnalysisTask
	for _, row := range m.tasks {
		if row.Status != string(model.TaskStatusQueued) {
			continue
		}
		if len(taskTypes) > 0 && !contains(taskTypes, row.TaskType) {
			continue
		}
		candidates = append(candidates, row)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	row := candidates[0]
	row.Status = string(model.TaskStatusRunning)
	row.LastUpdatedAt = m.clock.Now()
	cp := *row
	return &cp, nil
}

func (m *mockTaskRepo) TimeoutStaleRunning(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range m.tasks {
		if row.Status == string(model.TaskStatusRunning) && row.LastUpdatedAt.Before(cutoff) {
			row.Status = string(model.TaskStatusTimeout)
			row.LastUpdatedAt = m.clock.Now()
			n++
		}
	}
	return n, nil
}

func (m *mockTaskRepo) GetStatuses(ctx context.Context, taskIDs []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, id := range taskIDs {
		if row, ok := m.tasks[id]; ok {
			out[id] = row.Status
		}
	}
	return out, nil
}

func (m *mockTaskRepo) MarkTerminal(ctx context.Context, taskID, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	row, ok := m.tasks[taskID]
	if !ok || row.Status != string(model.TaskStatusRunning) {
		return false, nil
	}
	row.Status = status
	row.LastUpdatedAt = m.clock.Now()
	return true, nil
}

func (m *mockTaskRepo) ExistsInFlight(ctx context.Context, verificationTaskID, taskType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tasks {
		if row.VerificationTaskID == verificationTaskID && row.TaskType == taskType &&
			(row.Status == string(model.TaskStatusQueued) || row.Status == string(model.TaskStatusRunning)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTaskRepo) setStatus(taskID string, status model.TaskStatus, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[taskID].Status = string(status)
	m.tasks[taskID].LastUpdatedAt = updatedAt
}

func (m *mockTaskRepo) status(taskID string) model.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.TaskStatus(m.tasks[taskID].Status)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type mockEventRepo struct {
	mu     sync.Mutex
	events []*mysql.AnalysisTaskEvent
}

func (m *mockEventRepo) RecordEvent(ctx context.Context, event *mysql.AnalysisTaskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventRepo) GetTaskEvents(ctx context.Context, taskID string) ([]*mysql.AnalysisTaskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*mysql.AnalysisTaskEvent
	for _, e := range m.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockStateRepo struct {
	sums      map[string]*mysql.CumulativeSumsState
	histories map[string]*mysql.ShortTermHistoryState
	patterns  map[string]*mysql.AnomalousPatternsState
	upsertErr error
}

func newMockStateRepo() *mockStateRepo {
	return &mockStateRepo{
		sums:      map[string]*mysql.CumulativeSumsState{},
		histories: map[string]*mysql.ShortTermHistoryState{},
		patterns:  map[string]*mysql.AnomalousPatternsState{},
	}
}

func (m *mockStateRepo) UpsertCumulativeSums(ctx context.Context, sourceID string, windowStart, windowEnd time.Time, payload []byte) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.sums[sourceID] = &mysql.CumulativeSumsState{VerificationTaskID: sourceID, WindowStart: windowStart, WindowEnd: windowEnd, Payload: payload}
	return nil
}

func (m *mockStateRepo) UpsertShortTermHistory(ctx context.Context, sourceID string, payload []byte) error {
	m.histories[sourceID] = &mysql.ShortTermHistoryState{VerificationTaskID: sourceID, Payload: payload}
	return nil
}

func (m *mockStateRepo) UpsertAnomalousPatterns(ctx context.Context, sourceID string, payload []byte) error {
	m.patterns[sourceID] = &mysql.AnomalousPatternsState{VerificationTaskID: sourceID, Payload: payload}
	return nil
}

func (m *mockStateRepo) GetCumulativeSums(ctx context.Context, sourceID string) (*mysql.CumulativeSumsState, error) {
	return m.sums[sourceID], nil
}

func (m *mockStateRepo) GetShortTermHistory(ctx context.Context, sourceID string) (*mysql.ShortTermHistoryState, error) {
	return m.histories[sourceID], nil
}

func (m *mockStateRepo) GetAnomalousPatterns(ctx context.Context, sourceID string) (*mysql.AnomalousPatternsState, error) {
	return m.patterns[sourceID], nil
}

type mockSummaryRepo struct {
	summaries []*mysql.RiskSummary
}

func (m *mockSummaryRepo) ReplaceForWindow(ctx context.Context, summary *mysql.RiskSummary) error {
	kept := m.summaries[:0]
	for _, s := range m.summaries {
		if s.VerificationTaskID == summary.VerificationTaskID && s.WindowStart.Equal(summary.WindowStart) && s.WindowEnd.Equal(summary.WindowEnd) {
			continue
		}
		kept = append(kept, s)
	}
	m.summaries = append(kept, summary)
	return nil
}

func (m *mockSummaryRepo) ListInRange(ctx context.Context, sourceID string, start, end time.Time) ([]*mysql.RiskSummary, error) {
	var out []*mysql.RiskSummary
	for _, s := range m.summaries {
		if s.VerificationTaskID == sourceID && s.WindowEnd.After(start) && !s.WindowEnd.After(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockLogRepo struct {
	clusters []*mysql.LogAnalysisCluster
	results  []*mysql.LogAnalysisResult
	records  []*mysql.ClusteredLogRecord
}

func (m *mockLogRepo) ReplaceActiveClusters(ctx context.Context, sourceID string, clusters []*mysql.LogAnalysisCluster) error {
	kept := m.clusters[:0]
	for _, c := range m.clusters {
		if c.VerificationTaskID == sourceID && !c.IsEvicted {
			continue
		}
		kept = append(kept, c)
	}
	for _, c := range clusters {
		c.VerificationTaskID = sourceID
	}
	m.clusters = append(kept, clusters...)
	return nil
}

func (m *mockLogRepo) ListActiveClusters(ctx context.Context, sourceID string) ([]*mysql.LogAnalysisCluster, error) {
	var out []*mysql.LogAnalysisCluster
	for _, c := range m.clusters {
		if c.VerificationTaskID == sourceID && !c.IsEvicted {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockLogRepo) ReplaceResult(ctx context.Context, result *mysql.LogAnalysisResult) error {
	kept := m.results[:0]
	for _, r := range m.results {
		if r.VerificationTaskID == result.VerificationTaskID && r.WindowStart.Equal(result.WindowStart) && r.WindowEnd.Equal(result.WindowEnd) {
			continue
		}
		kept = append(kept, r)
	}
	m.results = append(kept, result)
	return nil
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}

func (m *mockLogRepo) ReplaceClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time, records []*mysql.ClusteredLogRecord) error {
	kept := m.records[:0]
	for _, r := range m.records {
		if r.VerificationTaskID == sourceID && r.Level == level && inRange(r.Timestamp, start, end) {
			continue
		}
		kept = append(kept, r)
	}
	for _, r := range records {
		r.VerificationTaskID = sourceID
		r.Level = level
	}
	m.records = append(kept, records...)
	return nil
}

func (m *mockLogRepo) CountClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time) (int64, error) {
	rows, _ := m.ListClusteredRecords(ctx, sourceID, level, start, end)
	return int64(len(rows)), nil
}

func (m *mockLogRepo) ListClusteredRecords(ctx context.Context, sourceID, level string, start, end time.Time) ([]*mysql.ClusteredLogRecord, error) {
	var out []*mysql.ClusteredLogRecord
	for _, r := range m.records {
		if r.VerificationTaskID == sourceID && r.Level == level && inRange(r.Timestamp, start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockDeploymentRepo struct {
	timeSeries []*mysql.DeploymentTimeSeriesAnalysis
	logs       []*mysql.DeploymentLogAnalysis
}

func (m *mockDeploymentRepo) ReplaceTimeSeries(ctx context.Context, analysis *mysql.DeploymentTimeSeriesAnalysis) error {
	m.timeSeries = append(m.timeSeries, analysis)
	return nil
}

func (m *mockDeploymentRepo) ReplaceLog(ctx context.Context, analysis *mysql.DeploymentLogAnalysis) error {
	m.logs = append(m.logs, analysis)
	return nil
}

func (m *mockDeploymentRepo) LatestTimeSeries(ctx context.Context, jobInstanceID string) ([]*mysql.DeploymentTimeSeriesAnalysis, error) {
	latest := map[string]*mysql.DeploymentTimeSeriesAnalysis{}
	var order []string
	for _, a := range m.timeSeries {
		if a.JobInstanceID != jobInstanceID {
			continue
		}
		cur, ok := latest[a.VerificationTaskID]
		if !ok {
			order = append(order, a.VerificationTaskID)
		}
		if !ok || a.WindowEnd.After(cur.WindowEnd) {
			latest[a.VerificationTaskID] = a
		}
	}
	out := make([]*mysql.DeploymentTimeSeriesAnalysis, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

func (m *mockDeploymentRepo) LatestLog(ctx context.Context, jobInstanceID string) ([]*mysql.DeploymentLogAnalysis, error) {
	latest := map[string]*mysql.DeploymentLogAnalysis{}
	var order []string
	for _, a := range m.logs {
		if a.JobInstanceID != jobInstanceID {
			continue
		}
		cur, ok := latest[a.VerificationTaskID]
		if !ok {
			order = append(order, a.VerificationTaskID)
		}
		if !ok || a.WindowEnd.After(cur.WindowEnd) {
			latest[a.VerificationTaskID] = a
		}
	}
	out := make([]*mysql.DeploymentLogAnalysis, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

type mockAnomalyRepo struct {
	seq       int64
	anomalies []*mysql.Anomaly
}

func (m *mockAnomalyRepo) FindOpenForUpdate(ctx context.Context, accountID, sourceID string) (*mysql.Anomaly, error) {
	for _, a := range m.anomalies {
		if a.AccountID == accountID && a.VerificationTaskID == sourceID && a.Status == string(model.AnomalyStatusOpen) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockAnomalyRepo) Create(ctx context.Context, anomaly *mysql.Anomaly) error {
	m.seq++
	anomaly.ID = m.seq
	cp := *anomaly
	m.anomalies = append(m.anomalies, &cp)
	return nil
}

func (m *mockAnomalyRepo) Update(ctx context.Context, anomaly *mysql.Anomaly) error {
	for i, a := range m.anomalies {
		if a.ID == anomaly.ID {
			cp := *anomaly
			m.anomalies[i] = &cp
			return nil
		}
	}
	return errors.New("anomaly not found")
}

func (m *mockAnomalyRepo) ListBySource(ctx context.Context, sourceID string, limit int) ([]*mysql.Anomaly, error) {
	var out []*mysql.Anomaly
	for i := len(m.anomalies) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.anomalies[i].VerificationTaskID == sourceID {
			cp := *m.anomalies[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockHeatmapRepo struct {
	mu      sync.Mutex
	buckets map[string]*mysql.HealthHeatmap
}

func newMockHeatmapRepo() *mockHeatmapRepo {
	return &mockHeatmapRepo{buckets: map[string]*mysql.HealthHeatmap{}}
}

func (m *mockHeatmapRepo) UpsertMax(ctx context.Context, bucket *mysql.HealthHeatmap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := bucket.ServiceID + "/" + bucket.EnvID + "/" + bucket.Category + "/" + bucket.BucketStart.Format(time.RFC3339)
	if cur, ok := m.buckets[key]; ok {
		if bucket.RiskScore >= cur.RiskScore {
			cur.RiskScore = bucket.RiskScore
			cur.SourceID = bucket.SourceID
		}
		return nil
	}
	cp := *bucket
	m.buckets[key] = &cp
	return nil
}

func (m *mockHeatmapRepo) MaxRiskByCategory(ctx context.Context, accountID, orgID, projectID, serviceID, envID string, start, end time.Time) ([]mysql.HeatmapCategoryRisk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := map[string]float64{}
	for _, b := range m.buckets {
		if b.AccountID != accountID || b.ServiceID != serviceID || b.EnvID != envID || !inRange(b.BucketStart, start, end) {
			continue
		}
		if cur, ok := max[b.Category]; !ok || b.RiskScore > cur {
			max[b.Category] = b.RiskScore
		}
	}
	var out []mysql.HeatmapCategoryRisk
	for category, risk := range max {
		out = append(out, mysql.HeatmapCategoryRisk{Category: category, Risk: risk})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (m *mockHeatmapRepo) risk(category string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.buckets {
		if b.Category == category {
			return b.RiskScore, true
		}
	}
	return 0, false
}

type mockVerificationRepo struct {
	tasks   map[string]*mysql.VerificationTask
	jobs    map[string]*mysql.VerificationJobInstance
	records []*mysql.HostRecord
}

func newMockVerificationRepo() *mockVerificationRepo {
	return &mockVerificationRepo{
		tasks: map[string]*mysql.VerificationTask{},
		jobs:  map[string]*mysql.VerificationJobInstance{},
	}
}

func (m *mockVerificationRepo) GetTask(ctx context.Context, sourceID string) (*mysql.VerificationTask, error) {
	return m.tasks[sourceID], nil
}

func (m *mockVerificationRepo) SaveTask(ctx context.Context, task *mysql.VerificationTask) error {
	m.tasks[task.SourceID] = task
	return nil
}

func (m *mockVerificationRepo) ListTasksByJobInstance(ctx context.Context, jobInstanceID string) ([]*mysql.VerificationTask, error) {
	var out []*mysql.VerificationTask
	for _, t := range m.tasks {
		if t.JobInstanceID == jobInstanceID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (m *mockVerificationRepo) GetJobInstance(ctx context.Context, instanceID string) (*mysql.VerificationJobInstance, error) {
	return m.jobs[instanceID], nil
}

func (m *mockVerificationRepo) SaveJobInstance(ctx context.Context, job *mysql.VerificationJobInstance) error {
	m.jobs[job.InstanceID] = job
	return nil
}

func (m *mockVerificationRepo) CreateHostRecords(ctx context.Context, records []*mysql.HostRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *mockVerificationRepo) ListHostsInRange(ctx context.Context, sourceIDs []string, start, end time.Time) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, r := range m.records {
		if !contains(sourceIDs, r.VerificationTaskID) || !r.StartTime.Before(end) || !r.EndTime.After(start) {
			continue
		}
		if !seen[r.Host] {
			seen[r.Host] = true
			out = append(out, r.Host)
		}
	}
	return out, nil
}

// mockTransactor runs fn directly; failed reports whether the last transaction returned an error
type mockTransactor struct {
	calls  int
	failed bool
}

func (m *mockTransactor) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	err := fn(ctx)
	m.failed = err != nil
	return err
}

type mockCounter struct {
	counts map[time.Time]int64
	err    error
}

func (m *mockCounter) CountPerMinute(ctx context.Context, sourceID string, w model.Window) (map[time.Time]int64, error) {
	return m.counts, m.err
}

type mockQueue struct {
	mu      sync.Mutex
	updates []*model.RiskUpdate
	err     error
}

func (m *mockQueue) EnqueueRiskUpdate(ctx context.Context, update *model.RiskUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.updates = append(m.updates, update)
	return nil
}

type mockMirror struct {
	mu     sync.Mutex
	points []time.Time
}

func (m *mockMirror) WriteRisk(ctx context.Context, update *model.RiskUpdate, bucketStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, bucketStart)
	return nil
}

type mockNotifier struct {
	sent chan *notification.AnomalyNotification
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{sent: make(chan *notification.AnomalyNotification, 16)}
}

func (m *mockNotifier) NotifyAnomaly(ctx context.Context, n *notification.AnomalyNotification) error {
	m.sent <- n
	return nil
}

// testEnv wires every service onto in-memory mocks
type testEnv struct {
	clock            *mockClock
	taskRepo         *mockTaskRepo
	eventRepo        *mockEventRepo
	stateRepo        *mockStateRepo
	summaryRepo      *mockSummaryRepo
	logRepo          *mockLogRepo
	deploymentRepo   *mockDeploymentRepo
	anomalyRepo      *mockAnomalyRepo
	heatmapRepo      *mockHeatmapRepo
	verificationRepo *mockVerificationRepo
	tx               *mockTransactor
	notifier         *mockNotifier

	tasks        *TaskService
	states       *StateService
	dispatch     *DispatchService
	results      *ResultService
	anomalies    *AnomalyService
	heatmap      *HeatmapService
	verification *VerificationService
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	clock := &mockClock{now: testNow}
	env := &testEnv{
		clock:            clock,
		taskRepo:         newMockTaskRepo(clock),
		eventRepo:        &mockEventRepo{},
		stateRepo:        newMockStateRepo(),
		summaryRepo:      &mockSummaryRepo{},
		logRepo:          &mockLogRepo{},
		deploymentRepo:   &mockDeploymentRepo{},
		anomalyRepo:      &mockAnomalyRepo{},
		heatmapRepo:      newMockHeatmapRepo(),
		verificationRepo: newMockVerificationRepo(),
		tx:               &mockTransactor{},
		notifier:         newMockNotifier(),
	}

	urls := callback.NewBuilder("http://verifier:8080", "http://collector:9090")
	locker := redisstore.NewSourceLocker(nil, time.Second)

	env.tasks = NewTaskService(env.taskRepo, env.eventRepo, urls, config.AnalysisConfig{StaleTaskThreshold: 600})
	env.tasks.now = clock.Now
	env.states = NewStateService(env.stateRepo, env.logRepo)
	env.dispatch = NewDispatchService(env.tasks, env.verificationRepo, env.logRepo, nil, locker, urls)
	env.anomalies = NewAnomalyService(env.anomalyRepo, 0.25)
	env.heatmap = NewHeatmapService(env.heatmapRepo, nil, nil, 5*time.Minute)
	env.results = NewResultService(env.tx, env.tasks, env.states, env.summaryRepo, env.logRepo, env.deploymentRepo,
		env.verificationRepo, env.anomalies, env.heatmap, env.notifier, locker)
	env.results.now = clock.Now
	env.verification = NewVerificationService(env.verificationRepo, env.deploymentRepo, env.heatmap, nil, model.DefaultRiskThresholds)
	env.verification.now = clock.Now
	return env
}

func (e *testEnv) addSource(source *model.VerificationTask) {
	e.verificationRepo.tasks[source.ID] = mysql.FromVerificationTaskDomain(source)
}

func (e *testEnv) addJob(job *model.VerificationJobInstance) {
	e.verificationRepo.jobs[job.ID] = mysql.FromJobInstanceDomain(job)
}

func testSource(id string) *model.VerificationTask {
	return &model.VerificationTask{
		ID:        id,
		AccountID: "acct",
		OrgID:     "org",
		ProjectID: "proj",
		ServiceID: "checkout",
		EnvID:     "prod",
		Category:  "PERFORMANCE",
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt(v int) *int { return &v }
