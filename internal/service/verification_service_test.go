package service

import (
	"context"
	"testing"
	"time"

	"verifier/internal/model"
	"verifier/pkg/store/mysql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResolver struct {
	oldHosts []string
}

func (m *mockResolver) ResolveHosts(ctx context.Context, job *model.VerificationJobInstance) (bool, error) {
	if len(job.OldHosts) > 0 {
		return false, nil
	}
	job.OldHosts = m.oldHosts
	return true, nil
}

func (e *testEnv) addTimeSeriesAnalysis(jobID, sourceID string, end time.Time, risk float64, hosts ...model.HostTimeSeriesSummary) {
	e.deploymentRepo.timeSeries = append(e.deploymentRepo.timeSeries, mysql.FromDeploymentTimeSeriesDomain(&model.DeploymentTimeSeriesAnalysis{
		VerificationTaskID: sourceID,
		VerificationJobID:  jobID,
		AccountID:          "acct",
		WindowStart:        end.Add(-time.Minute),
		WindowEnd:          end,
		OverallRisk:        risk,
		HostSummaries:      hosts,
	}))
}

func (e *testEnv) addLogAnalysis(jobID, sourceID string, end time.Time, risk float64, hosts ...model.HostLogSummary) {
	e.deploymentRepo.logs = append(e.deploymentRepo.logs, mysql.FromDeploymentLogDomain(&model.DeploymentLogAnalysis{
		VerificationTaskID: sourceID,
		VerificationJobID:  jobID,
		AccountID:          "acct",
		WindowStart:        end.Add(-time.Minute),
		WindowEnd:          end,
		OverallRisk:        risk,
		HostSummaries:      hosts,
	}))
}

func (e *testEnv) addPreDeploymentHosts(sourceID string, hosts ...string) {
	for _, host := range hosts {
		e.verificationRepo.records = append(e.verificationRepo.records, &mysql.HostRecord{
			VerificationTaskID: sourceID,
			Host:               host,
			StartTime:          testNow.Add(-20 * time.Minute),
			EndTime:            testNow.Add(-15 * time.Minute),
		})
	}
}

func TestCanaryInfo_ClassifiesHosts(t *testing.T) {
	env := newTestEnv()
	canarySetup(env, true)
	env.addPreDeploymentHosts("S", "pod-old-2", "pod-old-1")

	env.addTimeSeriesAnalysis("job-1", "S", testNow, 0.6,
		model.HostTimeSeriesSummary{Host: "pod-old-1", IsPrimary: true, Risk: 0.1},
		model.HostTimeSeriesSummary{Host: "pod-new-1", IsCanary: true, Risk: 0.6, MetricRisks: []model.HostMetricRisk{
			{TransactionName: "checkout", MetricName: "latency", Risk: 0.6},
			{TransactionName: "checkout", MetricName: "errors", Risk: 0.1},
		}},
		model.HostTimeSeriesSummary{Host: "pod-new-2", IsCanary: true, Risk: 0.1},
	)
	env.addLogAnalysis("job-1", "S-log", testNow, 0.8,
		model.HostLogSummary{Host: "pod-old-1", IsPrimary: true, Risk: 0.9},
		model.HostLogSummary{Host: "pod-new-1", Risk: 0.3, ClusterRisks: []model.ClusterRisk{{Label: 1, Risk: 0.3}, {Label: 2, Risk: 0.9}}},
		model.HostLogSummary{Host: "pod-new-2", Risk: 0.8},
	)

	info, err := env.verification.GetCanaryOrBlueGreenInfo(context.Background(), "acct", "job-1")
	require.NoError(t, err)

	assert.Equal(t, "primary", info.PrimaryInstanceName)
	assert.Equal(t, "canary", info.CanaryInstanceName)
	require.NotNil(t, info.TrafficSplit)
	assert.Equal(t, model.TrafficSplit{PreDeploymentPercentage: 80, PostDeploymentPercentage: 20}, *info.TrafficSplit)

	require.Len(t, info.PrimaryHosts, 2)
	assert.Equal(t, "pod-old-1", info.PrimaryHosts[0].Host)
	assert.Equal(t, model.RiskLow, info.PrimaryHosts[0].Risk)
	assert.Equal(t, 0.1, info.PrimaryHosts[0].RiskScore)
	assert.Equal(t, "pod-old-2", info.PrimaryHosts[1].Host)
	assert.Equal(t, model.RiskNoAnalysis, info.PrimaryHosts[1].Risk)
	assert.Equal(t, -1.0, info.PrimaryHosts[1].RiskScore)

	require.Len(t, info.CanaryHosts, 2)
	first := info.CanaryHosts[0]
	assert.Equal(t, "pod-new-1", first.Host)
	assert.Equal(t, model.RiskAnomalous, first.Risk)
	assert.Equal(t, 0.6, first.RiskScore)
	assert.Equal(t, 1, first.AnomalousMetricsCount)
	assert.Equal(t, 2, first.AnomalousLogClustersCount)

	second := info.CanaryHosts[1]
	assert.Equal(t, "pod-new-2", second.Host)
	assert.Equal(t, model.RiskHigh, second.Risk)
	assert.Equal(t, 0.8, second.RiskScore)
}

func TestCanaryInfo_PromotesPrimaryWithoutCanaryHosts(t *testing.T) {
	env := newTestEnv()
	canarySetup(env, true)
	job := env.verificationRepo.jobs["job-1"]
	job.VerificationType = string(model.VerificationBlueGreen)
	env.addPreDeploymentHosts("S", "pod-old-1")

	info, err := env.verification.GetCanaryOrBlueGreenInfo(context.Background(), "acct", "job-1")
	require.NoError(t, err)

	assert.Equal(t, "active", info.PrimaryInstanceName)
	assert.Equal(t, "inactive", info.CanaryInstanceName)
	require.Len(t, info.CanaryHosts, 1)
	require.Len(t, info.PrimaryHosts, 1)
	promoted := info.CanaryHosts[0]
	assert.Equal(t, info.PrimaryHosts[0].Host, promoted.Host)
	assert.Equal(t, info.PrimaryHosts[0].Risk, promoted.Risk)
	assert.True(t, promoted.IsCanary)
	assert.False(t, promoted.IsPrimary)
	assert.True(t, info.PrimaryHosts[0].IsPrimary, "the primary entry keeps its tag")
}

func TestCanaryInfo_UnknownJob(t *testing.T) {
	env := newTestEnv()
	canarySetup(env, true)

	_, err := env.verification.GetCanaryOrBlueGreenInfo(context.Background(), "acct", "missing")
	assert.ErrorIs(t, err, model.ErrUnknownJobInstance)

	_, err = env.verification.GetCanaryOrBlueGreenInfo(context.Background(), "other-account", "job-1")
	assert.ErrorIs(t, err, model.ErrUnknownJobInstance)
}

func TestGetLatestRisk(t *testing.T) {
	env := newTestEnv()
	canarySetup(env, true)
	ctx := context.Background()

	risk, err := env.verification.GetLatestRisk(ctx, "acct", "job-1")
	require.NoError(t, err)
	assert.Nil(t, risk, "no analysis yet")

	env.addTimeSeriesAnalysis("job-1", "S", testNow.Add(-time.Minute), 0.9)
	env.addTimeSeriesAnalysis("job-1", "S", testNow, 0.3)
	risk, err = env.verification.GetLatestRisk(ctx, "acct", "job-1")
	require.NoError(t, err)
	require.NotNil(t, risk)
	assert.Equal(t, model.RiskObserve, *risk, "only the latest window counts")

	env.addLogAnalysis("job-1", "S-log", testNow, 0.8)
	risk, err = env.verification.GetLatestRisk(ctx, "acct", "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, *risk)

	_, err = env.verification.GetLatestRisk(ctx, "acct", "missing")
	assert.ErrorIs(t, err, model.ErrUnknownJobInstance)
}

func TestGetHealthInfo_MirrorsPostActivityDuration(t *testing.T) {
	env := newTestEnv()
	source := testSource("S")
	source.JobInstanceID = "health-1"
	env.addSource(source)
	env.addJob(&model.VerificationJobInstance{
		ID:                  "health-1",
		AccountID:           "acct",
		VerificationType:    model.VerificationHealth,
		DeploymentStartTime: testNow.Add(-10 * time.Minute),
	})
	ctx := context.Background()

	update := func(end time.Time, risk float64) {
		require.NoError(t, env.heatmap.Apply(ctx, &model.RiskUpdate{
			AccountID: "acct", OrgID: "org", ProjectID: "proj", ServiceID: "checkout", EnvID: "prod",
			Category: "PERFORMANCE", VerificationTaskID: "S", WindowEnd: end, Risk: risk,
		}))
	}
	update(testNow.Add(-15*time.Minute), 0.4)
	update(testNow.Add(-30*time.Minute), 0.95)
	update(testNow, 0.7)

	info, err := env.verification.GetHealthInfo(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, []model.CategoryRisk{{Category: "PERFORMANCE", Risk: 0.4}}, info.PreActivityRisks)
	assert.Equal(t, []model.CategoryRisk{{Category: "PERFORMANCE", Risk: 0.7}}, info.PostActivityRisks)

	_, err = env.verification.GetHealthInfo(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrUnknownSource)
}

func TestSaveJobInstance_SnapshotsResolvedHosts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	svc := NewVerificationService(env.verificationRepo, env.deploymentRepo, env.heatmap,
		&mockResolver{oldHosts: []string{"pod-a", "pod-b"}}, model.DefaultRiskThresholds)

	source := testSource("S")
	source.JobInstanceID = "job-2"
	require.NoError(t, svc.SaveVerificationTask(ctx, source))

	job := &model.VerificationJobInstance{
		ID:                  "job-2",
		AccountID:           "acct",
		VerificationType:    model.VerificationCanary,
		DeploymentStartTime: testNow,
		PreDeploymentStart:  ptrTime(testNow.Add(-15 * time.Minute)),
		PreDeploymentEnd:    ptrTime(testNow),
		Namespace:           "shop",
		OldHostSelector:     "app=checkout,track=stable",
	}
	require.NoError(t, svc.SaveJobInstance(ctx, job))

	assert.Equal(t, []string{"pod-a", "pod-b"}, []string(env.verificationRepo.jobs["job-2"].OldHosts))
	require.Len(t, env.verificationRepo.records, 2)
	for _, r := range env.verificationRepo.records {
		assert.Equal(t, "S", r.VerificationTaskID)
		assert.True(t, r.StartTime.Equal(testNow.Add(-15*time.Minute)))
		assert.True(t, r.EndTime.Equal(testNow))
	}
}

func TestSaveJobInstance_ExplicitHostsNotSnapshotted(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	canarySetup(env, true)

	job := mysql.ToJobInstanceDomain(env.verificationRepo.jobs["job-1"])
	require.NoError(t, env.verification.SaveJobInstance(ctx, job))
	assert.Empty(t, env.verificationRepo.records)
}

func TestAddHostRecords(t *testing.T) {
	env := newTestEnv()
	env.addSource(testSource("S"))
	ctx := context.Background()

	err := env.verification.AddHostRecords(ctx, "missing", nil)
	assert.ErrorIs(t, err, model.ErrUnknownSource)

	err = env.verification.AddHostRecords(ctx, "S", []*model.HostRecord{
		{Host: "pod-1", StartTime: testNow, EndTime: testNow},
	})
	assert.ErrorIs(t, err, model.ErrInvalidWindow)
	assert.Empty(t, env.verificationRepo.records)

	err = env.verification.AddHostRecords(ctx, "S", []*model.HostRecord{
		{Host: "pod-1", StartTime: testNow.Add(-time.Minute), EndTime: testNow},
	})
	require.NoError(t, err)
	require.Len(t, env.verificationRepo.records, 1)
	assert.Equal(t, "S", env.verificationRepo.records[0].VerificationTaskID)
}
