package main

import (
	"time"

	"verifier/internal/jobs"
	redisstore "verifier/pkg/store/redis"
)

// initJobs registers the background jobs. Locks downgrade to single-instance mode
// when Redis is unavailable.
func (app *Application) initJobs() error {
	repo := app.mysqlRepo
	client := app.redisClient.GetClient()
	manager := jobs.NewManager(app.ctx)

	// every replica reports the same numbers, no lock needed
	manager.Register(jobs.NewQueueDepthJob(30*time.Second, repo.AnalysisTask))

	retention := time.Duration(app.config.Analysis.RetentionDays) * 24 * time.Hour
	manager.Register(jobs.WithLock(
		jobs.NewRetentionJob(24*time.Hour, retention,
			jobs.Cleanup{Name: "analysis tasks", Delete: repo.AnalysisTask.CleanupOldTasks},
			jobs.Cleanup{Name: "analysis task events", Delete: repo.AnalysisTaskEvent.DeleteOldEvents},
			jobs.Cleanup{Name: "clustered log records", Delete: repo.LogAnalysis.DeleteClusteredRecordsBefore},
			jobs.Cleanup{Name: "heat-map buckets", Delete: repo.Heatmap.DeleteBefore},
		),
		redisstore.NewRedisDistributedLock(client, "verifier:cleanup:data-retention-lock"),
	))

	app.jobsManager = manager
	return nil
}
