package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"verifier/app/handler"
	"verifier/app/router"
	"verifier/internal/model"
	"verifier/internal/service"
	"verifier/pkg/callback"
	"verifier/pkg/config"
	"verifier/pkg/hosts"
	"verifier/pkg/logger"
	"verifier/pkg/notification"
	asynqqueue "verifier/pkg/queue/asynq"
	"verifier/pkg/store/elasticsearch"
	"verifier/pkg/store/influx"
	mysqlstore "verifier/pkg/store/mysql"
	redisstore "verifier/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
	})
	return nil
}

// initMySQL opens the datastore and migrates the schema when configured
func (app *Application) initMySQL() error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		app.config.MySQL.User,
		app.config.MySQL.Password,
		app.config.MySQL.Host,
		app.config.MySQL.Port,
		app.config.MySQL.Database,
	)

	ds, err := mysqlstore.NewDatastore(dsn)
	if err != nil {
		return err
	}
	if app.config.MySQL.AutoMigrate {
		if err := ds.Migrate(app.ctx); err != nil {
			ds.Close()
			return err
		}
	}

	app.mysqlRepo = mysqlstore.NewRepositoryWithDatastore(ds)
	app.registerCleanup(func() {
		app.mysqlRepo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})
	return nil
}

// initRedis initializes Redis. Without an address the source locks and job locks
// run in single-instance mode.
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.ctx, app.config)
	if err != nil {
		return err
	}
	if client == nil {
		logger.WarnCtx(app.ctx, "Redis not configured, running in single-instance mode")
	}

	app.redisClient = client
	app.locker = redisstore.NewSourceLocker(client.GetClient(), time.Duration(app.config.Analysis.SourceLockTimeout)*time.Second)
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})
	return nil
}

// initQueue creates the asynq heat-map queue when enabled
func (app *Application) initQueue() error {
	if !app.config.Queue.Enabled {
		logger.InfoCtx(app.ctx, "Heat-map queue disabled, updates are applied inline")
		return nil
	}
	if app.redisClient == nil {
		logger.WarnCtx(app.ctx, "Heat-map queue requires redis, updates are applied inline")
		return nil
	}

	queue, err := asynqqueue.NewManager(app.config)
	if err != nil {
		return err
	}
	app.queue = queue
	app.registerCleanup(func() {
		queue.Stop()
		queue.Close()
	})
	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	cfg := app.config
	repo := app.mysqlRepo
	urls := callback.NewBuilder(cfg.Analysis.CallbackBaseURL, cfg.Analysis.DataBaseURL)
	thresholds := model.RiskThresholds{
		Observe:   cfg.Risk.ObserveThreshold,
		Anomalous: cfg.Risk.AnomalousThreshold,
		High:      cfg.Risk.HighThreshold,
	}

	// Optional collaborators stay untyped nil when absent
	var queue interface {
		EnqueueRiskUpdate(ctx context.Context, update *model.RiskUpdate) error
	}
	if app.queue != nil {
		queue = app.queue
	}

	var mirror interface {
		WriteRisk(ctx context.Context, update *model.RiskUpdate, bucketStart time.Time) error
	}
	if writer := influx.NewRiskWriter(cfg.InfluxDB); writer != nil {
		mirror = writer
		app.registerCleanup(writer.Close)
		logger.InfoCtx(app.ctx, "Heat-map points are mirrored to InfluxDB")
	}

	var counter interface {
		CountPerMinute(ctx context.Context, sourceID string, w model.Window) (map[time.Time]int64, error)
	}
	logCounter, err := elasticsearch.NewLogRecordCounter(cfg.Elasticsearch)
	if err != nil {
		return err
	}
	if logCounter != nil {
		counter = logCounter
	}

	var resolver interface {
		ResolveHosts(ctx context.Context, job *model.VerificationJobInstance) (bool, error)
	}
	if cfg.K8s.Enabled {
		k8sResolver, err := hosts.NewResolver(cfg.K8s.Namespace)
		if err != nil {
			// host sets can still be supplied explicitly by the caller
			logger.WarnCtx(app.ctx, "Failed to create K8s host resolver, selectors will not be resolved: %v", err)
		} else {
			resolver = k8sResolver
		}
	}

	app.taskService = service.NewTaskService(repo.AnalysisTask, repo.AnalysisTaskEvent, urls, cfg.Analysis)
	app.stateService = service.NewStateService(repo.State, repo.LogAnalysis)
	app.heatmapService = service.NewHeatmapService(repo.Heatmap, queue, mirror,
		time.Duration(cfg.Risk.HeatmapResolution)*time.Minute)
	app.anomalyService = service.NewAnomalyService(repo.Anomaly, cfg.Risk.AnomalyThreshold)

	app.resultService = service.NewResultService(
		repo.GetDatastore(),
		app.taskService,
		app.stateService,
		repo.RiskSummary,
		repo.LogAnalysis,
		repo.DeploymentAnalysis,
		repo.Verification,
		app.anomalyService,
		app.heatmapService,
		notification.NewFeishuNotifier(cfg.Notification.FeishuWebhookURL),
		app.locker,
	)
	app.dispatchService = service.NewDispatchService(
		app.taskService,
		repo.Verification,
		repo.LogAnalysis,
		counter,
		app.locker,
		urls,
	)
	app.verificationService = service.NewVerificationService(
		repo.Verification,
		repo.DeploymentAnalysis,
		app.heatmapService,
		resolver,
		thresholds,
	)

	if app.queue != nil {
		app.queue.RegisterHeatmapHandler(app.heatmapService.Apply)
	}
	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.analysisHandler = handler.NewAnalysisHandler(app.taskService, app.resultService, app.stateService)
	app.verificationHandler = handler.NewVerificationHandler(app.dispatchService, app.verificationService)
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	if app.config.Server.Mode != "" {
		gin.SetMode(app.config.Server.Mode)
	}

	app.ginEngine = gin.New()

	opts := router.Options{APIKey: app.config.Server.APIKey}
	if app.config.Metrics.Enabled {
		opts.MetricsPath = app.config.Metrics.Path
	}
	router.NewRouter(app.analysisHandler, app.verificationHandler, opts).Setup(app.ginEngine)

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}
