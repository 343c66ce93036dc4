package asynq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"verifier/internal/model"
	"verifier/pkg/config"
	"verifier/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	TypeHeatmapUpdate = "heatmap:update"

	queueDefault = "default"
)

// Manager delivers heat-map updates through asynq
type Manager struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	maxRetry int
}

// NewManager creates queue manager
func NewManager(cfg *config.Config) (*Manager, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("asynq queue requires redis")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				queueDefault: 10,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
		},
	)

	return &Manager{
		client:   asynq.NewClient(redisOpt),
		server:   server,
		mux:      asynq.NewServeMux(),
		maxRetry: cfg.Queue.MaxRetry,
	}, nil
}

// NewHeatmapTask encodes a risk update as an asynq task
func NewHeatmapTask(update *model.RiskUpdate) (*asynq.Task, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal risk update: %w", err)
	}
	return asynq.NewTask(TypeHeatmapUpdate, payload), nil
}

// ParseHeatmapTask decodes the risk update carried by task
func ParseHeatmapTask(task *asynq.Task) (*model.RiskUpdate, error) {
	var update model.RiskUpdate
	if err := json.Unmarshal(task.Payload(), &update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal risk update: %w", err)
	}
	return &update, nil
}

// EnqueueRiskUpdate schedules a heat-map update
func (m *Manager) EnqueueRiskUpdate(ctx context.Context, update *model.RiskUpdate) error {
	task, err := NewHeatmapTask(update)
	if err != nil {
		return err
	}

	info, err := m.client.EnqueueContext(ctx, task,
		asynq.Queue(queueDefault),
		asynq.MaxRetry(m.maxRetry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue heatmap update: %w", err)
	}

	logger.DebugCtx(ctx, "heatmap update enqueued, verification_task_id: %s, asynq_id: %s",
		update.VerificationTaskID, info.ID)
	return nil
}

// RegisterHeatmapHandler routes heat-map tasks to fn
func (m *Manager) RegisterHeatmapHandler(fn func(ctx context.Context, update *model.RiskUpdate) error) {
	RegisterHeatmapHandler(m.mux, fn)
}

// RegisterHeatmapHandler routes heat-map tasks on mux to fn
func RegisterHeatmapHandler(mux *asynq.ServeMux, fn func(ctx context.Context, update *model.RiskUpdate) error) {
	mux.HandleFunc(TypeHeatmapUpdate, func(ctx context.Context, task *asynq.Task) error {
		update, err := ParseHeatmapTask(task)
		if err != nil {
			// a malformed payload will never succeed
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return fn(ctx, update)
	})
}

// Start starts queue processor
func (m *Manager) Start() error {
	logger.InfoCtx(context.Background(), "starting queue server")
	return m.server.Start(m.mux)
}

// Stop stops queue processor
func (m *Manager) Stop() {
	logger.InfoCtx(context.Background(), "stopping queue server")
	m.server.Stop()
	m.server.Shutdown()
}

// Close closes client
func (m *Manager) Close() error {
	return m.client.Close()
}
