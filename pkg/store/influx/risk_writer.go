package influx

import (
	"context"
	"fmt"
	"time"

	"verifier/internal/model"
	"verifier/pkg/config"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const riskMeasurement = "service_health_risk"

// RiskWriter mirrors heat-map risk points into InfluxDB for dashboards
type RiskWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewRiskWriter creates a writer from config. Returns nil when InfluxDB is disabled.
func NewRiskWriter(cfg config.InfluxDBConfig) *RiskWriter {
	if !cfg.Enabled || cfg.URL == "" {
		return nil
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &RiskWriter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// NewRiskWriterWithAPI wraps an existing write API
func NewRiskWriterWithAPI(writeAPI api.WriteAPIBlocking) *RiskWriter {
	return &RiskWriter{writeAPI: writeAPI}
}

// WriteRisk writes one risk point stamped at the bucket start
func (w *RiskWriter) WriteRisk(ctx context.Context, update *model.RiskUpdate, bucketStart time.Time) error {
	p := influxdb2.NewPointWithMeasurement(riskMeasurement).
		AddTag("account_id", update.AccountID).
		AddTag("org_id", update.OrgID).
		AddTag("project_id", update.ProjectID).
		AddTag("service_id", update.ServiceID).
		AddTag("env_id", update.EnvID).
		AddTag("category", update.Category).
		AddField("risk", update.Risk).
		AddField("verification_task_id", update.VerificationTaskID).
		SetTime(bucketStart)

	if err := w.writeAPI.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("failed to write risk point: %w", err)
	}
	return nil
}

// Close releases the client
func (w *RiskWriter) Close() {
	if w != nil && w.client != nil {
		w.client.Close()
	}
}
