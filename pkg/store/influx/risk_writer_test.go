package influx

import (
	"context"
	"errors"
	"testing"
	"time"

	"verifier/internal/model"
	"verifier/pkg/config"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriteAPI struct {
	points []*write.Point
	err    error
}

func (f *fakeWriteAPI) WriteRecord(ctx context.Context, line ...string) error { return f.err }

func (f *fakeWriteAPI) WritePoint(ctx context.Context, point ...*write.Point) error {
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, point...)
	return nil
}

func (f *fakeWriteAPI) EnableBatching() {}

func (f *fakeWriteAPI) Flush(ctx context.Context) error { return nil }

func TestRiskWriter_WriteRisk(t *testing.T) {
	fake := &fakeWriteAPI{}
	w := NewRiskWriterWithAPI(fake)
	bucket := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)

	err := w.WriteRisk(context.Background(), &model.RiskUpdate{
		AccountID:          "acc",
		ServiceID:          "svc",
		EnvID:              "prod",
		Category:           "PERFORMANCE",
		VerificationTaskID: "source-1",
		Risk:               0.6,
	}, bucket)
	require.NoError(t, err)
	require.Len(t, fake.points, 1)

	p := fake.points[0]
	assert.Equal(t, riskMeasurement, p.Name())
	assert.Equal(t, bucket, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, "PERFORMANCE", tags["category"])
	assert.Equal(t, "svc", tags["service_id"])

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 0.6, fields["risk"])
}

func TestRiskWriter_PropagatesError(t *testing.T) {
	w := NewRiskWriterWithAPI(&fakeWriteAPI{err: errors.New("unauthorized")})
	err := w.WriteRisk(context.Background(), &model.RiskUpdate{}, time.Now())
	assert.Error(t, err)
}

func TestNewRiskWriter_Disabled(t *testing.T) {
	assert.Nil(t, NewRiskWriter(config.InfluxDBConfig{Enabled: false, URL: "http://influx:8086"}))
}
