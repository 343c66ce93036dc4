package callback

import (
	"net/url"
	"testing"
	"time"

	"verifier/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWindow = model.Window{
	Start: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC),
}

func TestBuilder_FailureURLIsDeterministic(t *testing.T) {
	b := NewBuilder("http://verifier:8080/", "http://collector")

	first := b.FailureURL("task-1")
	assert.Equal(t, "http://verifier:8080/api/v1/analysis/tasks/failure?taskId=task-1", first)
	assert.Equal(t, first, b.FailureURL("task-1"))
	assert.NotEqual(t, first, b.FailureURL("task-2"))
}

func TestBuilder_SaveResultURL(t *testing.T) {
	b := NewBuilder("http://verifier:8080", "http://collector")

	raw := b.SaveResultURL("task-1", "source-1", testWindow, EpochMillis)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/analysis/results", u.Path)
	q := u.Query()
	assert.Equal(t, "task-1", q.Get("taskId"))
	assert.Equal(t, "source-1", q.Get("verificationTaskId"))
	assert.Equal(t, "1709287200000", q.Get("startTime"))
	assert.Equal(t, "1709287500000", q.Get("endTime"))
}

func TestBuilder_DeploymentURLsUseISO8601(t *testing.T) {
	b := NewBuilder("http://verifier", "http://collector")

	raw := b.DeploymentTimeSeriesURL("source-1", testWindow, []string{"h1", "h2"})
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "http://collector", u.Scheme+"://"+u.Host)
	assert.Equal(t, "2024-03-01T10:00:00Z", u.Query().Get("startTime"))
	assert.Equal(t, []string{"h1", "h2"}, u.Query()["hosts"])
}

func TestBuilder_StateURL(t *testing.T) {
	b := NewBuilder("http://verifier", "http://collector")

	assert.Equal(t,
		"http://verifier/api/v1/analysis/state/cumulative-sums?verificationTaskId=source-1",
		b.StateURL(model.StateCumulativeSums, "source-1"))
}

func TestBuilder_ClusteredLogsURL(t *testing.T) {
	b := NewBuilder("http://verifier", "http://collector")

	u, err := url.Parse(b.ClusteredLogsURL("source-1", model.ClusterLevelL1, testWindow))
	require.NoError(t, err)
	assert.Equal(t, "L1", u.Query().Get("level"))
	assert.Equal(t, "/api/v1/analysis/clustered-logs", u.Path)
}
