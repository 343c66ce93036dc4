// Package callback builds the URLs handed to the compute engine with each task.
//
// Service-guard data URLs carry epoch-millisecond bounds, deployment data URLs
// carry ISO-8601 bounds. Query parameters are encoded in sorted order so the
// same inputs always yield the same URL.
package callback

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"verifier/internal/model"
)

const (
	resultsPath        = "/api/v1/analysis/results"
	failurePath        = "/api/v1/analysis/tasks/failure"
	statePath          = "/api/v1/analysis/state/"
	logClustersPath    = "/api/v1/analysis/log-clusters"
	clusteredLogsPath  = "/api/v1/analysis/clustered-logs"
	timeSeriesDataPath = "/time-series/data"
	metricTemplatePath = "/time-series/metric-template"
	logDataPath        = "/logs/data"
	deploymentTSPath   = "/deployment/time-series/data"
	deploymentLogPath  = "/deployment/logs/data"
	loadTestDataPath   = "/load-test/time-series/data"
)

// TimeFormat how window bounds are written into a URL
type TimeFormat int

const (
	EpochMillis TimeFormat = iota
	ISO8601
)

func (f TimeFormat) format(t time.Time) string {
	if f == ISO8601 {
		return t.UTC().Format(time.RFC3339)
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Builder constructs callback and data URLs
type Builder struct {
	callbackBase string
	dataBase     string
}

// NewBuilder creates a builder. callbackBase serves results / state / failure,
// dataBase serves raw metric and log data.
func NewBuilder(callbackBase, dataBase string) *Builder {
	return &Builder{
		callbackBase: strings.TrimRight(callbackBase, "/"),
		dataBase:     strings.TrimRight(dataBase, "/"),
	}
}

func build(base, path string, params url.Values) string {
	if len(params) == 0 {
		return base + path
	}
	return base + path + "?" + params.Encode()
}

func windowParams(sourceID string, w model.Window, f TimeFormat) url.Values {
	params := url.Values{}
	params.Set("verificationTaskId", sourceID)
	params.Set("startTime", f.format(w.Start))
	params.Set("endTime", f.format(w.End))
	return params
}

// FailureURL the POST target the engine calls when it cannot complete taskID
func (b *Builder) FailureURL(taskID string) string {
	return build(b.callbackBase, failurePath, url.Values{"taskId": {taskID}})
}

// SaveResultURL the POST target for the verdict of taskID
func (b *Builder) SaveResultURL(taskID, sourceID string, w model.Window, f TimeFormat) string {
	params := windowParams(sourceID, w, f)
	params.Set("taskId", taskID)
	return build(b.callbackBase, resultsPath, params)
}

// StateURL the previous-state URL of one state kind
func (b *Builder) StateURL(kind model.StateKind, sourceID string) string {
	return build(b.callbackBase, statePath+string(kind), url.Values{"verificationTaskId": {sourceID}})
}

// PreviousClustersURL the active log clusters of a source
func (b *Builder) PreviousClustersURL(sourceID string) string {
	return build(b.callbackBase, logClustersPath, url.Values{"verificationTaskId": {sourceID}})
}

// ClusteredLogsURL the stored clustered records of level inside w
func (b *Builder) ClusteredLogsURL(sourceID string, level model.ClusterLevel, w model.Window) string {
	params := windowParams(sourceID, w, EpochMillis)
	params.Set("level", string(level))
	return build(b.callbackBase, clusteredLogsPath, params)
}

// TimeSeriesDataURL metric data of a source for w
func (b *Builder) TimeSeriesDataURL(sourceID string, w model.Window) string {
	return build(b.dataBase, timeSeriesDataPath, windowParams(sourceID, w, EpochMillis))
}

// MetricTemplateURL metric definitions of a source
func (b *Builder) MetricTemplateURL(sourceID string) string {
	return build(b.dataBase, metricTemplatePath, url.Values{"verificationTaskId": {sourceID}})
}

// LogDataURL raw log records of a source for w
func (b *Builder) LogDataURL(sourceID string, w model.Window) string {
	return build(b.dataBase, logDataPath, windowParams(sourceID, w, EpochMillis))
}

// DeploymentTimeSeriesURL metric data of hosts for w
func (b *Builder) DeploymentTimeSeriesURL(sourceID string, w model.Window, hosts []string) string {
	params := windowParams(sourceID, w, ISO8601)
	if len(hosts) > 0 {
		params["hosts"] = hosts
	}
	return build(b.dataBase, deploymentTSPath, params)
}

// DeploymentLogURL log records of hosts for w
func (b *Builder) DeploymentLogURL(sourceID string, w model.Window, hosts []string) string {
	params := windowParams(sourceID, w, ISO8601)
	if len(hosts) > 0 {
		params["hosts"] = hosts
	}
	return build(b.dataBase, deploymentLogPath, params)
}

// LoadTestDataURL metric data of one load-test run for w
func (b *Builder) LoadTestDataURL(jobInstanceID, sourceID string, w model.Window) string {
	params := windowParams(sourceID, w, ISO8601)
	params.Set("verificationJobInstanceId", jobInstanceID)
	return build(b.dataBase, loadTestDataPath, params)
}
