// Package metrics exposes the verifier's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "verifier"

var (
	// HTTPRequestDuration request latency by route and status code
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	// TasksEnqueued tasks created by the dispatcher. Labels: task_type
	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "tasks_enqueued_total",
		Help:      "Analysis tasks enqueued",
	}, []string{"task_type"})

	// TasksClaimed tasks handed to the compute engine. Labels: task_type
	TasksClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "tasks_claimed_total",
		Help:      "Analysis tasks claimed by the compute engine",
	}, []string{"task_type"})

	// TasksTerminated terminal transitions. Labels: status (SUCCESS, FAILED, TIMEOUT)
	TasksTerminated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "tasks_terminated_total",
		Help:      "Analysis tasks that reached a terminal status",
	}, []string{"status"})

	// QueueDepth current task count per status
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "tasks",
		Help:      "Analysis tasks per status",
	}, []string{"status"})

	// DispatchRejected windows refused by the dispatcher. Labels: reason
	DispatchRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "rejected_total",
		Help:      "Dispatch requests refused",
	}, []string{"reason"})

	// ResultDuration time to fold a verdict into state. Labels: task_type
	ResultDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "results",
		Name:      "save_duration_seconds",
		Help:      "Time spent persisting a verdict",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"task_type"})

	// OverallRisk distribution of computed overall risk. Labels: task_type
	OverallRisk = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "results",
		Name:      "overall_risk",
		Help:      "Overall risk of saved verdicts",
		Buckets:   []float64{0, 0.25, 0.5, 0.75, 1},
	}, []string{"task_type"})

	// AnomalyTransitions anomaly lifecycle. Labels: transition (OPENED, REFRESHED, CLOSED)
	AnomalyTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "anomaly",
		Name:      "transitions_total",
		Help:      "Anomaly transitions",
	}, []string{"transition"})

	// JobRuns background job executions. Labels: job, result (ok, error, skipped)
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Background job executions",
	}, []string{"job", "result"})
)
