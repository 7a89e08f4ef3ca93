package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	batchRunsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pacelab",
		Subsystem: "batch",
		Name:      "runs_total",
		Help:      "Number of batch runs started, by job.",
	}, []string{"job"})

	batchErrorsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pacelab",
		Subsystem: "batch",
		Name:      "errors_total",
		Help:      "Number of per-user or systemic batch failures, by job and stage.",
	}, []string{"job", "stage"})

	batchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pacelab",
		Subsystem: "batch",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of batch runs, by job.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"job"})

	classificationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pacelab",
		Name:      "classifications_total",
		Help:      "Number of activities classified, by workout type.",
	}, []string{"label"})

	paceClampsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pacelab",
		Name:      "pace_clamps_total",
		Help:      "Number of prescribed paces adjusted by the safety calibrator.",
	}, []string{"category", "reason"})
)

func init() {
	prometheus.MustRegister(batchRunsCounter, batchErrorsCounter, batchDuration, classificationsCounter, paceClampsCounter)
}

func recordBatchStart(job string) time.Time {
	batchRunsCounter.WithLabelValues(job).Inc()
	return time.Now()
}

func recordBatchDone(job string, start time.Time) {
	batchDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}

func recordBatchErrors(job string, errs []BatchError) {
	for _, e := range errs {
		batchErrorsCounter.WithLabelValues(job, e.Stage).Inc()
	}
}

func recordSystemicError(job, stage string) {
	batchErrorsCounter.WithLabelValues(job, stage).Inc()
}

func recordClassification(label string) {
	classificationsCounter.WithLabelValues(label).Inc()
}

func recordClamp(category, reason string) {
	paceClampsCounter.WithLabelValues(category, reason).Inc()
}
