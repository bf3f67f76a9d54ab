// Package metrics provides the Prometheus metrics of the moderation workflow and
// the review image worker.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics methods are safe to call on a nil receiver so callers can run
// without a registry.
type Metrics struct {
	StatusChanges      *prometheus.CounterVec
	StatusChangeErrors *prometheus.CounterVec
	PointsCredited     prometheus.Counter
	CreditsSkipped     prometheus.Counter
	ModerationDuration prometheus.Histogram
	ImageJobs          *prometheus.CounterVec
	ImageJobDuration   prometheus.Histogram
}

// New creates the metrics and registers them on registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_status_changes_total",
			Help: "Committed review status changes by new status",
		}, []string{"status"}),
		StatusChangeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_status_change_errors_total",
			Help: "Rolled back review status changes by error category",
		}, []string{"reason"}),
		PointsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "user_points_credited_total",
			Help: "Points credited to users by review approvals",
		}),
		CreditsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "user_points_credits_skipped_total",
			Help: "Approvals that found an existing ledger row and credited nothing",
		}),
		ModerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "review_moderation_duration_seconds",
			Help:    "Duration of the review status change transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		ImageJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_image_jobs_total",
			Help: "Processed review image jobs by outcome",
		}, []string{"outcome"}),
		ImageJobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "review_image_job_duration_seconds",
			Help:    "Compress and upload time of one review image",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register review metrics: %w", err)
	}
	return m, nil
}

// RecordStatusChange records a committed status change.
func (m *Metrics) RecordStatusChange(status string, credited bool, points int, seconds float64) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
	m.ModerationDuration.Observe(seconds)
	if status != "approved" {
		return
	}
	if credited {
		m.PointsCredited.Add(float64(points))
	} else {
		m.CreditsSkipped.Inc()
	}
}

// RecordStatusChangeError records a rolled back status change.
func (m *Metrics) RecordStatusChangeError(reason string) {
	if m == nil {
		return
	}
	m.StatusChangeErrors.WithLabelValues(reason).Inc()
}

// RecordImageJob records one worker attempt; outcome is done, retry or failed.
func (m *Metrics) RecordImageJob(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ImageJobs.WithLabelValues(outcome).Inc()
	m.ImageJobDuration.Observe(seconds)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.StatusChanges.Describe(ch)
	m.StatusChangeErrors.Describe(ch)
	m.PointsCredited.Describe(ch)
	m.CreditsSkipped.Describe(ch)
	m.ModerationDuration.Describe(ch)
	m.ImageJobs.Describe(ch)
	m.ImageJobDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.StatusChanges.Collect(ch)
	m.StatusChangeErrors.Collect(ch)
	m.PointsCredited.Collect(ch)
	m.CreditsSkipped.Collect(ch)
	m.ModerationDuration.Collect(ch)
	m.ImageJobs.Collect(ch)
	m.ImageJobDuration.Collect(ch)
}
