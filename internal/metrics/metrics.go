// Package metrics defines the Prometheus instruments exported on /metrics.
// All names are prefixed with "inspectmedia_".
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectmedia_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inspectmedia_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Pipeline metrics
var (
	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectmedia_validation_failures_total",
			Help: "Validation violations by code",
		},
		[]string{"code"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectmedia_jobs_total",
			Help: "Finished jobs by terminal status",
		},
		[]string{"status"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inspectmedia_jobs_in_flight",
			Help: "Jobs currently being processed (1 at most)",
		},
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inspectmedia_transcode_duration_seconds",
			Help:    "Wall time of successful ingest and transcode runs",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TranscodeBytesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inspectmedia_transcode_bytes_saved_total",
			Help: "Input bytes minus output bytes over all transcodes",
		},
	)

	FramesSampled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectmedia_frames_total",
			Help: "Frames produced by the sampler by outcome",
		},
		[]string{"outcome"}, // "captured", "failed", "timeout", "invalid_source"
	)
)
