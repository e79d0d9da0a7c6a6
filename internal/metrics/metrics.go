// Package metrics exposes Prometheus collectors for clip processing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one process. All methods are safe for
// concurrent use.
type Metrics struct {
	ClipsProcessed  prometheus.Counter
	ClipsRejected   *prometheus.CounterVec
	ClipErrors      prometheus.Counter
	FramesProcessed prometheus.Counter
	TracksCreated   prometheus.Counter
	TracksKept      prometheus.Counter
	TracksFiltered  *prometheus.CounterVec
	ClipDuration    prometheus.Histogram
	AutoThreshold   prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ClipsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermal_clips_processed_total",
			Help: "Clips that completed extraction",
		}),
		ClipsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thermal_clips_rejected_total",
			Help: "Clips skipped by temperature admission",
		}, []string{"reason"}),
		ClipErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermal_clip_errors_total",
			Help: "Clips that failed to process",
		}),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermal_frames_processed_total",
			Help: "Frames run through the tracking loop",
		}),
		TracksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermal_tracks_created_total",
			Help: "Tracks created before filtering",
		}),
		TracksKept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermal_tracks_kept_total",
			Help: "Tracks surviving the score filter",
		}),
		TracksFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thermal_tracks_filtered_total",
			Help: "Tracks removed by the score filter",
		}, []string{"reason"}),
		ClipDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thermal_clip_processing_seconds",
			Help:    "Wall time to process one clip",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		AutoThreshold: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thermal_auto_threshold",
			Help:    "Auto detection threshold per clip",
			Buckets: prometheus.LinearBuckets(10, 5, 9),
		}),
	}
	m.registry.MustRegister(
		m.ClipsProcessed, m.ClipsRejected, m.ClipErrors, m.FramesProcessed,
		m.TracksCreated, m.TracksKept, m.TracksFiltered, m.ClipDuration, m.AutoThreshold,
	)
	return m
}

// ObserveClip records the timing of a clip.
func (m *Metrics) ObserveClip(elapsed time.Duration) {
	m.ClipDuration.Observe(elapsed.Seconds())
}

// Registry returns the underlying registry, for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics in text exposition format, for
// batch runs collected by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
