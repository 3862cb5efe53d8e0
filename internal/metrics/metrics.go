// Package metrics exposes adapter counters over a Prometheus registry.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the adapter's counters. The hot path touches plain atomics;
// Prometheus reads them lazily through GaugeFuncs on scrape.
type Metrics struct {
	FramesStamped       atomic.Uint64
	FramesPublished     atomic.Uint64
	ObjectsPublished    atomic.Uint64
	DetectionsRejected  atomic.Uint64
	MalformedDetections atomic.Uint64
	ImagesPublished     atomic.Uint64
	PublishErrors       atomic.Uint64
	TimeSyncFailures    atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	counters := []struct {
		name string
		help string
		val  *atomic.Uint64
	}{
		{"adapter_frames_stamped_total", "Frames stamped by the post-decode stage", &m.FramesStamped},
		{"adapter_frames_published_total", "Frame records published", &m.FramesPublished},
		{"adapter_objects_published_total", "Object records published across all categories", &m.ObjectsPublished},
		{"adapter_detections_rejected_total", "Detections rejected by confidence thresholds", &m.DetectionsRejected},
		{"adapter_detections_malformed_total", "Detections skipped for malformed auxiliary payloads", &m.MalformedDetections},
		{"adapter_images_published_total", "One-shot image messages published", &m.ImagesPublished},
		{"adapter_publish_errors_total", "MQTT publish failures", &m.PublishErrors},
		{"adapter_time_sync_failures_total", "Failed network time resync attempts", &m.TimeSyncFailures},
	}
	for _, c := range counters {
		val := c.val
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(val.Load()) },
		))
	}

	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
