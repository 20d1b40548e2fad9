// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes download progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfget/mfget/pkg/mediafire"
)

// Metrics holds the collectors of one process. Each instance owns its
// registry so tests can create several.
type Metrics struct {
	registry *prometheus.Registry

	planned      prometheus.Counter
	plannedBytes prometheus.Counter
	files        *prometheus.CounterVec
	bytes        prometheus.Counter
	active       prometheus.Gauge
	fileSize     prometheus.Histogram

	mu        sync.Mutex
	streaming map[string]struct{}
}

// New registers the download collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry:  reg,
		streaming: make(map[string]struct{}),
		planned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mfget_files_planned_total",
			Help: "Files added to the task list by discovery",
		}),
		plannedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mfget_bytes_planned_total",
			Help: "Reported size of planned files in bytes",
		}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mfget_files_total",
			Help: "Files that reached a terminal outcome",
		}, []string{"outcome"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mfget_bytes_downloaded_total",
			Help: "Bytes written to disk",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfget_transfers_active",
			Help: "Transfers currently streaming",
		}),
		fileSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mfget_completed_file_size_bytes",
			Help:    "Size of completed downloads",
			Buckets: prometheus.ExponentialBuckets(1<<10, 4, 12),
		}),
	}
	reg.MustRegister(
		m.planned, m.plannedBytes, m.files, m.bytes, m.active, m.fileSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe updates the collectors from a progress event. It is a valid
// mediafire.ProgressFunc.
func (m *Metrics) Observe(ev mediafire.ProgressEvent) {
	switch ev.Event {
	case "plan_item":
		m.planned.Inc()
		if ev.Total > 0 {
			m.plannedBytes.Add(float64(ev.Total))
		}
	case "file_start":
		m.mu.Lock()
		m.streaming[ev.Path] = struct{}{}
		m.mu.Unlock()
		m.active.Inc()
	case "file_progress":
		if ev.Bytes > 0 {
			m.bytes.Add(float64(ev.Bytes))
		}
	case "file_done":
		m.finish(ev.Path)
		if ev.Message != "" {
			m.files.WithLabelValues(mediafire.OutcomeSkipped.String()).Inc()
			return
		}
		m.files.WithLabelValues(mediafire.OutcomeCompleted.String()).Inc()
		m.fileSize.Observe(float64(ev.Downloaded))
	case "file_failed":
		m.finish(ev.Path)
		m.files.WithLabelValues(mediafire.OutcomeFailed.String()).Inc()
	case "file_cancelled":
		m.finish(ev.Path)
		m.files.WithLabelValues(mediafire.OutcomeCancelled.String()).Inc()
	}
}

// finish lowers the active gauge if path had started streaming.
func (m *Metrics) finish(path string) {
	m.mu.Lock()
	_, ok := m.streaming[path]
	delete(m.streaming, path)
	m.mu.Unlock()
	if ok {
		m.active.Dec()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
