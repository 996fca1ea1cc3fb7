// Package observability wires the Prometheus metrics shared by the API
// client, the upload workflow and the history service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all metric collectors for the dashboard.
type Metrics struct {
	registry *prometheus.Registry

	// APIRequests counts collaborator calls by endpoint and outcome.
	APIRequests *prometheus.CounterVec
	// APIDuration observes collaborator call latency by endpoint.
	APIDuration *prometheus.HistogramVec
	// UploadOutcomes counts upload workflow completions by final status.
	UploadOutcomes *prometheus.CounterVec
	// HistoryRefreshes counts history refreshes triggered after a save.
	HistoryRefreshes prometheus.Counter
	// SessionEvents counts session lifecycle events (login, logout, forced_logout).
	SessionEvents *prometheus.CounterVec
}

// NewMetrics creates the metric collectors and registers them on a fresh
// registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renalscan_api_requests_total",
			Help: "Collaborator API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "renalscan_api_request_duration_seconds",
			Help:    "Collaborator API request duration by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		UploadOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renalscan_upload_outcomes_total",
			Help: "Upload workflow completions by final status",
		}, []string{"status"}),
		HistoryRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "renalscan_history_refreshes_total",
			Help: "History refreshes triggered after a successful save",
		}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renalscan_session_events_total",
			Help: "Session lifecycle events",
		}, []string{"event"}),
	}

	collectors := []prometheus.Collector{
		m.APIRequests,
		m.APIDuration,
		m.UploadOutcomes,
		m.HistoryRefreshes,
		m.SessionEvents,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry exposes the underlying registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
