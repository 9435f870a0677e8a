// Package metrics exposes run metrics in the Prometheus text format. Each run
// owns a fresh registry that is written to a node_exporter textfile when the
// run ends.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all aliasync metrics.
type Registry struct {
	reg *prometheus.Registry

	// Reconciliation
	AliasOperations *prometheus.CounterVec
	DriftAliases    prometheus.Gauge
	ReloadSuccess   prometheus.Gauge

	// Backups
	BackupArtifacts prometheus.Gauge

	// Run
	RunDuration prometheus.Gauge
	LastRun     prometheus.Gauge
	RunsAborted *prometheus.CounterVec

	// Appliance API
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// New creates a registry with every metric registered.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}
	f := promauto.With(r.reg)

	r.AliasOperations = f.NewCounterVec(prometheus.CounterOpts{
		Name: "aliasync_alias_operations_total",
		Help: "Alias mutations attempted, by action and result",
	}, []string{"action", "result"})

	r.DriftAliases = f.NewGauge(prometheus.GaugeOpts{
		Name: "aliasync_drift_aliases",
		Help: "Aliases present on the appliance but not declared",
	})

	r.ReloadSuccess = f.NewGauge(prometheus.GaugeOpts{
		Name: "aliasync_reload_success",
		Help: "Whether the last reload signal was acknowledged (1) or not (0)",
	})

	r.BackupArtifacts = f.NewGauge(prometheus.GaugeOpts{
		Name: "aliasync_backup_artifacts",
		Help: "Backup artifacts retained after the run",
	})

	r.RunDuration = f.NewGauge(prometheus.GaugeOpts{
		Name: "aliasync_run_duration_seconds",
		Help: "Wall time of the last run",
	})

	r.LastRun = f.NewGauge(prometheus.GaugeOpts{
		Name: "aliasync_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})

	r.RunsAborted = f.NewCounterVec(prometheus.CounterOpts{
		Name: "aliasync_runs_aborted_total",
		Help: "Runs aborted before any mutation, by reason",
	}, []string{"reason"})

	r.APIRequests = f.NewCounterVec(prometheus.CounterOpts{
		Name: "aliasync_api_requests_total",
		Help: "Appliance API requests, by method, endpoint and status",
	}, []string{"method", "endpoint", "status"})

	r.APILatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aliasync_api_request_duration_seconds",
		Help:    "Appliance API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordOperation counts one alias mutation.
func (r *Registry) RecordOperation(action string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	r.AliasOperations.WithLabelValues(action, result).Inc()
}

// RecordReload records the outcome of the reload signal.
func (r *Registry) RecordReload(ok bool) {
	if ok {
		r.ReloadSuccess.Set(1)
	} else {
		r.ReloadSuccess.Set(0)
	}
}

// RecordRun records the end of a run.
func (r *Registry) RecordRun(finished time.Time, elapsed time.Duration) {
	r.RunDuration.Set(elapsed.Seconds())
	r.LastRun.Set(float64(finished.Unix()))
}

// ObserveAPI records one appliance API call. Path segments after the
// controller action (uuids, alias names) are dropped to bound cardinality.
func (r *Registry) ObserveAPI(method, path string, status int, elapsed time.Duration) {
	endpoint := endpointLabel(path)
	r.APIRequests.WithLabelValues(method, endpoint, statusString(status)).Inc()
	r.APILatency.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// WriteTextfile writes the registry atomically for the node_exporter
// textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

// endpointLabel maps "/api/firewall/alias/getItem/<uuid>" to "alias/getItem".
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 4 && parts[0] == "api" {
		return parts[2] + "/" + parts[3]
	}
	return strings.Join(parts, "/")
}

// statusString converts an HTTP status code to string. Zero means the request
// never got a response.
func statusString(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
