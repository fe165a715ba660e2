package catalog

import "github.com/prometheus/client_golang/prometheus"

// Namespace is the Prometheus metrics namespace for the catalog cache.
const Namespace = "scope_engine"

var (
	// ReloadTotal counts bulk reloads by outcome.
	ReloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reload_total",
			Help:      "Total number of catalog reloads by outcome",
		},
		[]string{"result"},
	)

	// ReloadDuration measures the duration of a bulk reload in seconds.
	ReloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "reload_duration_seconds",
			Help:      "Duration of catalog reloads in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ReloadErrors counts reload failures, by source (role-scan / client-scan).
	ReloadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reload_errors_total",
			Help:      "Total number of catalog reload errors by source",
		},
		[]string{"source"},
	)

	// EntityReloadTotal counts single-entity reloads by kind and outcome.
	EntityReloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entity_reload_total",
			Help:      "Total number of single-entity reloads by kind and outcome",
		},
		[]string{"kind", "result"},
	)

	// ResolveTotal counts resolve calls.
	ResolveTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "resolve_total",
			Help:      "Total number of Resolve calls",
		},
	)

	// ResolveDuration measures the duration of a Resolve call in seconds.
	ResolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Duration of Resolve calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// LastUsedUpdateErrors counts failed asynchronous lastDateUsed updates.
	LastUsedUpdateErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "last_used_update_errors_total",
			Help:      "Total number of failed asynchronous lastDateUsed updates",
		},
	)

	// RoleCount and ClientCount gauge the size of the current snapshot.
	RoleCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "roles",
			Help:      "Number of roles in the current snapshot",
		},
	)
	ClientCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "clients",
			Help:      "Number of clients in the current snapshot",
		},
	)
)

// ReloadResult and EntityReloadResult label values.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultUnchanged = "unchanged"
)

// EntityKind label values for EntityReloadTotal.
const (
	KindRole   = "role"
	KindClient = "client"
)

// Register registers every catalog metric against reg. Unlike the
// controller-runtime convention of an init() that registers against a
// single process-wide registry, the catalog cache is a library: callers own
// their registry and decide when (or whether) to register it.
func Register(reg *prometheus.Registry) {
	reg.MustRegister(
		ReloadTotal,
		ReloadDuration,
		ReloadErrors,
		EntityReloadTotal,
		ResolveTotal,
		ResolveDuration,
		LastUsedUpdateErrors,
		RoleCount,
		ClientCount,
	)
}
