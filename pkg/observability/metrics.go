package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Registry load metrics
	RegistryLoadsTotal   *prometheus.CounterVec
	RegistryLoadDuration *prometheus.HistogramVec
	RegistryLoadErrors   *prometheus.CounterVec

	// Store commit metrics
	StoreCommitsTotal *prometheus.CounterVec
	StoreCommitErrors *prometheus.CounterVec

	// Snapshot size gauges
	RolesTotal  prometheus.Gauge
	UsersTotal  prometheus.Gauge
	GroupsTotal prometheus.Gauge

	// Authentication metrics
	AuthAttemptsTotal       *prometheus.CounterVec
	BruteForceDelaysTotal   prometheus.Counter
	BruteForceRejectsTotal  prometheus.Counter
	BruteForceWaiters       prometheus.Gauge
	PasswordCacheHitsTotal  prometheus.Counter
	PasswordCacheMissTotal  prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RegistryLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axle_registry_loads_total",
				Help: "Total number of registry document loads",
			},
			[]string{"registry"},
		),
		RegistryLoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axle_registry_load_duration_seconds",
				Help:    "Registry document load duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"registry"},
		),
		RegistryLoadErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axle_registry_load_errors_total",
				Help: "Total number of failed registry loads",
			},
			[]string{"registry", "kind"},
		),
		StoreCommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axle_store_commits_total",
				Help: "Total number of store session commits",
			},
			[]string{"registry"},
		),
		StoreCommitErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axle_store_commit_errors_total",
				Help: "Total number of failed store session commits",
			},
			[]string{"registry"},
		),
		RolesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "axle_roles_total",
				Help: "Number of roles in the published snapshot",
			},
		),
		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "axle_users_total",
				Help: "Number of users in the published snapshot",
			},
		),
		GroupsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "axle_groups_total",
				Help: "Number of groups in the published snapshot",
			},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axle_auth_attempts_total",
				Help: "Total number of authentication attempts by outcome",
			},
			[]string{"outcome"},
		),
		BruteForceDelaysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "axle_bruteforce_delays_total",
				Help: "Total number of failed logins delayed by the brute-force guard",
			},
		),
		BruteForceRejectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "axle_bruteforce_rejects_total",
				Help: "Total number of logins rejected because the waiter cap was reached",
			},
		),
		BruteForceWaiters: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "axle_bruteforce_waiters",
				Help: "Number of threads currently delayed by the brute-force guard",
			},
		),
		PasswordCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "axle_password_cache_hits_total",
				Help: "Verified-credential cache hits",
			},
		),
		PasswordCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "axle_password_cache_misses_total",
				Help: "Verified-credential cache misses",
			},
		),
	}

	registry.MustRegister(
		m.RegistryLoadsTotal,
		m.RegistryLoadDuration,
		m.RegistryLoadErrors,
		m.StoreCommitsTotal,
		m.StoreCommitErrors,
		m.RolesTotal,
		m.UsersTotal,
		m.GroupsTotal,
		m.AuthAttemptsTotal,
		m.BruteForceDelaysTotal,
		m.BruteForceRejectsTotal,
		m.BruteForceWaiters,
		m.PasswordCacheHitsTotal,
		m.PasswordCacheMissTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the given Prometheus registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
