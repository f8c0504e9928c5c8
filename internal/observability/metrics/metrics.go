// Package metrics provides Prometheus instrumentation for matchforge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled bool

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Registry domain metrics
	registrationsTotal    *prometheus.CounterVec
	matchesCreatedTotal   prometheus.Counter
	matchesVerifiedTotal  prometheus.Counter
	rewardsDistributed    prometheus.Counter
	verificationFailTotal *prometheus.CounterVec

	// Ledger domain metrics
	mintsTotal     prometheus.Counter
	transfersTotal prometheus.Counter
)

// Init initializes the metrics system.
func Init(enabledFlag bool) {
	enabled = enabledFlag

	if !enabled {
		return
	}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_registrations_total",
			Help: "Total number of user registrations",
		},
		[]string{"role"},
	)

	matchesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_matches_created_total",
			Help: "Total number of matches created",
		},
	)

	matchesVerifiedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_matches_verified_total",
			Help: "Total number of matches verified",
		},
	)

	rewardsDistributed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_rewards_distributed_total",
			Help: "Total number of reward payouts",
		},
	)

	verificationFailTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_verification_failures_total",
			Help: "Total number of failed match verifications",
		},
		[]string{"reason"},
	)

	mintsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_mints_total",
			Help: "Total number of mint operations",
		},
	)

	transfersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Total number of transfer operations",
		},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// RecordRegistration counts a successful user registration.
func RecordRegistration(role string) {
	if enabled {
		registrationsTotal.WithLabelValues(role).Inc()
	}
}

// RecordMatchCreated counts a successful match creation.
func RecordMatchCreated() {
	if enabled {
		matchesCreatedTotal.Inc()
	}
}

// RecordMatchVerified counts a successful match verification.
func RecordMatchVerified() {
	if enabled {
		matchesVerifiedTotal.Inc()
	}
}

// RecordRewardDistributed counts a reward payout.
func RecordRewardDistributed() {
	if enabled {
		rewardsDistributed.Inc()
	}
}

// RecordVerificationFailure counts a failed verification by reason.
func RecordVerificationFailure(reason string) {
	if enabled {
		verificationFailTotal.WithLabelValues(reason).Inc()
	}
}

// RecordMint counts a mint operation.
func RecordMint() {
	if enabled {
		mintsTotal.Inc()
	}
}

// RecordTransfer counts a transfer operation.
func RecordTransfer() {
	if enabled {
		transfersTotal.Inc()
	}
}
