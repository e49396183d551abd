package dashAuth

import internalmetrics "github.com/MrEthical07/dashAuth/internal/metrics"

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricSessionAuthenticated     = internalmetrics.MetricSessionAuthenticated
	MetricSessionMissingToken      = internalmetrics.MetricSessionMissingToken
	MetricSessionInvalidPayload    = internalmetrics.MetricSessionInvalidPayload
	MetricSessionTokenExpired      = internalmetrics.MetricSessionTokenExpired
	MetricSessionSignatureMismatch = internalmetrics.MetricSessionSignatureMismatch
	MetricSessionMissingRoles      = internalmetrics.MetricSessionMissingRoles
	MetricRouteForbidden           = internalmetrics.MetricRouteForbidden
	MetricRefreshStarted           = internalmetrics.MetricRefreshStarted
	MetricRefreshSuccess           = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure           = internalmetrics.MetricRefreshFailure
	MetricRefreshWaiterQueued      = internalmetrics.MetricRefreshWaiterQueued
	MetricRefreshRetried           = internalmetrics.MetricRefreshRetried
	MetricRefreshRetryExhausted    = internalmetrics.MetricRefreshRetryExhausted
	MetricRefreshStaleRetry        = internalmetrics.MetricRefreshStaleRetry
	MetricForcedLogout             = internalmetrics.MetricForcedLogout
	MetricParseLatency             = internalmetrics.MetricParseLatency
	MetricRefreshLatency           = internalmetrics.MetricRefreshLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
