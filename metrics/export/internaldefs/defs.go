package internaldefs

import (
	dashAuth "github.com/MrEthical07/dashAuth"
)

// Prefix is prepended to every exported metric name.
const Prefix = "dashauth_"

// CounterDef names one exported counter.
type CounterDef struct {
	ID   dashAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   dashAuth.MetricID
	Name string
	Help string
}

func counter(id dashAuth.MetricID, help string) CounterDef {
	return CounterDef{ID: id, Name: Prefix + id.String() + "_total", Help: help}
}

func histogram(id dashAuth.MetricID, help string) HistogramDef {
	return HistogramDef{ID: id, Name: Prefix + id.String() + "_seconds", Help: help}
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	counter(dashAuth.MetricSessionAuthenticated, "Requests that produced an authenticated session."),
	counter(dashAuth.MetricSessionMissingToken, "Requests without an access-token cookie."),
	counter(dashAuth.MetricSessionInvalidPayload, "Requests whose token payload did not decode."),
	counter(dashAuth.MetricSessionTokenExpired, "Requests carrying an expired token."),
	counter(dashAuth.MetricSessionSignatureMismatch, "Requests whose token signature did not verify."),
	counter(dashAuth.MetricSessionMissingRoles, "Requests whose token and cookies carried no known role."),
	counter(dashAuth.MetricRouteForbidden, "Authenticated requests denied by the route table."),
	counter(dashAuth.MetricRefreshStarted, "Refresh cycles started."),
	counter(dashAuth.MetricRefreshSuccess, "Refresh cycles that obtained a new access token."),
	counter(dashAuth.MetricRefreshFailure, "Refresh cycles that failed."),
	counter(dashAuth.MetricRefreshWaiterQueued, "Requests queued behind a running refresh."),
	counter(dashAuth.MetricRefreshRetried, "Requests replayed after a refresh."),
	counter(dashAuth.MetricRefreshRetryExhausted, "Replayed requests that still got 401."),
	counter(dashAuth.MetricRefreshStaleRetry, "401s answered with a token settled after the request was sent."),
	counter(dashAuth.MetricForcedLogout, "Sessions torn down after a failed refresh."),
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	histogram(dashAuth.MetricParseLatency, "Session parse latency."),
	histogram(dashAuth.MetricRefreshLatency, "Refresh cycle latency."),
}

// HistogramBounds are the le labels, in seconds, of the eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
