// Package prometheus renders dashAuth metrics in Prometheus text exposition
// format. Counters are named dashauth_*_total; latency histograms are
// dashauth_parse_latency_seconds and dashauth_refresh_latency_seconds.
//
// Nothing is registered globally; callers mount [Exporter.Handler].
package prometheus
