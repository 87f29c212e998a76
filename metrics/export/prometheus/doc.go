// Package prometheus renders engine metrics in the Prometheus text
// exposition format.
//
// Counters are named portfolioauth_*_total; the only histogram is
// portfolioauth_guard_latency_seconds. Callers mount [Exporter.Handler]; no
// global registry is touched.
package prometheus
