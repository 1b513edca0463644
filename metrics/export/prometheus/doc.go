// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewExporter] accepts an [authcore.Engine] and exposes an http.Handler
// for a /metrics endpoint. Counter names are prefixed authcore_*_total;
// the single histogram is authcore_verify_access_latency_seconds. Nothing
// is registered globally; callers mount the Handler themselves.
package prometheus
