// Package internaldefs exposes stable metric name and bucket definitions
// shared by the exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters always agree on names and bucket boundaries.
package internaldefs
