// Package metrics exposes iotc-device session diagnostics to Prometheus.
//
// Collector implements the session observer interface and keeps counters
// for publishes, acknowledgements, inbound messages and anomalies, a gauge
// for the current session state and a histogram of provisioning time.
// Serve exposes a registry over HTTP.
package metrics
