// Package telemetry wires structured logging and Prometheus metrics for the
// analysis service. Log output passes through a redactor so upstream
// credentials never reach disk even when a provider error is logged verbatim.
package telemetry
