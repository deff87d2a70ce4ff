// Package telemetry wraps OpenTelemetry SDK initialization, giving the
// gateway a centralized TracerProvider and MeterProvider configuration.
// When telemetry is disabled, noop implementations are used and no
// external service is contacted.
package telemetry
