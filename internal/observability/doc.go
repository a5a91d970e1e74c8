// Package observability configures process-wide logging.
//
// Logs always go to stderr as text or JSON. Optionally they are also exported
// as OpenTelemetry log records:
//   - stdout: OTLP-shaped JSON on stdout, useful for local debugging
//   - otlp-http / otlp-grpc: an OTLP collector, configured through the standard
//     OTEL_EXPORTER_OTLP_* environment variables
//
// Export honors the configured log level through a minimum-severity processor.
package observability
