package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies records emitted through the otel bridge.
const instrumentationName = "github.com/florianilch/sessionkeeper"

// Export selects where log records are exported besides stderr.
type Export string

const (
	ExportNone     Export = "none"
	ExportStdout   Export = "stdout"
	ExportOTLPHTTP Export = "otlp-http"
	ExportOTLPGRPC Export = "otlp-grpc"
)

// Instrument installs the default slog logger. The returned function flushes
// and stops the exporter; it is a no-op when nothing is exported.
func Instrument(ctx context.Context, level slog.Level, format string, export Export) (func(context.Context) error, error) {
	return instrument(ctx, os.Stderr, level, format, export)
}

func instrument(ctx context.Context, w io.Writer, level slog.Level, format string, export Export) (func(context.Context) error, error) {
	local, err := newLocalHandler(w, level, format)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx, export)
	if err != nil {
		return nil, fmt.Errorf("creating %s log exporter: %w", export, err)
	}
	if exporter == nil {
		slog.SetDefault(slog.New(local))
		return func(context.Context) error { return nil }, nil
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	global.SetLoggerProvider(provider)

	bridge := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(&fanoutHandler{handlers: []slog.Handler{local, bridge}}))

	// Route exporter failures through the local handler only, exporting them could loop
	localLogger := slog.New(local)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		localLogger.Warn("opentelemetry error", "error", err)
	}))

	return provider.Shutdown, nil
}

func newLocalHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, export Export) (sdklog.Exporter, error) {
	switch export {
	case "", ExportNone:
		return nil, nil
	case ExportStdout:
		return stdoutlog.New()
	case ExportOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExportOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log export: %s", export)
	}
}

// severity maps an slog level onto the nearest minsev threshold.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
