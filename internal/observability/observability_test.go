package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/processors/minsev"
)

func TestInstrumentLocalOnly(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	shutdown, err := instrument(context.Background(), &buf, slog.LevelWarn, "json", ExportNone)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	slog.Info("hidden")
	slog.Warn("visible", "component", "session")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"component":"session"`)
}

func TestInstrumentRejectsUnknownSettings(t *testing.T) {
	_, err := instrument(context.Background(), &bytes.Buffer{}, slog.LevelInfo, "xml", ExportNone)
	assert.Error(t, err)

	_, err = instrument(context.Background(), &bytes.Buffer{}, slog.LevelInfo, "text", Export("kafka"))
	assert.Error(t, err)
}

func TestFanoutHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	h := &fanoutHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	logger := slog.New(h).With("source", "test").WithGroup("g")

	logger.Debug("low", "k", "v")
	logger.Warn("high")

	assert.Contains(t, debug.String(), "msg=low")
	assert.Contains(t, debug.String(), "g.k=v")
	assert.Contains(t, debug.String(), "msg=high")
	assert.NotContains(t, warn.String(), "msg=low")
	assert.Contains(t, warn.String(), "source=test")
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, minsev.SeverityDebug, severity(slog.LevelDebug))
	assert.Equal(t, minsev.SeverityInfo, severity(slog.LevelInfo))
	assert.Equal(t, minsev.SeverityWarn, severity(slog.LevelWarn))
	assert.Equal(t, minsev.SeverityError, severity(slog.LevelError+4))
}
