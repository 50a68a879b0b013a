package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpianalyzer/internal/config"
)

func TestNewLogger_InjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")

	ctx := WithTraceID(context.Background(), "abc-123")
	logger.InfoContext(ctx, "run finished", slog.Int("rows", 3))
	logger.DebugContext(ctx, "not emitted")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run finished", entry["msg"])
	assert.Equal(t, "abc-123", entry["trace_id"])
	assert.Equal(t, float64(3), entry["rows"])
}

func TestInitializeLogger_TextFormat(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "kpianalyzer.log")
	logger, err := InitializeLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "file", FilePath: logFile})
	require.NoError(t, err)
	defer slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	logger.InfoContext(WithTraceID(context.Background(), "t-1"), "plain text", slog.String("sheet", "BBH"))
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "msg=\"plain text\"")
	assert.Contains(t, string(content), "sheet=BBH")
	assert.Contains(t, string(content), "trace_id=t-1")
}

func TestInitializeLogger_File(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "file", FilePath: logFile})
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	logger.Debug("written to file")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "written to file")
	assert.Same(t, logger, GetLogger())
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)

	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing trace ID is kept")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestInitializeOTel_MetricsEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := OTelConfigFrom(config.TelemetryConfig{MetricsEnabled: true})

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	require.NotNil(t, providers.PrometheusHTTP)
	assert.Nil(t, providers.TracerProvider)

	metrics, err := NewAnalysisMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRun(ctx, 250*time.Millisecond, 12, nil)
	metrics.RecordStage(ctx, "reshape", time.Millisecond, true)
	metrics.RecordRemarks(ctx, map[string]int{"KPI not ok": 2})
	metrics.RecordDataQuality(ctx, "unparsable_timestamp", 1)
	metrics.RecordHTTPRequest(ctx, http.MethodPost, "/api/v1/analyze", http.StatusOK, time.Second)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, "kpi_analysis_runs_total")
	assert.Contains(t, body, "kpi_remarks_total")
	assert.Contains(t, body, "kpi_data_quality_events_total")
	assert.Contains(t, body, "http_requests_total")
}

func TestInitializeOTel_TwiceDoesNotConflict(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for i := 0; i < 2; i++ {
		p, err := InitializeOTel(OTelConfigFrom(config.TelemetryConfig{MetricsEnabled: true}), logger)
		require.NoError(t, err)
		require.NoError(t, p.Shutdown(context.Background()))
	}
}

func TestInitializeOTel_Tracing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := OTelConfigFrom(config.TelemetryConfig{TracingEnabled: true})
	cfg.TraceOutput = io.Discard

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "test")
	defer span.End()
	assert.Len(t, TraceIDFromContext(ctx), 32)

	var buf bytes.Buffer
	NewLogger(&buf, "info").InfoContext(ctx, "inside span")
	assert.Contains(t, buf.String(), `"trace_id":"`+TraceIDFromContext(ctx)+`"`)
}

func TestAnalysisMetrics_NilIsNoop(t *testing.T) {
	var m *AnalysisMetrics
	assert.NotPanics(t, func() {
		m.RecordRun(context.Background(), time.Second, 1, nil)
		m.RecordStage(context.Background(), "ingest", time.Second, false)
		m.RecordRemarks(context.Background(), map[string]int{"NO DATA": 1})
		m.RecordDataQuality(context.Background(), "duplicate", 1)
		m.RecordHTTPRequest(context.Background(), "GET", "/", 200, time.Second)
	})
}
