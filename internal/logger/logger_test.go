package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceHandler_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithComponent(context.Background(), "cron")
	log.InfoContext(ctx, "recompute finished", "projects", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "cron", record["component"])
	assert.Equal(t, float64(3), record["projects"])
	assert.NotContains(t, record, "trace_id")
}

func TestNewHandler_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Environment: "production"}

	slog.New(NewHandler(cfg, &buf)).Info("hello")

	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNewHandler_DevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Environment: "development"}

	slog.New(NewHandler(cfg, &buf)).Debug("visible")

	assert.Contains(t, buf.String(), "visible")
}
