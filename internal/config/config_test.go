package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CFD_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8765", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.InDelta(t, 3.0, cfg.CellSize, 1e-12)
	assert.Equal(t, 400, cfg.Iterations)
	assert.InDelta(t, 1.75, cfg.SampleHeight, 1e-12)
	assert.InDelta(t, 5.0, cfg.GridSpacing, 1e-12)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "wind-run-events", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CFD_DIR", dir)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("CFD_CELL_SIZE", "2.5")
	t.Setenv("CFD_ITERATIONS", "800")
	t.Setenv("CFD_SAMPLE_HEIGHT", "10")
	t.Setenv("CFD_GRID_SPACING", "2")
	t.Setenv("CFD_KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("CFD_KAFKA_TOPIC", "custom-events")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, dir, cfg.CaseRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.InDelta(t, 2.5, cfg.CellSize, 1e-12)
	assert.Equal(t, 800, cfg.Iterations)
	assert.InDelta(t, 10.0, cfg.SampleHeight, 1e-12)
	assert.InDelta(t, 2.0, cfg.GridSpacing, 1e-12)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-events", cfg.KafkaTopic)
}

func TestLoad_DefaultCaseRootUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cfd"), cfg.CaseRoot)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidCellSize(t *testing.T) {
	t.Setenv("CFD_CELL_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CFD_CELL_SIZE")
}

func TestLoad_InvalidIterations(t *testing.T) {
	t.Setenv("CFD_ITERATIONS", "-5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CFD_ITERATIONS")
}

func TestLoad_IterationsTooLarge(t *testing.T) {
	t.Setenv("CFD_ITERATIONS", "1000000")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CFD_ITERATIONS")
}

func TestLoad_InvalidSampleHeight(t *testing.T) {
	t.Setenv("CFD_SAMPLE_HEIGHT", "nope")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CFD_SAMPLE_HEIGHT")
}
