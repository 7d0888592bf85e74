package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	CaseRoot        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Simulation defaults, overridable per request.
	CellSize     float64
	Iterations   int
	SampleHeight float64
	GridSpacing  float64

	// Run-event publishing configuration. Enabled by setting brokers.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is merged in first,
// without overriding real environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	cellSize, err := parsePositiveFloat("CFD_CELL_SIZE", 3)
	if err != nil {
		return nil, err
	}
	sampleHeight, err := parsePositiveFloat("CFD_SAMPLE_HEIGHT", 1.75)
	if err != nil {
		return nil, err
	}
	gridSpacing, err := parsePositiveFloat("CFD_GRID_SPACING", 5)
	if err != nil {
		return nil, err
	}
	iterations, err := parseIterations()
	if err != nil {
		return nil, err
	}
	caseRoot, err := resolveCaseRoot()
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("CFD_KAFKA_BROKERS"))

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8765"),
		CaseRoot:        caseRoot,
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CellSize:        cellSize,
		Iterations:      iterations,
		SampleHeight:    sampleHeight,
		GridSpacing:     gridSpacing,
		KafkaBrokers:    brokers,
		KafkaTopic:      envOrDefault("CFD_KAFKA_TOPIC", "wind-run-events"),
		KafkaEnabled:    len(brokers) > 0,
	}

	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("CFD_KAFKA_BROKERS is set but CFD_KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// resolveCaseRoot defaults to ~/cfd, matching where operators expect case
// directories to accumulate.
func resolveCaseRoot() (string, error) {
	if v := os.Getenv("CFD_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("CFD_DIR unset and home directory unknown: %w", err)
	}
	return filepath.Join(home, "cfd"), nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseShutdownTimeout() (time.Duration, error) {
	s := envOrDefault("SHUTDOWN_TIMEOUT", "10s")
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid SHUTDOWN_TIMEOUT")
	}
	return d, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseIterations() (int, error) {
	s := os.Getenv("CFD_ITERATIONS")
	if s == "" {
		return 400, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 100000 {
		return 0, errors.New("invalid CFD_ITERATIONS")
	}
	return n, nil
}
