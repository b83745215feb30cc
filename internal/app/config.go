package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds process-wide configuration read from the environment at
// startup. Per-provider credentials are NOT part of this struct; each
// adapter reads its own env vars at construction time, so
// adding a provider never means touching Config.
type Config struct {
	ListenAddr string
	LogLevel   string

	CatalogFile string

	MetricsDir             string
	MetricsMaxLogLength    int
	MetricsMaxArchiveFiles int

	// Security & hardening.
	AdminToken  string   // guards /get_stats and /health
	CORSOrigins []string // allowed CORS origins; empty = ["*"]

	// OpenTelemetry tracing (opt-in).
	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr: getEnv("LLMGATE_LISTEN_ADDR", ":8080"),
		LogLevel:   getEnv("LLMGATE_LOG_LEVEL", "info"),

		CatalogFile: getEnv("LLMGATE_CATALOG_FILE", "catalog.yaml"),

		MetricsDir:             getEnv("LLMGATE_METRICS_DIR", "metrics"),
		MetricsMaxLogLength:    getEnvInt("LLMGATE_METRICS_MAX_LOG_LENGTH", 10_000),
		MetricsMaxArchiveFiles: getEnvInt("LLMGATE_METRICS_MAX_ARCHIVE_FILES", 100),

		AdminToken:  getEnv("LLMGATE_ADMIN_TOKEN", ""),
		CORSOrigins: getEnvStringSlice("LLMGATE_CORS_ORIGINS", nil),

		OTelEnabled:     getEnvBool("LLMGATE_OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("LLMGATE_OTEL_ENDPOINT", "localhost:4318"),
		OTelServiceName: getEnv("LLMGATE_OTEL_SERVICE_NAME", "llmgate"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks config values for obviously invalid settings.
func (c Config) Validate() error {
	if c.CatalogFile == "" {
		return fmt.Errorf("LLMGATE_CATALOG_FILE must not be empty")
	}
	if c.MetricsMaxLogLength <= 0 {
		return fmt.Errorf("LLMGATE_METRICS_MAX_LOG_LENGTH must be > 0, got %d", c.MetricsMaxLogLength)
	}
	if c.MetricsMaxArchiveFiles <= 0 {
		return fmt.Errorf("LLMGATE_METRICS_MAX_ARCHIVE_FILES must be > 0, got %d", c.MetricsMaxArchiveFiles)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvStringSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				result = append(result, s)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return def
}
