// Package config loads every orchestration-core knob from the
// environment, with an optional config.yaml overlay (env always wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avitoscout/orchestrator/internal/logging"
)

// Config is the fully-resolved set of environment knobs for every process
// in the fleet (orchestrator, browser workers, validation workers).
type Config struct {
	Postgres Postgres

	TotalBrowserWorkers    int
	TotalValidationWorkers int
	CatalogBufferSize      int
	CatalogMaxPages        int

	HeartbeatTimeoutSeconds int
	HeartbeatUpdateInterval int

	MinPrice           float64
	MinValidatedItems  int
	MinSellerReviews   int
	EnablePriceFilter  bool
	EnableAIValidation bool
	RequireArticulum   bool
	SkipObjectParsing  bool
	StopWords          []string

	ReparseMode              bool
	MinReparseIntervalHours  int

	ProxyWaitTimeout time.Duration
	ContainerID      string

	RotationBudget int

	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string

	BrowserDriverAddr string

	RedisAddr string

	AdminJWTSecret string
	OpsHTTPAddr    string

	BlobBucketName string

	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string

	LogMode string
}

// Postgres holds connection parameters following the usual
// POSTGRES_HOST/PORT/USER/PASSWORD/NAME convention.
type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// fileOverlay is the optional config.yaml shape. Only a handful of knobs are
// exposed this way; everything else is env-only. Env values always win over
// the file, so the file is purely a set of defaults for local/dev use.
type fileOverlay struct {
	TotalBrowserWorkers    *int    `yaml:"total_browser_workers"`
	TotalValidationWorkers *int    `yaml:"total_validation_workers"`
	CatalogBufferSize      *int    `yaml:"catalog_buffer_size"`
	MinPrice               *float64 `yaml:"min_price"`
	MinValidatedItems      *int    `yaml:"min_validated_items"`
	LogMode                *string `yaml:"log_mode"`
}

// Load resolves configuration from config.yaml (if CONFIG_FILE/./config.yaml
// exists) and then the environment, with environment variables always
// overriding file values.
func Load(log *logging.Logger) (*Config, error) {
	overlay := loadFileOverlay(log)

	cfg := &Config{
		Postgres: Postgres{
			Host:     getEnv("POSTGRES_HOST", "localhost", log),
			Port:     getEnv("POSTGRES_PORT", "5432", log),
			User:     getEnv("POSTGRES_USER", "postgres", log),
			Password: getEnv("POSTGRES_PASSWORD", "", log),
			Name:     getEnv("POSTGRES_NAME", "avitoscout", log),
		},

		TotalBrowserWorkers:    getEnvAsIntOverlay("TOTAL_BROWSER_WORKERS", 10, overlay.TotalBrowserWorkers, log),
		TotalValidationWorkers: getEnvAsIntOverlay("TOTAL_VALIDATION_WORKERS", 2, overlay.TotalValidationWorkers, log),
		CatalogBufferSize:      getEnvAsIntOverlay("CATALOG_BUFFER_SIZE", 5, overlay.CatalogBufferSize, log),
		CatalogMaxPages:        getEnvAsInt("CATALOG_MAX_PAGES", 10, log),

		HeartbeatTimeoutSeconds: getEnvAsInt("HEARTBEAT_TIMEOUT_SECONDS", 1800, log),
		HeartbeatUpdateInterval: getEnvAsInt("HEARTBEAT_UPDATE_INTERVAL", 30, log),

		MinPrice:           getEnvAsFloatOverlay("MIN_PRICE", 1000, overlay.MinPrice, log),
		MinValidatedItems:  getEnvAsIntOverlay("MIN_VALIDATED_ITEMS", 3, overlay.MinValidatedItems, log),
		MinSellerReviews:   getEnvAsInt("MIN_SELLER_REVIEWS", 0, log),
		EnablePriceFilter:  getEnvAsBool("ENABLE_PRICE_VALIDATION", true, log),
		EnableAIValidation: getEnvAsBool("ENABLE_AI_VALIDATION", false, log),
		RequireArticulum:   getEnvAsBool("REQUIRE_ARTICULUM_IN_TEXT", true, log),
		SkipObjectParsing:  getEnvAsBool("SKIP_OBJECT_PARSING", false, log),
		StopWords:          getEnvAsStringSlice("STOP_WORDS", nil, log),

		ReparseMode:             getEnvAsBool("REPARSE_MODE", false, log),
		MinReparseIntervalHours: getEnvAsInt("MIN_REPARSE_INTERVAL_HOURS", 24, log),

		ProxyWaitTimeout: time.Duration(getEnvAsInt("PROXY_WAIT_TIMEOUT", 10, log)) * time.Second,
		ContainerID:      getEnv("CONTAINER_ID", "", log),

		RotationBudget: getEnvAsInt("PROXY_ROTATION_BUDGET", 10, log),

		LLMProvider: getEnv("LLM_PROVIDER", "generic", log),
		LLMAPIKey:   getEnv("LLM_API_KEY", "", log),
		LLMBaseURL:  getEnv("LLM_BASE_URL", "", log),
		LLMModel:    getEnv("LLM_MODEL", "", log),

		BrowserDriverAddr: getEnv("BROWSER_DRIVER_ADDR", "127.0.0.1:7001", log),

		RedisAddr: getEnv("REDIS_ADDR", "", log),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", "", log),
		OpsHTTPAddr:    getEnv("OPS_HTTP_ADDR", ":8090", log),

		BlobBucketName: getEnv("LISTING_IMAGES_GCS_BUCKET", "", log),

		TemporalAddress:   getEnv("TEMPORAL_ADDRESS", "", log),
		TemporalNamespace: getEnv("TEMPORAL_NAMESPACE", "avitoscout", log),
		TemporalTaskQueue: getEnv("TEMPORAL_TASK_QUEUE", "avitoscout-reparse", log),

		LogMode: getEnvOverlayStr("LOG_MODE", "development", overlay.LogMode, log),
	}

	if cfg.TotalBrowserWorkers < 0 || cfg.TotalValidationWorkers < 0 {
		return nil, fmt.Errorf("config: worker counts must be non-negative")
	}
	return cfg, nil
}

func loadFileOverlay(log *logging.Logger) fileOverlay {
	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "config.yaml"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileOverlay{}
	}
	var o fileOverlay
	if err := yaml.Unmarshal(raw, &o); err != nil {
		if log != nil {
			log.Warn("config.yaml present but unparseable, ignoring", "path", path, "error", err)
		}
		return fileOverlay{}
	}
	return o
}

func getEnv(key, defaultVal string, log *logging.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func getEnvOverlayStr(key, defaultVal string, overlayVal *string, log *logging.Logger) string {
	def := defaultVal
	if overlayVal != nil && strings.TrimSpace(*overlayVal) != "" {
		def = *overlayVal
	}
	return getEnv(key, def, log)
}

func getEnvAsInt(key string, defaultVal int, log *logging.Logger) int {
	return getEnvAsIntOverlay(key, defaultVal, nil, log)
}

func getEnvAsIntOverlay(key string, defaultVal int, overlayVal *int, log *logging.Logger) int {
	def := defaultVal
	if overlayVal != nil {
		def = *overlayVal
	}
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(valStr))
	if err != nil {
		if log != nil {
			log.Debug("could not parse int env var, using default", "provided", valStr, "default", def)
		}
		return def
	}
	return i
}

func getEnvAsFloatOverlay(key string, defaultVal float64, overlayVal *float64, log *logging.Logger) float64 {
	def := defaultVal
	if overlayVal != nil {
		def = *overlayVal
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
	if err != nil {
		return def
	}
	return f
}

// getEnvAsStringSlice parses a comma-separated list env var, trimming
// whitespace and dropping empty entries. An unset var returns defaultVal.
func getEnvAsStringSlice(key string, defaultVal []string, log *logging.Logger) []string {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	parts := strings.Split(valStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if log != nil {
		log.With("env_var", key).Debug("parsed string-slice env var", "count", len(out))
	}
	return out
}

func getEnvAsBool(key string, defaultVal bool, log *logging.Logger) bool {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	v := strings.ToLower(strings.TrimSpace(valStr))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}
