package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: AUTOCOMPLETE_[SECTION]_[KEY] (e.g., AUTOCOMPLETE_CACHE_EXPIRATION).
// AUTOCOMPLETE_ARGUMENTS is split on whitespace.
func ApplyEnvOverrides(cfg *Config) {
	if val, ok := os.LookupEnv("AUTOCOMPLETE_ARGUMENTS"); ok {
		slog.Debug("applying env override", "key", "AUTOCOMPLETE_ARGUMENTS")
		cfg.Arguments = strings.Fields(val)
	}

	// Cache
	setEnvDuration(&cfg.Cache.Expiration, "AUTOCOMPLETE_CACHE_EXPIRATION")
	setEnvDuration(&cfg.Cache.CheckInterval, "AUTOCOMPLETE_CACHE_CHECK_INTERVAL")
	setEnvInt(&cfg.Cache.MaxEntries, "AUTOCOMPLETE_CACHE_MAX_ENTRIES")

	// Completion
	setEnvBool(&cfg.Completion.HideInaccessible, "AUTOCOMPLETE_COMPLETION_HIDE_INACCESSIBLE")
	setEnvInt(&cfg.Completion.MaxResults, "AUTOCOMPLETE_COMPLETION_MAX_RESULTS")

	// Frontend
	setEnvInt(&cfg.Frontend.MaxIncludeDepth, "AUTOCOMPLETE_FRONTEND_MAX_INCLUDE_DEPTH")
	setEnvInt(&cfg.Frontend.MaxIncludeFiles, "AUTOCOMPLETE_FRONTEND_MAX_INCLUDE_FILES")

	// Watch
	setEnvBool(&cfg.Watch.Enabled, "AUTOCOMPLETE_WATCH_ENABLED")
	setEnvDuration(&cfg.Watch.Debounce, "AUTOCOMPLETE_WATCH_DEBOUNCE")

	// Warmup
	setEnvFloat64(&cfg.Warmup.Rate, "AUTOCOMPLETE_WARMUP_RATE")
	setEnvInt(&cfg.Warmup.Burst, "AUTOCOMPLETE_WARMUP_BURST")
	setEnvInt(&cfg.Warmup.Concurrency, "AUTOCOMPLETE_WARMUP_CONCURRENCY")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "AUTOCOMPLETE_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "AUTOCOMPLETE_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "AUTOCOMPLETE_OBSERVABILITY_SERVICE_NAME")

	// Log
	setEnvString(&cfg.Log.Level, "AUTOCOMPLETE_LOG_LEVEL")
	setEnvString(&cfg.Log.Format, "AUTOCOMPLETE_LOG_FORMAT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
