package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: LINKGRAPH_[SECTION]_[KEY] (e.g., LINKGRAPH_BUILD_JOBS).
func ApplyEnvOverrides(cfg *Config) {
	// Build
	setEnvInt(&cfg.Build.Jobs, "LINKGRAPH_BUILD_JOBS")
	setEnvFloat64(&cfg.Build.RateLimit, "LINKGRAPH_BUILD_RATE_LIMIT")

	// Entry
	setEnvString(&cfg.Entry.Symbol, "LINKGRAPH_ENTRY_SYMBOL")
	setEnvString(&cfg.Entry.Match, "LINKGRAPH_ENTRY_MATCH")

	// Toolchain
	setEnvString(&cfg.Toolchain.Compiler, "LINKGRAPH_TOOLCHAIN_COMPILER")
	setEnvString(&cfg.Toolchain.Make, "LINKGRAPH_TOOLCHAIN_MAKE")
	setEnvList(&cfg.Toolchain.CFlags, "LINKGRAPH_TOOLCHAIN_CFLAGS")
	setEnvList(&cfg.Toolchain.LDFlags, "LINKGRAPH_TOOLCHAIN_LDFLAGS")
	setEnvDuration(&cfg.Toolchain.Timeout, "LINKGRAPH_TOOLCHAIN_TIMEOUT")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "LINKGRAPH_WATCH_DEBOUNCE")

	// History
	setEnvBool(&cfg.History.Enabled, "LINKGRAPH_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "LINKGRAPH_HISTORY_PATH")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "LINKGRAPH_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "LINKGRAPH_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "LINKGRAPH_OBSERVABILITY_ENABLE_TRACING")

	normalize(cfg)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Fields(val)
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
