package meshconfig

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// Substitute replaces ${VAR} or ${VAR:default} references in input with
// environment variable values.
func Substitute(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// substituteConfig substitutes ${VAR} references in every string field
// that plausibly carries one — addresses and paths, not numeric tunables.
func substituteConfig(cfg *Config) {
	cfg.Environment = Substitute(cfg.Environment)
	cfg.Logging.Level = Substitute(cfg.Logging.Level)
	cfg.Logging.Format = Substitute(cfg.Logging.Format)
	cfg.Logging.Output = Substitute(cfg.Logging.Output)
	cfg.Metrics.Addr = Substitute(cfg.Metrics.Addr)
	cfg.Metrics.Path = Substitute(cfg.Metrics.Path)
}

// Environment returns the current environment from MESH_ENV, falling back
// to ENVIRONMENT, then "development".
func Environment() string {
	if v := os.Getenv("MESH_ENV"); v != "" {
		return strings.ToLower(v)
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		return strings.ToLower(v)
	}
	return "development"
}

// IsProduction reports whether Environment() is "production".
func IsProduction() bool { return Environment() == "production" }

// applyEnvironmentOverrides lets MESH_* environment variables win over
// whatever the config file set, for the handful of knobs operators most
// often need to override without editing a file (container deployments).
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("MESH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MESH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MESH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("MESH_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("MESH_STORE_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Store.MaxBytes = n
		}
	}
	if v := os.Getenv("MESH_LIGHT_PING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LightPing.Enabled = b
		}
	}
}
