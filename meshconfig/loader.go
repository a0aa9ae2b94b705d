package meshconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoaderOptions configures Load.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// EnvFile is an optional dotenv file loaded before substitution. A
	// missing file is not an error.
	EnvFile string
	// SkipEnvSubstitution disables ${VAR} substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables Validate.
	SkipValidation bool
}

// DefaultLoaderOptions returns the default loader behavior.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config", EnvFile: ".env"}
}

// Load reads <ConfigDir>/<environment>.yaml, falling back to default.yaml
// and then config.yaml, applies defaults for anything unset, substitutes
// ${VAR} references, layers MESH_* environment overrides on top, and
// validates the result.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.EnvFile != "" {
		_ = godotenv.Load(options.EnvFile) // optional; absence is not an error
	}

	env := options.Environment
	if env == "" {
		env = Environment()
	}

	cfg, err := loadFirst(
		filepath.Join(options.ConfigDir, env+".yaml"),
		filepath.Join(options.ConfigDir, "default.yaml"),
		filepath.Join(options.ConfigDir, "config.yaml"),
	)
	if err != nil {
		def := DefaultConfig()
		def.Environment = env
		cfg = &def
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	fillDefaults(cfg)

	if !options.SkipEnvSubstitution {
		substituteConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		if errs := Validate(cfg); len(errs) > 0 {
			for _, e := range errs {
				if e.Severity == SeverityError {
					return nil, fmt.Errorf("configuration validation failed: %s: %s", e.Field, e.Message)
				}
			}
		}
	}

	return cfg, nil
}

// MustLoad loads configuration or panics. Intended for cmd/ entrypoints
// where a bad config is a startup-time fatal error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func loadFirst(paths ...string) (*Config, error) {
	var lastErr error
	for _, p := range paths {
		cfg, err := LoadFromFile(p)
		if err == nil {
			return cfg, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// LoadFromFile parses a single YAML or JSON config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s (tried YAML and JSON): %w", path, err)
		}
	}
	return &cfg, nil
}

// SaveToFile writes cfg as YAML, or JSON if path ends in .json.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// fillDefaults fills any zero-valued field with its DefaultConfig
// counterpart, so a partial document only overrides what it sets.
func fillDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Dedup.Capacity == 0 {
		cfg.Dedup = def.Dedup
	}
	if cfg.Relay.DefaultTTL == 0 {
		cfg.Relay = def.Relay
	}
	if cfg.Routing.StaleAfterMS == 0 {
		cfg.Routing = def.Routing
	}
	if cfg.Message.MaxPayloadBytes == 0 {
		cfg.Message = def.Message
	}
	if cfg.Scheduler.BandwidthBytesPerSec == 0 {
		cfg.Scheduler = def.Scheduler
	}
	if cfg.Store.MaxBytes == 0 {
		cfg.Store = def.Store
	}
	if cfg.Transport.SendRetryMax == 0 {
		cfg.Transport = def.Transport
	}
	if cfg.Heartbeat.IntervalMS == 0 {
		cfg.Heartbeat = def.Heartbeat
	}
	if cfg.Invite.DefaultTTLMS == 0 {
		cfg.Invite = def.Invite
	}
	if cfg.LightPing.IntervalMS == 0 {
		cfg.LightPing.IntervalMS = def.LightPing.IntervalMS
		cfg.LightPing.MaxParallelConnections = def.LightPing.MaxParallelConnections
		cfg.LightPing.Aggressiveness = def.LightPing.Aggressiveness
		cfg.LightPing.ActiveWindowMS = def.LightPing.ActiveWindowMS
	}
	if cfg.Logging.Level == "" {
		cfg.Logging = def.Logging
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics = def.Metrics
	}
}
