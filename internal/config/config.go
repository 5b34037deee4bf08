package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Aliases    AliasesConfig    `yaml:"aliases" mapstructure:"aliases"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Confidence ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the roster and its extracted locations. URLs is an
// optional expert URL list joined onto researchers by last name.
type InputConfig struct {
	Roster    string `yaml:"roster" mapstructure:"roster"`
	Locations string `yaml:"locations" mapstructure:"locations"`
	URLs      string `yaml:"urls" mapstructure:"urls"`
}

// OutputConfig sets where run documents are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// AliasesConfig points at an optional alias override file.
type AliasesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// GeocodeConfig holds Nominatim settings.
type GeocodeConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	// Consecutive geocoder failures that stop further calls for
	// CircuitResetSecs. 0 disables the breaker.
	CircuitFailureThreshold int `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	HaikuModel          string `yaml:"haiku_model" mapstructure:"haiku_model"`
	MaxBatchSize        int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	NoBatch             bool   `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int    `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
}

// ConfidenceConfig configures the location confidence pass.
type ConfidenceConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	BatchSize        int  `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs      int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Concurrency      int  `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAttempts      int  `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int  `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// PipelineConfig configures row batching.
type PipelineConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOPROFILES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.roster", "data/expert_profiles.csv")
	v.SetDefault("input.locations", "data/extracted_locations.jsonl")
	v.SetDefault("input.urls", "")
	v.SetDefault("output.dir", "output")
	v.SetDefault("aliases.file", "")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "geoprofiles/1.0")
	v.SetDefault("geocode.min_interval_ms", 600)
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("geocode.circuit_failure_threshold", 5)
	v.SetDefault("geocode.circuit_reset_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_batch_size", 10000)
	v.SetDefault("anthropic.no_batch", false)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("confidence.enabled", true)
	v.SetDefault("confidence.batch_size", 20)
	v.SetDefault("confidence.timeout_secs", 60)
	v.SetDefault("confidence.concurrency", 1)
	v.SetDefault("confidence.max_attempts", 3)
	v.SetDefault("confidence.initial_backoff_ms", 500)
	v.SetDefault("pipeline.batch_size", 100)
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "run",
// "extract" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "run":
		require(c.Input.Roster != "", "input.roster is required")
		require(c.Input.Locations != "", "input.locations is required")
		require(c.Output.Dir != "", "output.dir is required")
		require(c.Geocode.BaseURL != "", "geocode.base_url is required")
		require(c.Geocode.UserAgent != "", "geocode.user_agent is required")
		require(c.Pipeline.BatchSize > 0, "pipeline.batch_size must be positive")
		if c.Confidence.Enabled {
			require(c.Confidence.BatchSize > 0, "confidence.batch_size must be positive")
		}
	case "extract":
		require(c.Input.Roster != "", "input.roster is required")
		require(c.Input.Locations != "", "input.locations is required")
		require(c.Anthropic.Key != "", "anthropic.key is required")
	case "serve":
		require(c.Output.Dir != "", "output.dir is required")
		require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
