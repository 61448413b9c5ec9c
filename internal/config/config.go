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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings. Classification runs on
// the cheaper model; scoring on the stronger one.
type AnthropicConfig struct {
	Key                 string  `yaml:"key" mapstructure:"key"`
	ClassifyModel       string  `yaml:"classify_model" mapstructure:"classify_model"`
	ScoreModel          string  `yaml:"score_model" mapstructure:"score_model"`
	MaxTokens           int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature         float64 `yaml:"temperature" mapstructure:"temperature"`
	RepairAttempts      int     `yaml:"repair_attempts" mapstructure:"repair_attempts"`
	NoBatch             bool    `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int     `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
}

// ScoringConfig configures post-processing of QA scores.
type ScoringConfig struct {
	MinPassingScore float64 `yaml:"min_passing_score" mapstructure:"min_passing_score"`

	// KnockoutOverride forces TotalScore to KnockoutScore when any
	// knockout violation is flagged. Off by default: the rubric calls
	// knockouts an immediate fail, but the stored behavior leaves the
	// model's total untouched.
	KnockoutOverride bool    `yaml:"knockout_override" mapstructure:"knockout_override"`
	KnockoutScore    float64 `yaml:"knockout_score" mapstructure:"knockout_score"`

	// StrictTotals recomputes score_breakdown and total_score from the
	// component fields using Weights instead of trusting the model's
	// arithmetic. Off by default.
	StrictTotals bool    `yaml:"strict_totals" mapstructure:"strict_totals"`
	Weights      Weights `yaml:"weights" mapstructure:"weights"`
}

// Weights are the category weights used when StrictTotals is on. They
// mirror the advisory percentages in the rubric text.
type Weights struct {
	Opening       float64 `yaml:"opening" mapstructure:"opening"`
	Communication float64 `yaml:"communication" mapstructure:"communication"`
	Negotiation   float64 `yaml:"negotiation" mapstructure:"negotiation"`
}

// BatchConfig configures batch transcript processing.
type BatchConfig struct {
	MaxConcurrent     int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("CALLQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "callqa.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.score_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.repair_attempts", 2)
	v.SetDefault("anthropic.small_batch_threshold", 8)
	v.SetDefault("scoring.min_passing_score", 0.85)
	v.SetDefault("scoring.knockout_override", false)
	v.SetDefault("scoring.knockout_score", 0.0)
	v.SetDefault("scoring.strict_totals", false)
	v.SetDefault("scoring.weights.opening", 0.06)
	v.SetDefault("scoring.weights.communication", 0.25)
	v.SetDefault("scoring.weights.negotiation", 0.40)
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("batch.requests_per_second", 2.0)

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
