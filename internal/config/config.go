// Package config loads and validates the detection configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Detect   DetectConfig   `yaml:"detect" mapstructure:"detect"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Weights  Weights        `yaml:"weights" mapstructure:"weights"`
	Timing   TimingConfig   `yaml:"timing" mapstructure:"timing"`
	Bands    Bands          `yaml:"bands" mapstructure:"bands"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy" mapstructure:"taxonomy"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DetectConfig configures the scoring engine.
type DetectConfig struct {
	BaseScore      float64     `yaml:"base_score" mapstructure:"base_score"`
	MinReportScore float64     `yaml:"min_report_score" mapstructure:"min_report_score"`
	Workers        int         `yaml:"workers" mapstructure:"workers"`
	BatchSize      int         `yaml:"batch_size" mapstructure:"batch_size"`
	Block          BlockConfig `yaml:"block" mapstructure:"block"`
}

// BlockConfig bounds the candidate window around the award completion date.
type BlockConfig struct {
	MaxDaysBefore int `yaml:"max_days_before" mapstructure:"max_days_before"`
	MaxDaysAfter  int `yaml:"max_days_after" mapstructure:"max_days_after"`
}

// ResolverConfig configures fuzzy vendor-name matching.
type ResolverConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	FuzzyDiscount  float64 `yaml:"fuzzy_discount" mapstructure:"fuzzy_discount"`
}

// Weights holds the maximum weighted contribution of each signal.
type Weights struct {
	AgencyContinuity float64 `yaml:"agency_continuity" mapstructure:"agency_continuity"`
	TimingProximity  float64 `yaml:"timing_proximity" mapstructure:"timing_proximity"`
	CompetitionType  float64 `yaml:"competition_type" mapstructure:"competition_type"`
	Patent           float64 `yaml:"patent" mapstructure:"patent"`
	TechArea         float64 `yaml:"tech_area" mapstructure:"tech_area"`
	VendorMatch      float64 `yaml:"vendor_match" mapstructure:"vendor_match"`
}

// Sum returns the total of all signal weights.
func (w Weights) Sum() float64 {
	return w.AgencyContinuity + w.TimingProximity + w.CompetitionType +
		w.Patent + w.TechArea + w.VendorMatch
}

// TimingWindow is one step of the timing-proximity function: gaps up to
// MaxDays days score Score.
type TimingWindow struct {
	MaxDays int     `yaml:"max_days" mapstructure:"max_days"`
	Score   float64 `yaml:"score" mapstructure:"score"`
}

// TimingConfig configures the timing-proximity step function.
type TimingConfig struct {
	Windows       []TimingWindow `yaml:"windows" mapstructure:"windows"`
	BeyondScore   float64        `yaml:"beyond_score" mapstructure:"beyond_score"`
	NegativeScore float64        `yaml:"negative_score" mapstructure:"negative_score"`
}

// Bands holds the confidence-band thresholds on the likelihood score.
type Bands struct {
	High   float64 `yaml:"high" mapstructure:"high"`
	Likely float64 `yaml:"likely" mapstructure:"likely"`
}

// TaxonomyConfig points at the technology-area taxonomy file. An empty path
// selects the built-in taxonomy.
type TaxonomyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the transition store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`                 // sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"` // postgres
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
	v.SetEnvPrefix("TRANSITION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("detect.base_score", 0.5)
	v.SetDefault("detect.min_report_score", 0.0)
	v.SetDefault("detect.workers", 8)
	v.SetDefault("detect.batch_size", 500)
	v.SetDefault("detect.block.max_days_before", 180)
	v.SetDefault("detect.block.max_days_after", 1095)
	v.SetDefault("resolver.fuzzy_threshold", 0.80)
	v.SetDefault("resolver.fuzzy_discount", 0.90)
	v.SetDefault("weights.agency_continuity", 0.0625)
	v.SetDefault("weights.timing_proximity", 0.20)
	v.SetDefault("weights.competition_type", 0.04)
	v.SetDefault("weights.patent", 0.05)
	v.SetDefault("weights.tech_area", 0.02)
	v.SetDefault("weights.vendor_match", 0.0625)
	v.SetDefault("timing.windows", []map[string]any{
		{"max_days": 90, "score": 1.0},
		{"max_days": 180, "score": 0.7},
		{"max_days": 365, "score": 0.4},
	})
	v.SetDefault("timing.beyond_score", 0.1)
	v.SetDefault("timing.negative_score", 0.05)
	v.SetDefault("bands.high", 0.85)
	v.SetDefault("bands.likely", 0.65)
	v.SetDefault("taxonomy.path", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "transitions.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default returns the built-in configuration without consulting file or
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks the scoring configuration eagerly. Any violation is fatal
// at startup; nothing is clamped or repaired per record at runtime.
func (c *Config) Validate() error {
	var errs []string

	weights := []struct {
		name  string
		value float64
	}{
		{"weights.agency_continuity", c.Weights.AgencyContinuity},
		{"weights.timing_proximity", c.Weights.TimingProximity},
		{"weights.competition_type", c.Weights.CompetitionType},
		{"weights.patent", c.Weights.Patent},
		{"weights.tech_area", c.Weights.TechArea},
		{"weights.vendor_match", c.Weights.VendorMatch},
	}
	for _, w := range weights {
		if w.value < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	if c.Detect.BaseScore < 0 || c.Detect.BaseScore > 1 {
		errs = append(errs, "detect.base_score must be in [0,1]")
	}
	if max := c.Detect.BaseScore + c.Weights.Sum(); max > 1+1e-9 {
		errs = append(errs, fmt.Sprintf("base_score + weight sum must be <= 1, got %.4f", max))
	}
	if c.Detect.MinReportScore < 0 || c.Detect.MinReportScore > 1 {
		errs = append(errs, "detect.min_report_score must be in [0,1]")
	}
	if c.Detect.Workers < 1 {
		errs = append(errs, "detect.workers must be >= 1")
	}
	if c.Detect.BatchSize < 1 {
		errs = append(errs, "detect.batch_size must be >= 1")
	}
	if c.Detect.Block.MaxDaysBefore < 0 {
		errs = append(errs, "detect.block.max_days_before must be >= 0")
	}
	if c.Detect.Block.MaxDaysAfter < 0 {
		errs = append(errs, "detect.block.max_days_after must be >= 0")
	}

	if c.Resolver.FuzzyThreshold <= 0 || c.Resolver.FuzzyThreshold > 1 {
		errs = append(errs, "resolver.fuzzy_threshold must be in (0,1]")
	}
	if c.Resolver.FuzzyDiscount <= 0 || c.Resolver.FuzzyDiscount > 1 {
		errs = append(errs, "resolver.fuzzy_discount must be in (0,1]")
	}

	if len(c.Timing.Windows) == 0 {
		errs = append(errs, "timing.windows must not be empty")
	}
	lastScore := 1.0
	for i, w := range c.Timing.Windows {
		if w.MaxDays <= 0 {
			errs = append(errs, fmt.Sprintf("timing.windows[%d].max_days must be > 0", i))
		}
		if i > 0 && w.MaxDays <= c.Timing.Windows[i-1].MaxDays {
			errs = append(errs, fmt.Sprintf("timing.windows[%d].max_days must exceed previous window", i))
		}
		if w.Score < 0 || w.Score > 1 {
			errs = append(errs, fmt.Sprintf("timing.windows[%d].score must be in [0,1]", i))
		}
		if i > 0 && w.Score > c.Timing.Windows[i-1].Score {
			errs = append(errs, fmt.Sprintf("timing.windows[%d].score must not exceed previous window", i))
		}
		lastScore = w.Score
	}
	if c.Timing.BeyondScore < 0 || c.Timing.BeyondScore > lastScore {
		errs = append(errs, fmt.Sprintf("timing.beyond_score must be in [0,%.2f]", lastScore))
	}
	if c.Timing.NegativeScore < 0 || c.Timing.NegativeScore > 1 {
		errs = append(errs, "timing.negative_score must be in [0,1]")
	}

	if c.Bands.Likely <= 0 || c.Bands.High <= c.Bands.Likely || c.Bands.High > 1 {
		errs = append(errs, fmt.Sprintf("bands must satisfy 0 < likely < high <= 1, got likely=%.4f high=%.4f", c.Bands.Likely, c.Bands.High))
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
