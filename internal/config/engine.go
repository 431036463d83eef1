package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EngineConfig holds the tunable reconciliation thresholds. Values are read
// from revstrux.yml when present and fall back to the compiled-in defaults.
type EngineConfig struct {
	Tolerance       float64      `mapstructure:"tolerance"`
	FuzzyReviewMin  float64      `mapstructure:"fuzzyReviewMin"`
	FuzzyConfirmMin float64      `mapstructure:"fuzzyConfirmMin"`
	EmailConfidence float64      `mapstructure:"emailConfidence"`
	TopFindings     int          `mapstructure:"topFindings"`
	Weights         ScoreWeights `mapstructure:"weights"`
}

type ScoreWeights struct {
	EntityMatch     float64 `mapstructure:"entityMatch"`
	BillingCoverage float64 `mapstructure:"billingCoverage"`
	Variance        float64 `mapstructure:"variance"`
	Lineage         float64 `mapstructure:"lineage"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Tolerance:       1.00,
		FuzzyReviewMin:  0.75,
		FuzzyConfirmMin: 0.95,
		EmailConfidence: 0.70,
		TopFindings:     5,
		Weights: ScoreWeights{
			EntityMatch:     0.25,
			BillingCoverage: 0.35,
			Variance:        0.25,
			Lineage:         0.15,
		},
	}
}

type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

func NewEngineConfigHolder() (*EngineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("revstrux")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/revstrux/config")
	v.AddConfigPath("/etc/revstrux")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REVSTRUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEngineConfig()
	v.SetDefault("engine.tolerance", defaults.Tolerance)
	v.SetDefault("engine.fuzzyReviewMin", defaults.FuzzyReviewMin)
	v.SetDefault("engine.fuzzyConfirmMin", defaults.FuzzyConfirmMin)
	v.SetDefault("engine.emailConfidence", defaults.EmailConfidence)
	v.SetDefault("engine.topFindings", defaults.TopFindings)
	v.SetDefault("engine.weights.entityMatch", defaults.Weights.EntityMatch)
	v.SetDefault("engine.weights.billingCoverage", defaults.Weights.BillingCoverage)
	v.SetDefault("engine.weights.variance", defaults.Weights.Variance)
	v.SetDefault("engine.weights.lineage", defaults.Weights.Lineage)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg EngineConfig
	if err := v.UnmarshalKey("engine", &cfg); err != nil {
		return nil, err
	}
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}

	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineConfig
		if err := v.UnmarshalKey("engine", &updated); err != nil {
			log.Printf("[engine-config] reload failed: %v", err)
			return
		}
		if err := validateEngineConfig(updated); err != nil {
			log.Printf("[engine-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[engine-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *EngineConfigHolder) Get() EngineConfig {
	return h.current.Load().(EngineConfig)
}

// NewStaticEngineConfigHolder wraps a fixed config. Used by tests.
func NewStaticEngineConfigHolder(cfg EngineConfig) *EngineConfigHolder {
	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateEngineConfig(cfg EngineConfig) error {
	if cfg.Tolerance < 0 {
		return errors.New("engine.tolerance cannot be negative")
	}
	if cfg.FuzzyReviewMin <= 0 || cfg.FuzzyReviewMin >= 1 {
		return errors.New("engine.fuzzyReviewMin must be in (0,1)")
	}
	if cfg.FuzzyConfirmMin <= cfg.FuzzyReviewMin || cfg.FuzzyConfirmMin > 1 {
		return errors.New("engine.fuzzyConfirmMin must be in (fuzzyReviewMin,1]")
	}
	sum := cfg.Weights.EntityMatch + cfg.Weights.BillingCoverage + cfg.Weights.Variance + cfg.Weights.Lineage
	if sum < 0.999 || sum > 1.001 {
		return errors.New("engine.weights must sum to 1.0")
	}
	return nil
}
