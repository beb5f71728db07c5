// Package config loads trampoline CLI configuration from a file, the
// environment and defaults.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/errors"
	"github.com/wippyai/wasm-trampoline/linker"
)

// EnvPrefix prefixes environment overrides, e.g. TRAMPOLINE_LOG_LEVEL.
const EnvPrefix = "TRAMPOLINE"

// validate is shared; validators cache struct metadata.
var validate = validator.New()

// Config is the complete CLI configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Linker  LinkerConfig  `mapstructure:"linker"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Driver  DriverConfig  `mapstructure:"driver"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type LinkerConfig struct {
	SemverMatching   bool `mapstructure:"semver_matching"`
	ResolveCacheSize int  `mapstructure:"resolve_cache_size" validate:"gte=0"`
	// Skip lists regular expressions over "namespace#name"; matching
	// imports are left unbound.
	Skip []string `mapstructure:"skip" validate:"dive,required"`
}

type EngineConfig struct {
	MemoryLimitPages   uint32 `mapstructure:"memory_limit_pages" validate:"lte=65536"`
	CloseOnContextDone bool   `mapstructure:"close_on_context_done"`
}

type DriverConfig struct {
	MaxPending int `mapstructure:"max_pending" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "console"},
		Linker: LinkerConfig{SemverMatching: true, ResolveCacheSize: linker.DefaultResolveCacheSize},
		Engine: EngineConfig{CloseOnContextDone: true},
	}
}

// Load reads path (any format viper understands; "" for none), applies
// TRAMPOLINE_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("linker.semver_matching", d.Linker.SemverMatching)
	v.SetDefault("linker.resolve_cache_size", d.Linker.ResolveCacheSize)
	v.SetDefault("linker.skip", []string{})
	v.SetDefault("engine.memory_limit_pages", d.Engine.MemoryLimitPages)
	v.SetDefault("engine.close_on_context_done", d.Engine.CloseOnContextDone)
	v.SetDefault("driver.max_pending", d.Driver.MaxPending)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Key(path).
				Detail("read config").
				Cause(err).
				Build()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and that every skip pattern compiles.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid config")
	}
	_, err := c.filter()
	return err
}

// NewLogger builds the process logger.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}

	zc := zap.NewDevelopmentConfig()
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// LinkerOptions maps the linker section onto linker.Options.
func (c *Config) LinkerOptions() (linker.Options, error) {
	opts := linker.DefaultOptions()
	opts.SemverMatching = c.Linker.SemverMatching
	opts.ResolveCacheSize = c.Linker.ResolveCacheSize

	filter, err := c.filter()
	if err != nil {
		return linker.Options{}, err
	}
	if filter != nil {
		opts.Filter = filter
	}
	return opts, nil
}

func (c *Config) filter() (linker.ImportFilter, error) {
	if len(c.Linker.Skip) == 0 {
		return nil, nil
	}
	fs := make(linker.Filters, 0, len(c.Linker.Skip))
	for _, p := range c.Linker.Skip {
		f, err := linker.NewRegexFilter(p, linker.Skip)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return fs, nil
}

// EngineOptions maps the engine section onto engine.Config.
func (c *Config) EngineOptions() *engine.Config {
	return &engine.Config{
		MemoryLimitPages:   c.Engine.MemoryLimitPages,
		CloseOnContextDone: c.Engine.CloseOnContextDone,
	}
}

// NewDriver returns a session driver honouring the driver section.
func (c *Config) NewDriver() *linker.Driver {
	return &linker.Driver{MaxPending: c.Driver.MaxPending}
}
