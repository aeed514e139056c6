package gof

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages goodness-of-fit configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	v.SetDefault("gof.runs", DefaultRuns)
	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Output parameters
	v.SetDefault("output.format", FormatJSON)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

func (c *Config) Runs() int { return c.v.GetInt("gof.runs") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("algorithm.random_seed") }
func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }
func (c *Config) OutputFormat() string { return c.v.GetString("output.format") }
func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Viper exposes the underlying store so callers can bind flags.
func (c *Config) Viper() *viper.Viper { return c.v }

// Options translates the configuration for SbmCheck and LsmCheck.
func (c *Config) Options(logger *zerolog.Logger) Options {
	return Options{
		Runs:     c.Runs(),
		Workers:  c.NumWorkers(),
		Seed:     uint64(c.RandomSeed()),
		Progress: c.EnableProgress(),
		Logger:   logger,
	}
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "gof").Logger()
}
