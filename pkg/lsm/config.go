package lsm

import (
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages latent space model configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Model parameters
	v.SetDefault("lsm.dimension", DefaultDimension)
	v.SetDefault("lsm.initial_bias", 0.0)
	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())

	// Optimizer
	v.SetDefault("optimizer.max_iterations", DefaultMaxIterations)
	v.SetDefault("optimizer.gradient_threshold", DefaultGradientThreshold)

	// Logging parameters
	v.SetDefault("logging.level", "info")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

func (c *Config) Dimension() int { return c.v.GetInt("lsm.dimension") }
func (c *Config) InitialBias() float64 { return c.v.GetFloat64("lsm.initial_bias") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("algorithm.random_seed") }
func (c *Config) MaxIterations() int { return c.v.GetInt("optimizer.max_iterations") }
func (c *Config) GradientThreshold() float64 { return c.v.GetFloat64("optimizer.gradient_threshold") }
func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Viper exposes the underlying store so callers can bind flags.
func (c *Config) Viper() *viper.Viper { return c.v }

// NewRand returns a generator seeded from algorithm.random_seed.
func (c *Config) NewRand() *rand.Rand {
	seed := uint64(c.RandomSeed())
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// FitOptions translates the configuration for Fit.
func (c *Config) FitOptions(logger *zerolog.Logger) FitOptions {
	return FitOptions{
		Dimension:         c.Dimension(),
		InitialBias:       c.InitialBias(),
		MaxIterations:     c.MaxIterations(),
		GradientThreshold: c.GradientThreshold(),
		Logger:            logger,
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
	}).Level(level).With().Timestamp().Str("service", "lsm").Logger()
}
