package sbm

import (
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/graph-model-fitting/pkg/spectral"
)

// Config manages SBM fitting configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Model parameters
	v.SetDefault("model.directed", false)
	v.SetDefault("model.num_clusters", 0)
	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())

	// Spectral embedding
	v.SetDefault("spectral.method", string(spectral.MethodFull))
	v.SetDefault("spectral.rank", spectral.DefaultRank)
	v.SetDefault("spectral.oversampling", spectral.DefaultOversampling)
	v.SetDefault("spectral.power_iterations", spectral.DefaultPowerIterations)

	// k-means
	v.SetDefault("kmeans.n_init", spectral.DefaultNInit)
	v.SetDefault("kmeans.max_iterations", spectral.DefaultMaxIterations)
	v.SetDefault("kmeans.tolerance", spectral.DefaultTolerance)

	// Logging parameters
	v.SetDefault("logging.level", "info")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for model and algorithm parameters
func (c *Config) Directed() bool { return c.v.GetBool("model.directed") }
func (c *Config) NumClusters() int { return c.v.GetInt("model.num_clusters") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("algorithm.random_seed") }

func (c *Config) SpectralMethod() spectral.Method {
	return spectral.Method(c.v.GetString("spectral.method"))
}
func (c *Config) SpectralRank() int { return c.v.GetInt("spectral.rank") }
func (c *Config) Oversampling() int { return c.v.GetInt("spectral.oversampling") }
func (c *Config) PowerIterations() int { return c.v.GetInt("spectral.power_iterations") }
func (c *Config) KMeansNInit() int { return c.v.GetInt("kmeans.n_init") }
func (c *Config) KMeansMaxIter() int { return c.v.GetInt("kmeans.max_iterations") }
func (c *Config) KMeansTolerance() float64 { return c.v.GetFloat64("kmeans.tolerance") }

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

// SpectralOptions translates the configuration for the spectral package.
func (c *Config) SpectralOptions(rng *rand.Rand, logger *zerolog.Logger) spectral.Options {
	return spectral.Options{
		Spectrum: spectral.SpectrumOptions{
			Method:          c.SpectralMethod(),
			Rank:            c.SpectralRank(),
			Oversampling:    c.Oversampling(),
			PowerIterations: c.PowerIterations(),
			Rand:            rng,
		},
		KMeans: spectral.KMeansOptions{
			NInit:         c.KMeansNInit(),
			MaxIterations: c.KMeansMaxIter(),
			Tolerance:     c.KMeansTolerance(),
			Rand:          rng,
			Logger:        logger,
		},
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
	}).Level(level).With().Timestamp().Str("service", "sbm").Logger()
}
