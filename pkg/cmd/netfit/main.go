package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gilchrisn/graph-model-fitting/pkg/gof"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("netfit failed")
		os.Exit(1)
	}
}

// flag name -> config key, shared by every config that knows the key
var flagKeys = map[string]string{
	"log-level":    "logging.level",
	"seed":         "algorithm.random_seed",
	"directed":     "model.directed",
	"clusters":     "model.num_clusters",
	"svd":          "spectral.method",
	"rank":         "spectral.rank",
	"kmeans-init":  "kmeans.n_init",
	"dim":          "lsm.dimension",
	"initial-bias": "lsm.initial_bias",
	"max-iter":     "optimizer.max_iterations",
	"runs":         "gof.runs",
	"workers":      "performance.num_workers",
	"format":       "output.format",
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "netfit",
		Short: "Fit, simulate and check stochastic block and latent space models",
		Long: `netfit fits stochastic block models (spectral clustering plus block
probability estimation) and latent space models (MDS initialization plus
BFGS) to adjacency matrices stored as whitespace-delimited 0/1 text, and
checks the fits by comparing simulated networks with the observed one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(mustString(cmd, "log-level"))
			if err != nil {
				return err
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.TimeOnly,
			}).Level(level).With().Timestamp().Logger()
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "configuration file (yaml, json or toml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error, disabled)")
	pf.Int64("seed", 0, "random seed (default: time based)")
	pf.StringP("out", "o", "", "output file (default: stdout)")
	pf.String("format", gof.FormatJSON, "output format for results and reports (json or yaml)")

	rootCmd.AddCommand(newSpectrumCmd())
	rootCmd.AddCommand(newSbmCmd())
	rootCmd.AddCommand(newLsmCmd())
	rootCmd.AddCommand(newFilterCmd())
	return rootCmd
}

type configurable interface {
	Viper() *viper.Viper
	LoadFromFile(path string) error
}

// loadConfig reads --config into cfg and lets explicitly set flags override it.
func loadConfig(cmd *cobra.Command, cfg configurable) error {
	if path := mustString(cmd, "config"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return err
		}
	}

	v := cfg.Viper()
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}
