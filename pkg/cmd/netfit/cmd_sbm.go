package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/gof"
	"github.com/gilchrisn/graph-model-fitting/pkg/sbm"
	"github.com/gilchrisn/graph-model-fitting/pkg/spectral"
)

func newSpectrumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spectrum <adjacency-file>",
		Short: "Print the leading singular values of an adjacency matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := sbm.NewConfig()
			if err := loadConfig(cmd, config); err != nil {
				return err
			}
			adj, err := adjacency.ReadFile(args[0])
			if err != nil {
				return err
			}

			spec, err := sbm.Spectrum(adj, config)
			if err != nil {
				return err
			}
			printSingularValues(cmd.OutOrStdout(), spec.Values)
			return nil
		},
	}
	addSpectralFlags(cmd)
	return cmd
}

func newSbmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sbm",
		Short: "Stochastic block model commands",
	}

	pf := cmd.PersistentFlags()
	pf.IntP("clusters", "k", 0, "number of clusters (0 prompts after showing the spectrum)")
	pf.Bool("directed", false, "treat the adjacency matrix as directed")
	addSpectralFlags(cmd)

	fitCmd := &cobra.Command{
		Use:   "fit <adjacency-file>",
		Short: "Cluster spectrally and estimate block probabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, adj, _, err := fitSbm(cmd, args[0])
			if err != nil {
				return err
			}
			if path := mustString(cmd, "block-ordered"); path != "" {
				ordered, err := result.BlockOrdered(adj)
				if err != nil {
					return err
				}
				if err := adjacency.WriteFile(path, ordered); err != nil {
					return err
				}
				log.Info().Str("path", path).Msg("Wrote block-ordered adjacency matrix")
			}
			return writeResult(cmd, newSbmFitOutput(result))
		},
	}
	fitCmd.Flags().String("block-ordered", "", "also write the adjacency matrix with nodes grouped by cluster to this file")

	simulateCmd := &cobra.Command{
		Use:   "simulate <adjacency-file>",
		Short: "Fit an SBM and write one simulated adjacency matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, _, config, err := fitSbm(cmd, args[0])
			if err != nil {
				return err
			}
			sim, err := result.Simulate(config.NewRand())
			if err != nil {
				return err
			}
			log.Info().Int("edges", sim.NumEdges(result.Directed)).Msg("Simulated network")
			return writeAdjacency(cmd, sim)
		},
	}

	gofCmd := &cobra.Command{
		Use:   "gof <adjacency-file>",
		Short: "Fit an SBM and compare simulated networks with the observed one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, adj, _, err := fitSbm(cmd, args[0])
			if err != nil {
				return err
			}

			config := gof.NewConfig()
			if err := loadConfig(cmd, config); err != nil {
				return err
			}
			logger := config.CreateLogger()
			report, err := gof.SbmCheck(cmd.Context(), adj, result.Clusters, result.BlockProb, result.Directed, config.Options(&logger))
			if err != nil {
				return err
			}
			return writeReport(cmd, report)
		},
	}
	addGofFlags(gofCmd)

	cmd.AddCommand(fitCmd, simulateCmd, gofCmd)
	return cmd
}

func addSpectralFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("svd", string(spectral.MethodFull), "singular value decomposition (full or truncated)")
	pf.Int("rank", spectral.DefaultRank, "number of singular values to compute")
	pf.Int("kmeans-init", spectral.DefaultNInit, "k-means restarts")
}

func addGofFlags(cmd *cobra.Command) {
	cmd.Flags().Int("runs", gof.DefaultRuns, "number of simulated networks")
	cmd.Flags().Int("workers", 0, "parallel simulation workers (default: number of CPUs)")
}

// fitSbm reads the matrix and fits it, prompting for a cluster count when
// none was configured.
func fitSbm(cmd *cobra.Command, path string) (*sbm.FitResult, *adjacency.Matrix, *sbm.Config, error) {
	config := sbm.NewConfig()
	if err := loadConfig(cmd, config); err != nil {
		return nil, nil, nil, err
	}
	adj, err := adjacency.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}

	if config.NumClusters() == 0 {
		spec, err := sbm.Spectrum(adj, config)
		if err != nil {
			return nil, nil, nil, err
		}
		k, err := promptClusterCount(cmd.ErrOrStderr(), spec.Values, adj.N())
		if err != nil {
			return nil, nil, nil, err
		}
		config.Set("model.num_clusters", k)
	}

	result, err := sbm.Run(adj, config, cmd.Context())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sbm fit failed: %w", err)
	}
	return result, adj, config, nil
}
