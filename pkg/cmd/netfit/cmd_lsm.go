package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/gof"
	"github.com/gilchrisn/graph-model-fitting/pkg/lsm"
)

func newLsmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsm",
		Short: "Latent space model commands",
	}

	pf := cmd.PersistentFlags()
	pf.Int("dim", lsm.DefaultDimension, "latent space dimension")
	pf.Float64("initial-bias", 0, "starting value of the bias")
	pf.Int("max-iter", lsm.DefaultMaxIterations, "maximum BFGS iterations")

	fitCmd := &cobra.Command{
		Use:   "fit <adjacency-file>",
		Short: "Estimate latent positions and bias by maximum likelihood",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, _, _, err := fitLsm(cmd, args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd, newLsmFitOutput(result))
		},
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate <adjacency-file>",
		Short: "Fit an LSM and write one simulated adjacency matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, _, config, err := fitLsm(cmd, args[0])
			if err != nil {
				return err
			}
			sim, err := result.Simulate(config.NewRand())
			if err != nil {
				return err
			}
			log.Info().Int("edges", sim.NumEdges(false)).Msg("Simulated network")
			return writeAdjacency(cmd, sim)
		},
	}

	gofCmd := &cobra.Command{
		Use:   "gof <adjacency-file>",
		Short: "Fit an LSM and compare simulated networks with the observed one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, adj, _, err := fitLsm(cmd, args[0])
			if err != nil {
				return err
			}

			config := gof.NewConfig()
			if err := loadConfig(cmd, config); err != nil {
				return err
			}
			logger := config.CreateLogger()
			report, err := gof.LsmCheck(cmd.Context(), adj, result.Positions, result.Bias, config.Options(&logger))
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

func fitLsm(cmd *cobra.Command, path string) (*lsm.FitResult, *adjacency.Matrix, *lsm.Config, error) {
	config := lsm.NewConfig()
	if err := loadConfig(cmd, config); err != nil {
		return nil, nil, nil, err
	}
	adj, err := adjacency.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}

	result, err := lsm.Run(adj, config, cmd.Context())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("lsm fit failed: %w", err)
	}
	return result, adj, config, nil
}
