// Package gof checks fitted models by simulating networks from them and
// comparing the statistics of the simulations with the observed network.
//
// Runs are independent: run r draws from its own generator seeded with
// (Options.Seed, r), so results do not depend on the number of workers.
package gof

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/lsm"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
	"github.com/gilchrisn/graph-model-fitting/pkg/netstats"
	"github.com/gilchrisn/graph-model-fitting/pkg/sbm"
)

const DefaultRuns = 50

const (
	ModelSBM = "sbm"
	ModelLSM = "lsm"
)

// Options configures a goodness-of-fit check. Zero Runs and Workers select
// DefaultRuns and one worker.
type Options struct {
	Runs     int
	Workers  int
	Seed     uint64
	Progress bool // log every completed run at info level
	Logger   *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Runs <= 0 {
		o.Runs = DefaultRuns
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// Report is the outcome of one goodness-of-fit check.
type Report struct {
	BatchID        string         `json:"batch_id" yaml:"batch_id"`
	Model          string         `json:"model" yaml:"model"`
	Directed       bool           `json:"directed" yaml:"directed"`
	Nodes          int            `json:"nodes" yaml:"nodes"`
	Runs           int            `json:"runs" yaml:"runs"`
	Seed           uint64         `json:"seed" yaml:"seed"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
	RuntimeMS      int64          `json:"runtime_ms" yaml:"runtime_ms"`
	Statistics     []StatSummary  `json:"statistics" yaml:"statistics"`
	BlockDensities []BlockSummary `json:"block_densities,omitempty" yaml:"block_densities,omitempty"`
}

// BlockSummary compares the observed density of block (Row, Col) with the
// densities re-estimated from each simulated network.
type BlockSummary struct {
	Row     int         `json:"row" yaml:"row"`
	Col     int         `json:"col" yaml:"col"`
	Density StatSummary `json:"density" yaml:"density"`
}

// Statistic returns the summary with the given name.
func (r *Report) Statistic(name string) (StatSummary, bool) {
	for _, s := range r.Statistics {
		if s.Name == name {
			return s, true
		}
	}
	return StatSummary{}, false
}

type sample struct {
	stats  map[string]float64
	blocks *mat.Dense
}

// SbmCheck simulates opts.Runs networks from the SBM (c, prob) and compares
// edge count, density, transitivity (and reciprocity when directed) and the
// per-block densities with those of observed.
func SbmCheck(ctx context.Context, observed *adjacency.Matrix, c models.ClusterAssignment, prob mat.Matrix, directed bool, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	if observed == nil {
		return nil, models.InvalidParameterf("observed adjacency matrix is nil")
	}

	obsBlocks, err := sbm.EstimateBlockProbabilities(observed, c, directed)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate observed block densities: %w", err)
	}
	// fail on bad parameters before spawning runs
	if _, err := sbm.Generate(c, prob, directed, rand.New(rand.NewPCG(opts.Seed, 0))); err != nil {
		return nil, err
	}

	report := newReport(ModelSBM, directed, observed.N(), opts)
	samples, err := simulate(ctx, opts, func(rng *rand.Rand) (sample, error) {
		sim, err := sbm.Generate(c, prob, directed, rng)
		if err != nil {
			return sample{}, err
		}
		est, err := sbm.EstimateBlockProbabilities(sim, c, directed)
		if err != nil {
			return sample{}, err
		}
		return sample{stats: statistics(sim, directed), blocks: est.Prob}, nil
	})
	if err != nil {
		return nil, err
	}

	report.Statistics = summarizeStats(statistics(observed, directed), samples)
	report.BlockDensities = summarizeBlocks(obsBlocks.Prob, samples, directed)
	report.RuntimeMS = time.Since(report.CreatedAt).Milliseconds()

	logCompleted(opts.Logger, report)
	return report, nil
}

// LsmCheck simulates opts.Runs networks from the latent space model
// (pos, bias) and compares edge count, density and transitivity with those
// of observed.
func LsmCheck(ctx context.Context, observed *adjacency.Matrix, pos mat.Matrix, bias float64, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	if observed == nil || pos == nil {
		return nil, models.InvalidParameterf("observed adjacency matrix and positions are required")
	}
	if n, _ := pos.Dims(); n != observed.N() {
		return nil, models.InvalidParameterf("positions have %d rows, observed network has %d nodes", n, observed.N())
	}

	report := newReport(ModelLSM, false, observed.N(), opts)
	samples, err := simulate(ctx, opts, func(rng *rand.Rand) (sample, error) {
		sim, err := lsm.Generate(pos, bias, rng)
		if err != nil {
			return sample{}, err
		}
		return sample{stats: statistics(sim, false)}, nil
	})
	if err != nil {
		return nil, err
	}

	report.Statistics = summarizeStats(statistics(observed, false), samples)
	report.RuntimeMS = time.Since(report.CreatedAt).Milliseconds()

	logCompleted(opts.Logger, report)
	return report, nil
}

func newReport(model string, directed bool, nodes int, opts Options) *Report {
	return &Report{
		BatchID:   uuid.New().String(),
		Model:     model,
		Directed:  directed,
		Nodes:     nodes,
		Runs:      opts.Runs,
		Seed:      opts.Seed,
		CreatedAt: time.Now(),
	}
}

// runRand returns the generator for one run.
func runRand(seed uint64, run int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(run)+1))
}

// simulate executes opts.Runs independent runs on at most opts.Workers
// goroutines and returns their samples in run order.
func simulate(ctx context.Context, opts Options, run func(rng *rand.Rand) (sample, error)) ([]sample, error) {
	samples := make([]sample, opts.Runs)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for r := 0; r < opts.Runs; r++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := run(runRand(opts.Seed, r))
			if err != nil {
				return fmt.Errorf("run %d: %w", r, err)
			}
			samples[r] = s

			completed := done.Add(1)
			event := opts.Logger.Debug()
			if opts.Progress {
				event = opts.Logger.Info()
			}
			event.Int64("completed", completed).Int("runs", opts.Runs).Msg("Simulation run finished")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}

// statistics returns the compared statistics; reciprocity only for directed
// networks, where it is informative.
func statistics(adj *adjacency.Matrix, directed bool) map[string]float64 {
	values := netstats.Compute(adj, directed).Values()
	if !directed {
		delete(values, netstats.StatReciprocity)
	}
	return values
}

func summarizeStats(observed map[string]float64, samples []sample) []StatSummary {
	names := make([]string, 0, len(observed))
	for name := range observed {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]StatSummary, 0, len(names))
	values := make([]float64, len(samples))
	for _, name := range names {
		for i, s := range samples {
			values[i] = s.stats[name]
		}
		out = append(out, Summarize(name, observed[name], values))
	}
	return out
}

// summarizeBlocks covers every ordered block, or the lower triangle when
// undirected.
func summarizeBlocks(observed *mat.Dense, samples []sample, directed bool) []BlockSummary {
	k, _ := observed.Dims()
	values := make([]float64, len(samples))

	var out []BlockSummary
	for c1 := 0; c1 < k; c1++ {
		for c2 := 0; c2 < k; c2++ {
			if !directed && c2 > c1 {
				continue
			}
			for i, s := range samples {
				values[i] = s.blocks.At(c1, c2)
			}
			name := fmt.Sprintf("block[%d,%d]", c1, c2)
			out = append(out, BlockSummary{
				Row:     c1,
				Col:     c2,
				Density: Summarize(name, observed.At(c1, c2), values),
			})
		}
	}
	return out
}

func logCompleted(logger *zerolog.Logger, report *Report) {
	outside := 0
	for _, s := range report.Statistics {
		if !s.WithinInterval {
			outside++
		}
	}
	logger.Info().
		Str("batch_id", report.BatchID).
		Str("model", report.Model).
		Int("runs", report.Runs).
		Int("statistics_outside_interval", outside).
		Int64("runtime_ms", report.RuntimeMS).
		Msg("Goodness-of-fit check completed")
}
