package sbm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
	"github.com/gilchrisn/graph-model-fitting/pkg/spectral"
)

// FitResult is a fitted SBM. It is not modified after Run returns.
type FitResult struct {
	Directed       bool                     `json:"directed" yaml:"directed"`
	NumClusters    int                      `json:"num_clusters" yaml:"num_clusters"`
	Clusters       models.ClusterAssignment `json:"clusters" yaml:"clusters"`
	ClusterSizes   []int                    `json:"cluster_sizes" yaml:"cluster_sizes"`
	SingularValues []float64                `json:"singular_values" yaml:"singular_values"`
	BlockProb      *mat.Dense               `json:"-" yaml:"-"`
	Estimate       *BlockEstimate           `json:"-" yaml:"-"`
	LogLikelihood  float64                  `json:"log_likelihood" yaml:"log_likelihood"`
	RuntimeMS      int64                    `json:"runtime_ms" yaml:"runtime_ms"`
}

// Spectrum computes the singular values used to choose the cluster count.
func Spectrum(adj *adjacency.Matrix, config *Config) (*spectral.Spectrum, error) {
	opts := config.SpectralOptions(config.NewRand(), nil)
	return spectral.ComputeSpectrum(adj, opts.Spectrum)
}

// Run clusters adj spectrally into model.num_clusters groups and estimates
// block probabilities. A zero cluster count returns
// spectral.ErrClusterCountRequired; pick one from Spectrum first.
func Run(adj *adjacency.Matrix, config *Config, ctx context.Context) (*FitResult, error) {
	startTime := time.Now()
	logger := config.CreateLogger()

	if adj == nil {
		return nil, models.InvalidParameterf("adjacency matrix is nil")
	}
	directed := config.Directed()
	k := config.NumClusters()

	logger.Info().
		Int("nodes", adj.N()).
		Int("edges", adj.NumEdges(directed)).
		Int("clusters", k).
		Bool("directed", directed).
		Str("svd", string(config.SpectralMethod())).
		Msg("Starting SBM fit")

	rng := config.NewRand()
	opts := config.SpectralOptions(rng, &logger)
	if opts.Spectrum.Rank < k {
		opts.Spectrum.Rank = k
	}

	spec, err := spectral.ComputeSpectrum(adj, opts.Spectrum)
	if err != nil {
		return nil, fmt.Errorf("spectral decomposition failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	clusters, err := spectral.ClusterFromSpectrum(spec, k, directed, opts.KMeans)
	if err != nil {
		return nil, fmt.Errorf("spectral clustering failed: %w", err)
	}

	est, err := EstimateBlockProbabilities(adj, clusters, directed)
	if err != nil {
		return nil, fmt.Errorf("block probability estimation failed: %w", err)
	}

	if est.EmptyBlocks > 0 {
		logger.Warn().
			Int("empty_blocks", est.EmptyBlocks).
			Int("empty_clusters", est.EmptyClusters).
			Msg("Some blocks have no node pairs; their probabilities are NaN")
	}

	result := &FitResult{
		Directed:       directed,
		NumClusters:    clusters.NumClusters(),
		Clusters:       clusters,
		ClusterSizes:   est.ClusterSizes,
		SingularValues: spec.Values,
		BlockProb:      est.Prob,
		Estimate:       est,
		LogLikelihood:  est.LogLik,
		RuntimeMS:      time.Since(startTime).Milliseconds(),
	}

	logger.Info().
		Ints("cluster_sizes", result.ClusterSizes).
		Float64("log_likelihood", result.LogLikelihood).
		Int64("runtime_ms", result.RuntimeMS).
		Msg("SBM fit completed")

	return result, nil
}

// Simulate draws one network from the fitted model.
func (r *FitResult) Simulate(rng *rand.Rand) (*adjacency.Matrix, error) {
	return Generate(r.Clusters, r.BlockProb, r.Directed, rng)
}

// BlockProbRows returns the block probabilities as nested slices, for
// encoders and external plotting.
func (r *FitResult) BlockProbRows() [][]float64 {
	k, _ := r.BlockProb.Dims()
	rows := make([][]float64, k)
	for i := range rows {
		rows[i] = mat.Row(nil, i, r.BlockProb)
	}
	return rows
}

// NodeOrder returns node indices sorted by cluster, stable within a
// cluster. Permuting the adjacency matrix by it exposes the block structure.
func (r *FitResult) NodeOrder() []int {
	order := make([]int, 0, len(r.Clusters))
	for _, members := range r.Clusters.Groups() {
		order = append(order, members...)
	}
	return order
}

// BlockOrdered returns adj with nodes permuted into NodeOrder, so edges
// within a cluster form contiguous diagonal blocks.
func (r *FitResult) BlockOrdered(adj *adjacency.Matrix) (*adjacency.Matrix, error) {
	return adj.Permute(r.NodeOrder())
}
