// Package lsm fits and simulates latent space models, where the probability
// of an edge between two nodes is sigmoid(bias − ‖pos_i − pos_j‖).
//
// Fit initializes positions by classical MDS on shortest-path distances and
// then maximizes the likelihood with BFGS over positions and bias jointly.
package lsm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

const (
	DefaultDimension         = 2
	DefaultMaxIterations     = 1000
	DefaultGradientThreshold = 1e-5
)

// FitOptions configures Fit. Zero MaxIterations and GradientThreshold
// select the defaults.
type FitOptions struct {
	Dimension         int
	InitialBias       float64
	MaxIterations     int
	GradientThreshold float64
	Logger            *zerolog.Logger
}

// FitResult holds the fitted positions and bias. It is not modified after
// Fit returns.
type FitResult struct {
	Positions        *mat.Dense            `json:"-" yaml:"-"`
	InitialPositions *mat.Dense            `json:"-" yaml:"-"`
	Bias             float64               `json:"bias" yaml:"bias"`
	Dimension        int                   `json:"dimension" yaml:"dimension"`
	LogLikelihood    float64               `json:"log_likelihood" yaml:"log_likelihood"`
	Diagnostics      models.FitDiagnostics `json:"diagnostics" yaml:"diagnostics"`
}

// Fit estimates latent positions and bias for adj by maximum likelihood.
//
// The model is undirected. A non-symmetric adj is read through its lower
// triangle. The optimizer may stop at a local optimum or run out of
// iterations; both are reported through Diagnostics.Converged rather than as
// errors. A graph without edges returns ErrDisconnectedGraph.
func Fit(ctx context.Context, adj *adjacency.Matrix, opts FitOptions) (*FitResult, error) {
	startTime := time.Now()
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.GradientThreshold <= 0 {
		opts.GradientThreshold = DefaultGradientThreshold
	}

	if adj == nil {
		return nil, models.InvalidParameterf("adjacency matrix is nil")
	}
	n, dim := adj.N(), opts.Dimension
	if dim <= 0 {
		return nil, models.InvalidParameterf("dimension must be positive, got %d", dim)
	}
	if dim >= n {
		return nil, models.InvalidParameterf("dimension %d must be less than the number of nodes %d", dim, n)
	}
	if !adj.IsSymmetric() {
		logger.Warn().Msg("Adjacency matrix is not symmetric; using its lower triangle")
		adj = adj.LowerTriangle()
	}

	logger.Info().
		Int("nodes", n).
		Int("edges", adj.NumEdges(false)).
		Int("dimension", dim).
		Msg("Initializing latent positions by multidimensional scaling")

	if comps := adj.ConnectedComponents(); len(comps) > 1 {
		logger.Warn().
			Int("components", len(comps)).
			Int("largest", largestComponent(comps)).
			Msg("Graph is disconnected; unreachable pairs get twice the diameter")
	}

	dist, err := ShortestPathDistances(adj)
	if err != nil {
		return nil, err
	}
	initPos, err := InitialPositions(dist, dim)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize positions: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	x0 := make([]float64, 0, n*dim+1)
	x0 = append(x0, initPos.RawMatrix().Data...)
	x0 = append(x0, opts.InitialBias)

	obj := newObjective(adj, dim)
	problem := optimize.Problem{
		Func: obj.negLogLik,
		Grad: obj.grad,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   opts.MaxIterations,
		GradientThreshold: opts.GradientThreshold,
	}

	logger.Info().
		Int("max_iterations", opts.MaxIterations).
		Float64("gradient_threshold", opts.GradientThreshold).
		Msg("Maximizing likelihood with BFGS")

	res, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if res == nil {
		return nil, fmt.Errorf("likelihood optimization failed: %w", err)
	}

	converged := err == nil &&
		(res.Status == optimize.GradientThreshold || res.Status == optimize.FunctionConvergence)
	status := res.Status.String()
	if err != nil {
		status = fmt.Sprintf("%s: %v", status, err)
		if !errors.Is(err, optimize.ErrLinesearcherFailure) {
			logger.Warn().Err(err).Msg("Optimizer stopped early")
		}
	}

	pos := mat.NewDense(n, dim, nil)
	copy(pos.RawMatrix().Data, res.X[:n*dim])

	result := &FitResult{
		Positions:        pos,
		InitialPositions: initPos,
		Bias:             res.X[n*dim],
		Dimension:        dim,
		LogLikelihood:    -res.F,
		Diagnostics: models.FitDiagnostics{
			Iterations:      res.MajorIterations,
			FuncEvaluations: res.FuncEvaluations,
			Converged:       converged,
			GradNorm:        floats.Norm(res.Gradient, 2),
			Status:          status,
			Runtime:         time.Since(startTime),
		},
	}

	event := logger.Info()
	if !converged {
		event = logger.Warn()
	}
	event.
		Float64("bias", result.Bias).
		Float64("log_likelihood", result.LogLikelihood).
		Int("iterations", result.Diagnostics.Iterations).
		Bool("converged", converged).
		Float64("grad_norm", result.Diagnostics.GradNorm).
		Msg("Latent space fit completed")

	return result, nil
}

// Run fits adj with the settings in config.
func Run(adj *adjacency.Matrix, config *Config, ctx context.Context) (*FitResult, error) {
	logger := config.CreateLogger()
	return Fit(ctx, adj, config.FitOptions(&logger))
}

// Simulate draws one network from the fitted model.
func (r *FitResult) Simulate(rng *rand.Rand) (*adjacency.Matrix, error) {
	return Generate(r.Positions, r.Bias, rng)
}

func largestComponent(comps [][]int) int {
	largest := 0
	for _, comp := range comps {
		if len(comp) > largest {
			largest = len(comp)
		}
	}
	return largest
}
