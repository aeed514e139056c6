package lsm

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func mustRows(t *testing.T, rows [][]float64) *adjacency.Matrix {
	t.Helper()
	m, err := adjacency.FromRows(rows)
	require.NoError(t, err)
	return m
}

// twoCliques returns two disjoint complete graphs of the given sizes.
func twoCliques(t *testing.T, a, b int) *adjacency.Matrix {
	t.Helper()
	n := a + b
	raw := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && (i < a) == (j < a) {
				raw.Set(i, j, 1)
			}
		}
	}
	m, err := adjacency.FromDense(raw)
	require.NoError(t, err)
	return m
}

func TestShortestPathDistances(t *testing.T) {
	// path 0-1-2 and an isolated node 3
	adj := mustRows(t, [][]float64{
		{0, 1, 0, 0},
		{1, 0, 1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 0},
	})

	dist, err := ShortestPathDistances(adj)
	require.NoError(t, err)

	assert.Equal(t, 0.0, dist.At(0, 0))
	assert.Equal(t, 1.0, dist.At(0, 1))
	assert.Equal(t, 2.0, dist.At(0, 2))
	assert.Equal(t, 2.0, dist.At(2, 0))
	for i := 0; i < 3; i++ {
		assert.Equal(t, 4.0, dist.At(i, 3), "unreachable pair (%d,3)", i)
	}
}

func TestShortestPathDistancesNoEdges(t *testing.T) {
	_, err := ShortestPathDistances(adjacency.Empty(4))
	assert.ErrorIs(t, err, ErrDisconnectedGraph)
	assert.ErrorIs(t, err, models.ErrDegenerateModel)
}

func TestInitialPositionsPreservesPathGeometry(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1, 0},
		{1, 0, 1},
		{0, 1, 0},
	})
	dist, err := ShortestPathDistances(adj)
	require.NoError(t, err)

	pos, err := InitialPositions(dist, 2)
	require.NoError(t, err)

	r, c := pos.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := floats.Distance(pos.RawRowView(i), pos.RawRowView(j), 2)
			assert.InDelta(t, dist.At(i, j), d, 1e-6)
		}
	}
	// collinear points need one axis only
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0, pos.At(i, 1), 1e-6)
	}
}

func TestInitialPositionsValidation(t *testing.T) {
	dist := mat.NewSymDense(3, []float64{0, 1, 1, 1, 0, 1, 1, 1, 0})

	_, err := InitialPositions(dist, 0)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = InitialPositions(dist, 3)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestLogLikelihoodByHand(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, 0},
	})
	pos := mat.NewDense(3, 1, []float64{0, 0, 3})

	ll, err := LogLikelihood(adj, pos, 1)
	require.NoError(t, err)

	// (1,0): a=1 edge; (2,0), (2,1): a=-2 no edge
	want := 1 - math.Log1p(math.E) - 2*math.Log1p(math.Exp(-2))
	assert.InDelta(t, want, ll, 1e-12)
}

func TestLogLikelihoodInfiniteBias(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1},
		{1, 0},
	})
	pos := mat.NewDense(2, 1, []float64{0, 1})

	ll, err := LogLikelihood(adj, pos, math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, ll)

	ll, err = LogLikelihood(adj, pos, math.Inf(-1))
	require.NoError(t, err)
	assert.True(t, math.IsInf(ll, -1))
}

func TestLogLikelihoodShapeMismatch(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1},
		{1, 0},
	})
	_, err := LogLikelihood(adj, mat.NewDense(3, 2, nil), 0)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestGradientMatchesFiniteDifferences(t *testing.T) {
	rng := newRand(3)
	n, dim := 8, 2
	raw := mat.NewDense(n, n, nil)
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			if rng.Float64() < 0.4 {
				raw.Set(i, j, 1)
				raw.Set(j, i, 1)
			}
		}
	}
	adj, err := adjacency.FromDense(raw)
	require.NoError(t, err)

	obj := newObjective(adj, dim)
	x := make([]float64, n*dim+1)
	for i := range x {
		x[i] = rng.NormFloat64() * 2
	}

	got := make([]float64, len(x))
	obj.grad(got, x)
	want := fd.Gradient(nil, obj.negLogLik, x, &fd.Settings{Formula: fd.Central})

	for i := range x {
		assert.InDelta(t, want[i], got[i], 1e-5, "component %d", i)
	}
}

func TestFitRecoversTwoCommunities(t *testing.T) {
	adj := twoCliques(t, 6, 6)

	result, err := Fit(context.Background(), adj, FitOptions{Dimension: 2, MaxIterations: 300})
	require.NoError(t, err)

	r, c := result.Positions.Dims()
	require.Equal(t, 12, r)
	require.Equal(t, 2, c)

	centroid := func(from, to int) []float64 {
		out := make([]float64, 2)
		for i := from; i < to; i++ {
			floats.Add(out, result.Positions.RawRowView(i))
		}
		floats.Scale(1/float64(to-from), out)
		return out
	}
	ca, cb := centroid(0, 6), centroid(6, 12)

	spread := 0.0
	for i := 0; i < 12; i++ {
		own := ca
		if i >= 6 {
			own = cb
		}
		spread = math.Max(spread, floats.Distance(result.Positions.RawRowView(i), own, 2))
	}
	assert.Greater(t, floats.Distance(ca, cb, 2), spread)

	initLL, err := LogLikelihood(adj, result.InitialPositions, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.LogLikelihood, initLL)
	assert.Greater(t, result.Diagnostics.Iterations, 0)
	assert.NotEmpty(t, result.Diagnostics.Status)

	ll, err := LogLikelihood(adj, result.Positions, result.Bias)
	require.NoError(t, err)
	assert.InDelta(t, result.LogLikelihood, ll, 1e-9)
}

func TestFitIterationLimit(t *testing.T) {
	adj := twoCliques(t, 6, 6)

	result, err := Fit(context.Background(), adj, FitOptions{Dimension: 2, MaxIterations: 1})
	require.NoError(t, err)

	d := result.Diagnostics
	assert.False(t, d.Converged)
	assert.Equal(t, 1, d.Iterations)
	assert.Greater(t, d.GradNorm, 0.0)
	assert.Contains(t, d.Status, optimize.IterationLimit.String())

	r, c := result.Positions.Dims()
	assert.Equal(t, 12, r)
	assert.Equal(t, 2, c)
	ll, err := LogLikelihood(adj, result.Positions, result.Bias)
	require.NoError(t, err)
	assert.InDelta(t, result.LogLikelihood, ll, 1e-9)
}

func TestFitLogsDisconnectedComponents(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	_, err := Fit(context.Background(), twoCliques(t, 4, 3), FitOptions{Dimension: 2, MaxIterations: 5, Logger: &logger})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"components":2`)
	assert.Contains(t, buf.String(), `"largest":4`)

	buf.Reset()
	path := mustRows(t, [][]float64{
		{0, 1, 0},
		{1, 0, 1},
		{0, 1, 0},
	})
	_, err = Fit(context.Background(), path, FitOptions{Dimension: 1, MaxIterations: 5, Logger: &logger})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), `"components"`)
}

func TestFitValidation(t *testing.T) {
	adj := twoCliques(t, 2, 2)

	tests := []struct {
		name string
		adj  *adjacency.Matrix
		dim  int
		want error
	}{
		{"NilMatrix", nil, 2, models.ErrInvalidParameter},
		{"ZeroDimension", adj, 0, models.ErrInvalidParameter},
		{"NegativeDimension", adj, -1, models.ErrInvalidParameter},
		{"DimensionAtNodeCount", adj, 4, models.ErrInvalidParameter},
		{"NoEdges", adjacency.Empty(5), 2, models.ErrDegenerateModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(context.Background(), tt.adj, FitOptions{Dimension: tt.dim})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFitDirectedUsesLowerTriangle(t *testing.T) {
	// upper-triangle entries are ignored, leaving the path 0-1-2-3
	adj := mustRows(t, [][]float64{
		{0, 0, 0, 1},
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	})

	result, err := Fit(context.Background(), adj, FitOptions{Dimension: 1, MaxIterations: 50})
	require.NoError(t, err)

	want, err := LogLikelihood(adj.LowerTriangle(), result.Positions, result.Bias)
	require.NoError(t, err)
	assert.InDelta(t, want, result.LogLikelihood, 1e-9)
}

func TestFitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fit(ctx, twoCliques(t, 3, 3), FitOptions{Dimension: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateBiasExtremes(t *testing.T) {
	rng := newRand(5)
	pos := mat.NewDense(20, 2, nil)
	for i := 0; i < 20; i++ {
		pos.Set(i, 0, rng.Float64())
		pos.Set(i, 1, rng.Float64())
	}
	full := 20 * 19 / 2

	tests := []struct {
		name  string
		bias  float64
		edges int
	}{
		{"PositiveInfinity", math.Inf(1), full},
		{"NegativeInfinity", math.Inf(-1), 0},
		{"LargeBias", 60, full},
		{"VerySmallBias", -60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, err := Generate(pos, tt.bias, rng)
			require.NoError(t, err)
			assert.Equal(t, tt.edges, adj.NumEdges(false))
			assert.True(t, adj.IsSymmetric())
		})
	}
}

func TestGenerateSymmetricZeroDiagonal(t *testing.T) {
	rng := newRand(6)
	pos := mat.NewDense(15, 2, nil)
	for i := 0; i < 15; i++ {
		pos.Set(i, 0, rng.NormFloat64())
		pos.Set(i, 1, rng.NormFloat64())
	}

	for trial := 0; trial < 10; trial++ {
		adj, err := Generate(pos, 0.5, rng)
		require.NoError(t, err)
		assert.True(t, adj.IsSymmetric())
		for i := 0; i < 15; i++ {
			assert.False(t, adj.HasEdge(i, i))
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	pos := mat.NewDense(3, 2, nil)

	_, err := Generate(pos, math.NaN(), newRand(1))
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = Generate(pos, 0, nil)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = Generate(nil, 0, newRand(1))
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestRunWithConfig(t *testing.T) {
	config := NewConfig()
	config.Set("logging.level", "disabled")
	config.Set("lsm.dimension", 2)
	config.Set("optimizer.max_iterations", 100)

	adj := twoCliques(t, 4, 4)
	result, err := Run(adj, config, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Dimension)

	sim, err := result.Simulate(config.NewRand())
	require.NoError(t, err)
	assert.Equal(t, 8, sim.N())
	assert.True(t, sim.IsSymmetric())
}
