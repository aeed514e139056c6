package sbm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
	"github.com/gilchrisn/graph-model-fitting/pkg/spectral"
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

func TestGenerateTwoCommunitiesDeterministic(t *testing.T) {
	c := models.ClusterAssignment{0, 0, 0, 1, 1, 1}
	prob := mat.NewDense(2, 2, []float64{1, 0, 0, 1})

	adj, err := Generate(c, prob, false, newRand(1))
	require.NoError(t, err)

	assert.Equal(t, 6, adj.NumEdges(false))
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			want := i != j && c[i] == c[j]
			assert.Equal(t, want, adj.HasEdge(i, j), "entry (%d,%d)", i, j)
		}
	}
}

func TestEstimateRecoversDeterministicBlocks(t *testing.T) {
	c := models.ClusterAssignment{0, 0, 0, 1, 1, 1}
	prob := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	adj, err := Generate(c, prob, false, newRand(2))
	require.NoError(t, err)

	est, err := EstimateBlockProbabilities(adj, c, false)
	require.NoError(t, err)

	assert.True(t, mat.Equal(prob, est.Prob))
	assert.Equal(t, 0.0, est.LogLik)
	assert.Equal(t, []int{3, 3}, est.ClusterSizes)
	assert.Equal(t, 3.0, est.Edges.At(0, 0))
	assert.Equal(t, 3.0, est.Pairs.At(1, 1))
	assert.Equal(t, 9.0, est.Pairs.At(0, 1))
}

func TestGenerateDirectedBlockDiagonal(t *testing.T) {
	c := models.ClusterAssignment{0, 1, 0, 2, 1, 2, 2}
	prob := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})

	adj, err := Generate(c, prob, true, newRand(3))
	require.NoError(t, err)

	for i := range c {
		for j := range c {
			want := i != j && c[i] == c[j]
			assert.Equal(t, want, adj.HasEdge(i, j), "entry (%d,%d)", i, j)
		}
	}
}

func TestGenerateUndirectedSymmetric(t *testing.T) {
	rng := newRand(4)
	for trial := 0; trial < 20; trial++ {
		n := 5 + rng.IntN(30)
		k := 1 + rng.IntN(4)
		c := make(models.ClusterAssignment, n)
		for i := range c {
			c[i] = rng.IntN(k)
		}
		prob := mat.NewDense(k, k, nil)
		for a := 0; a < k; a++ {
			for b := a; b < k; b++ {
				p := rng.Float64()
				prob.Set(a, b, p)
				prob.Set(b, a, p)
			}
		}

		adj, err := Generate(c, prob, false, rng)
		require.NoError(t, err)
		assert.True(t, adj.IsSymmetric())
		for i := 0; i < n; i++ {
			assert.False(t, adj.HasEdge(i, i))
		}
	}
}

func TestGenerateDirectedZeroDiagonal(t *testing.T) {
	c := models.ClusterAssignment{0, 0, 1, 1, 1}
	prob := mat.NewDense(2, 2, []float64{1, 1, 1, 1})

	adj, err := Generate(c, prob, true, newRand(5))
	require.NoError(t, err)
	assert.Equal(t, 20, adj.NumEdges(true))
	for i := 0; i < 5; i++ {
		assert.False(t, adj.HasEdge(i, i))
	}
}

func TestGenerateValidation(t *testing.T) {
	c := models.ClusterAssignment{0, 1}
	tests := []struct {
		name string
		c    models.ClusterAssignment
		prob mat.Matrix
		rng  *rand.Rand
	}{
		{"EmptyAssignment", nil, mat.NewDense(1, 1, nil), newRand(1)},
		{"NegativeLabel", models.ClusterAssignment{0, -1}, mat.NewDense(1, 1, nil), newRand(1)},
		{"TooFewBlocks", c, mat.NewDense(1, 1, nil), newRand(1)},
		{"OutOfRange", c, mat.NewDense(2, 2, []float64{0, 1.5, 1.5, 0}), newRand(1)},
		{"NilRand", c, mat.NewDense(2, 2, nil), nil},
		{"AsymmetricUndirected", c, mat.NewDense(2, 2, []float64{0.5, 0.2, 0.3, 0.5}), newRand(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.c, tt.prob, false, tt.rng)
			assert.ErrorIs(t, err, models.ErrInvalidParameter)
		})
	}
}

func TestAsymmetricProbabilitiesNeedDirected(t *testing.T) {
	c := models.ClusterAssignment{0, 0, 1, 1}
	prob := mat.NewDense(2, 2, []float64{1, 1, 0, 1})

	_, err := Generate(c, prob, false, newRand(1))
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	undirected := mustRows(t, [][]float64{
		{0, 1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
	})
	_, err = LogLikelihood(undirected, c, prob, false)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	// directed models read each ordered block on its own
	adj, err := Generate(c, prob, true, newRand(1))
	require.NoError(t, err)
	assert.True(t, adj.HasEdge(0, 2))
	assert.False(t, adj.HasEdge(2, 0))

	// NaN mirrored by NaN is still symmetric
	nan := mat.NewDense(2, 2, []float64{1, math.NaN(), math.NaN(), 1})
	_, err = Generate(c, nan, false, newRand(1))
	assert.NoError(t, err)
}

func TestGenerateNaNBlockDrawsNothing(t *testing.T) {
	c := models.ClusterAssignment{0, 0, 1, 1}
	prob := mat.NewDense(2, 2, []float64{math.NaN(), 1, 1, 1})

	adj, err := Generate(c, prob, false, newRand(6))
	require.NoError(t, err)
	assert.False(t, adj.HasEdge(0, 1))
	assert.True(t, adj.HasEdge(2, 3))
	assert.True(t, adj.HasEdge(0, 2))
}

func TestEstimateProbabilitiesInUnitInterval(t *testing.T) {
	rng := newRand(7)
	for trial := 0; trial < 20; trial++ {
		n := 4 + rng.IntN(25)
		k := 1 + rng.IntN(4)
		directed := trial%2 == 0

		c := make(models.ClusterAssignment, n)
		for i := range c {
			c[i] = rng.IntN(k)
		}
		raw := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j || (!directed && j < i) {
					continue
				}
				if rng.Float64() < 0.3 {
					raw.Set(i, j, 1)
					if !directed {
						raw.Set(j, i, 1)
					}
				}
			}
		}
		adj, err := adjacency.FromDense(raw)
		require.NoError(t, err)

		est, err := EstimateBlockProbabilities(adj, c, directed)
		require.NoError(t, err)

		kk, _ := est.Prob.Dims()
		for a := 0; a < kk; a++ {
			for b := 0; b < kk; b++ {
				if est.Pairs.At(a, b) <= 0 {
					continue
				}
				p := est.Prob.At(a, b)
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
				if !directed {
					assert.Equal(t, p, est.Prob.At(b, a))
				}
			}
		}
	}
}

func TestEstimateDirectedByHand(t *testing.T) {
	// 0->1, 0->2, 3->2 with clusters {0,1} and {2,3}
	adj := mustRows(t, [][]float64{
		{0, 1, 1, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 1, 0},
	})
	c := models.ClusterAssignment{0, 0, 1, 1}

	est, err := EstimateBlockProbabilities(adj, c, true)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(mat.NewDense(2, 2, []float64{0.5, 0.25, 0, 0.5}), est.Prob, 1e-12))
	want := 4*math.Log(0.5) + math.Log(0.25) + 3*math.Log(0.75)
	assert.InDelta(t, want, est.LogLik, 1e-12)
	assert.InDelta(t, want, est.LegacyLogLik, 1e-12)
}

func TestEstimateUndirectedMasksUpperBlocks(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1, 1, 0},
		{1, 0, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 0, 0},
	})
	c := models.ClusterAssignment{0, 0, 1, 1}

	est, err := EstimateBlockProbabilities(adj, c, false)
	require.NoError(t, err)

	assert.Equal(t, 1.0, est.Prob.At(0, 0))
	assert.Equal(t, 0.25, est.Prob.At(0, 1))
	assert.Equal(t, 0.25, est.Prob.At(1, 0))
	assert.Equal(t, 0.0, est.Prob.At(1, 1))

	offDiag := math.Log(0.25) + 3*math.Log(0.75)
	assert.InDelta(t, offDiag, est.LogLik, 1e-12)
	assert.InDelta(t, 2*offDiag, est.LegacyLogLik, 1e-12)
}

func TestEstimateDegenerateClusters(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1, 0, 0},
		{1, 0, 1, 0},
		{0, 1, 0, 1},
		{0, 0, 1, 0},
	})

	t.Run("EmptyCluster", func(t *testing.T) {
		est, err := EstimateBlockProbabilities(adj, models.ClusterAssignment{0, 0, 2, 2}, false)
		require.NoError(t, err)
		assert.Equal(t, 1, est.EmptyClusters)
		assert.True(t, math.IsNaN(est.Prob.At(1, 1)))
		assert.True(t, math.IsNaN(est.Prob.At(0, 1)))
		assert.False(t, math.IsNaN(est.Prob.At(0, 2)))
		assert.True(t, math.IsNaN(est.LogLik))
	})

	t.Run("SingletonCluster", func(t *testing.T) {
		est, err := EstimateBlockProbabilities(adj, models.ClusterAssignment{0, 0, 0, 1}, false)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(est.Prob.At(1, 1)))
		assert.Equal(t, 1, est.EmptyBlocks)
		assert.False(t, math.IsNaN(est.LogLik))
		assert.False(t, math.IsInf(est.LogLik, 0))
	})
}

func TestEstimateValidation(t *testing.T) {
	asym := mustRows(t, [][]float64{
		{0, 1},
		{0, 0},
	})
	_, err := EstimateBlockProbabilities(asym, models.ClusterAssignment{0, 1}, false)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = EstimateBlockProbabilities(asym, models.ClusterAssignment{0}, true)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = EstimateBlockProbabilities(nil, models.ClusterAssignment{0}, true)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestLogLikelihoodExtremeProbability(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, 0},
	})
	c := models.ClusterAssignment{0, 0, 0}

	ll, err := LogLikelihood(adj, c, mat.NewDense(1, 1, []float64{0}), false)
	require.NoError(t, err)
	assert.True(t, math.IsInf(ll, -1))

	ll, err = LogLikelihood(adj, c, mat.NewDense(1, 1, []float64{1.0 / 3}), false)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.0/3)+2*math.Log(2.0/3), ll, 1e-12)
}

func TestSimulationRoundTripConverges(t *testing.T) {
	c := models.ClusterAssignment{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2}
	prob := mat.NewDense(3, 3, []float64{
		0.7, 0.1, 0.05,
		0.1, 0.5, 0.2,
		0.05, 0.2, 0.8,
	})
	rng := newRand(8)

	meanAbsDev := func(runs int) float64 {
		sum := mat.NewDense(3, 3, nil)
		for r := 0; r < runs; r++ {
			adj, err := Generate(c, prob, false, rng)
			require.NoError(t, err)
			est, err := EstimateBlockProbabilities(adj, c, false)
			require.NoError(t, err)
			sum.Add(sum, est.Prob)
		}
		sum.Scale(1/float64(runs), sum)

		dev := 0.0
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				dev += math.Abs(sum.At(a, b) - prob.At(a, b))
			}
		}
		return dev / 9
	}

	few := meanAbsDev(4)
	many := meanAbsDev(400)
	assert.Less(t, many, few)
	assert.Less(t, many, 0.02)
}

func quietConfig() *Config {
	config := NewConfig()
	config.Set("logging.level", "disabled")
	config.Set("algorithm.random_seed", 11)
	return config
}

func TestRunTwoCliques(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1, 1, 1, 0, 0, 0},
		{1, 0, 1, 1, 0, 0, 0},
		{1, 1, 0, 1, 0, 0, 0},
		{1, 1, 1, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 1, 1},
		{0, 0, 0, 0, 1, 0, 1},
		{0, 0, 0, 0, 1, 1, 0},
	})

	for _, method := range []spectral.Method{spectral.MethodFull, spectral.MethodTruncated} {
		t.Run(string(method), func(t *testing.T) {
			config := quietConfig()
			config.Set("model.num_clusters", 2)
			config.Set("spectral.method", string(method))

			result, err := Run(adj, config, context.Background())
			require.NoError(t, err)

			assert.Equal(t, models.ClusterAssignment{0, 0, 0, 0, 1, 1, 1}, result.Clusters)
			assert.Equal(t, []int{4, 3}, result.ClusterSizes)
			assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1, 0, 0, 1}), result.BlockProb))
			assert.Equal(t, 0.0, result.LogLikelihood)
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, result.NodeOrder())
			assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, result.BlockProbRows())

			sim, err := result.Simulate(newRand(9))
			require.NoError(t, err)
			assert.True(t, sim.Equal(adj))
		})
	}
}

func TestBlockOrdered(t *testing.T) {
	// clusters {0,2} and {1,3} are interleaved
	adj := mustRows(t, [][]float64{
		{0, 0, 1, 0},
		{0, 0, 0, 1},
		{1, 0, 0, 0},
		{0, 1, 0, 0},
	})
	result := &FitResult{Clusters: models.ClusterAssignment{0, 1, 0, 1}}

	assert.Equal(t, []int{0, 2, 1, 3}, result.NodeOrder())
	ordered, err := result.BlockOrdered(adj)
	require.NoError(t, err)
	want := mustRows(t, [][]float64{
		{0, 1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
	})
	assert.True(t, ordered.Equal(want))

	_, err = result.BlockOrdered(adjacency.Empty(3))
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestRunRequiresClusterCount(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1, 0},
		{1, 0, 1},
		{0, 1, 0},
	})

	_, err := Run(adj, quietConfig(), context.Background())
	assert.True(t, errors.Is(err, spectral.ErrClusterCountRequired))

	spec, err := Spectrum(adj, quietConfig())
	require.NoError(t, err)
	assert.Len(t, spec.Values, 3)
}

func TestRunCancelled(t *testing.T) {
	adj := mustRows(t, [][]float64{
		{0, 1},
		{1, 0},
	})
	config := quietConfig()
	config.Set("model.num_clusters", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(adj, config, ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
