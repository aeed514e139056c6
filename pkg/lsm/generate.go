package lsm

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// Generate draws a symmetric, zero-diagonal adjacency matrix in which each
// unordered pair is connected with probability sigmoid(bias − ‖pos_i − pos_j‖).
// An infinite bias connects every pair (+Inf) or none (−Inf).
func Generate(pos mat.Matrix, bias float64, rng *rand.Rand) (*adjacency.Matrix, error) {
	if pos == nil {
		return nil, models.InvalidParameterf("positions are nil")
	}
	if math.IsNaN(bias) {
		return nil, models.InvalidParameterf("bias is NaN")
	}
	if rng == nil {
		return nil, models.InvalidParameterf("random generator is nil")
	}
	n, _ := pos.Dims()
	if n == 0 {
		return nil, models.InvalidParameterf("positions are empty")
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, pos)
	}

	adj := mat.NewDense(n, n, nil)
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			p := sigmoid(bias - floats.Distance(rows[i], rows[j], 2))
			if math.IsNaN(p) {
				return nil, models.InvalidParameterf("edge probability for (%d,%d) is NaN", i, j)
			}
			edge := distuv.Bernoulli{P: p, Src: rng}.Rand()
			adj.Set(i, j, edge)
			adj.Set(j, i, edge)
		}
	}
	return adjacency.FromDense(adj)
}
