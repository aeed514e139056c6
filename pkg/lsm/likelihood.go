package lsm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// LogLikelihood returns Σ_{i>j} [a·A_ij − ln(1+e^a)] with a = bias − ‖pos_i − pos_j‖.
// Only the strictly lower triangle of adj is read.
func LogLikelihood(adj *adjacency.Matrix, pos mat.Matrix, bias float64) (float64, error) {
	if adj == nil || pos == nil {
		return 0, models.InvalidParameterf("adjacency matrix and positions are required")
	}
	n, dim := pos.Dims()
	if n != adj.N() {
		return 0, models.InvalidParameterf("positions have %d rows, adjacency matrix has %d nodes", n, adj.N())
	}

	obj := newObjective(adj, dim)
	x := make([]float64, 0, n*dim+1)
	for i := 0; i < n; i++ {
		x = append(x, mat.Row(nil, i, pos)...)
	}
	x = append(x, bias)
	return -obj.negLogLik(x), nil
}

// objective is the negative log-likelihood over x = (positions row-major, bias).
type objective struct {
	n, dim int
	dyads  []bool // lower triangle, row-major: (1,0), (2,0), (2,1), ...
}

func newObjective(adj *adjacency.Matrix, dim int) *objective {
	n := adj.N()
	dyads := make([]bool, 0, n*(n-1)/2)
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			dyads = append(dyads, adj.HasEdge(i, j))
		}
	}
	return &objective{n: n, dim: dim, dyads: dyads}
}

func (o *objective) point(x []float64, i int) []float64 {
	return x[i*o.dim : (i+1)*o.dim]
}

func (o *objective) negLogLik(x []float64) float64 {
	bias := x[len(x)-1]
	total := 0.0
	k := 0
	for i := 1; i < o.n; i++ {
		xi := o.point(x, i)
		for j := 0; j < i; j++ {
			a := bias - floats.Distance(xi, o.point(x, j), 2)
			// a·1 − softplus(a) = −softplus(−a)
			if o.dyads[k] {
				total += softplus(-a)
			} else {
				total += softplus(a)
			}
			k++
		}
	}
	return total
}

func (o *objective) grad(g, x []float64) {
	for i := range g {
		g[i] = 0
	}
	bias := x[len(x)-1]
	nb := len(x) - 1
	k := 0
	for i := 1; i < o.n; i++ {
		xi := o.point(x, i)
		gi := g[i*o.dim : (i+1)*o.dim]
		for j := 0; j < i; j++ {
			xj := o.point(x, j)
			gj := g[j*o.dim : (j+1)*o.dim]
			d := floats.Distance(xi, xj, 2)

			r := sigmoid(bias - d)
			if o.dyads[k] {
				r -= 1
			}
			k++
			g[nb] += r

			// coincident points contribute no direction
			if d == 0 {
				continue
			}
			for c := 0; c < o.dim; c++ {
				step := r * (xi[c] - xj[c]) / d
				gi[c] -= step
				gj[c] += step
			}
		}
	}
}

// softplus computes ln(1+e^x) without overflow.
func softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
