package sbm

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// Generate draws an adjacency matrix from the SBM with cluster assignment c
// and block probabilities prob. Every dyad is an independent Bernoulli draw
// with its block's probability.
//
// Undirected models require a symmetric prob and produce symmetric output:
// diagonal blocks are drawn on the strictly lower triangle and mirrored,
// off-diagonal blocks once per unordered pair. Directed output draws every
// ordered pair. The diagonal is always zero. A NaN block probability produces no edges.
func Generate(c models.ClusterAssignment, prob mat.Matrix, directed bool, rng *rand.Rand) (*adjacency.Matrix, error) {
	n := len(c)
	if n == 0 {
		return nil, models.InvalidParameterf("cluster assignment is empty")
	}
	if err := c.Validate(n); err != nil {
		return nil, err
	}
	if err := checkProb(prob, c.NumClusters(), directed); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, models.InvalidParameterf("random generator is nil")
	}

	groups := c.Groups()
	k := len(groups)
	adj := mat.NewDense(n, n, nil)

	for c1 := 0; c1 < k; c1++ {
		in1 := groups[c1]

		if len(in1) > 1 {
			draw := bernoulli(prob.At(c1, c1), rng)
			// lower triangle first, then the upper one
			for a := 1; a < len(in1); a++ {
				for b := 0; b < a; b++ {
					adj.Set(in1[a], in1[b], draw())
				}
			}
			for a := 1; a < len(in1); a++ {
				for b := 0; b < a; b++ {
					if directed {
						adj.Set(in1[b], in1[a], draw())
					} else {
						adj.Set(in1[b], in1[a], adj.At(in1[a], in1[b]))
					}
				}
			}
		}

		start := 0
		if !directed {
			start = c1 + 1
		}
		for c2 := start; c2 < k; c2++ {
			if c2 == c1 || len(groups[c2]) == 0 {
				continue
			}
			draw := bernoulli(prob.At(c1, c2), rng)
			for _, i := range in1 {
				for _, j := range groups[c2] {
					v := draw()
					adj.Set(i, j, v)
					if !directed {
						adj.Set(j, i, v)
					}
				}
			}
		}
	}

	return adjacency.FromDense(adj)
}

// bernoulli returns a sampler for one block. NaN probabilities never fire.
func bernoulli(p float64, rng *rand.Rand) func() float64 {
	if math.IsNaN(p) {
		return func() float64 { return 0 }
	}
	dist := distuv.Bernoulli{P: p, Src: rng}
	return dist.Rand
}
