// Package sbm fits and simulates stochastic block models: block-level edge
// probabilities are estimated by maximum likelihood from a cluster
// assignment, and new networks are drawn block by block.
package sbm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// BlockEstimate is the maximum-likelihood fit of block probabilities.
//
// Prob[c1,c2] = Edges[c1,c2] / Pairs[c1,c2]. For undirected graphs the
// diagonal blocks count each unordered pair once, and (c1,c2), (c2,c1)
// carry identical values.
//
// Degenerate blocks are reported through values, not errors:
//   - a block with no node pairs (an empty cluster, or the diagonal block of
//     a single-node cluster) has a NaN probability and adds nothing to the
//     log-likelihood;
//   - if any cluster in [0,K) is empty, LogLik is NaN;
//   - probabilities of exactly 0 or 1 are legitimate and contribute 0
//     (0·log 0 is taken as 0).
type BlockEstimate struct {
	Prob  *mat.Dense
	Edges *mat.Dense
	Pairs *mat.Dense

	// LogLik sums each unordered block pair once for undirected graphs.
	LogLik float64
	// LegacyLogLik sums every ordered block pair regardless of direction,
	// double counting undirected off-diagonal blocks. Kept for comparison
	// with historical outputs.
	LegacyLogLik float64

	ClusterSizes  []int
	EmptyClusters int
	EmptyBlocks   int
}

// EstimateBlockProbabilities fits block probabilities for the clustering c.
// Undirected estimation requires a symmetric matrix.
func EstimateBlockProbabilities(adj *adjacency.Matrix, c models.ClusterAssignment, directed bool) (*BlockEstimate, error) {
	if adj == nil {
		return nil, models.InvalidParameterf("adjacency matrix is nil")
	}
	n := adj.N()
	if err := c.Validate(n); err != nil {
		return nil, err
	}
	if !directed && !adj.IsSymmetric() {
		return nil, models.InvalidParameterf("undirected estimation requires a symmetric adjacency matrix")
	}

	edges, pairs, sizes := countBlocks(adj, c, directed)
	k := len(sizes)

	prob := mat.NewDense(k, k, nil)
	est := &BlockEstimate{
		Prob:         prob,
		Edges:        edges,
		Pairs:        pairs,
		ClusterSizes: sizes,
	}
	for c1 := 0; c1 < k; c1++ {
		if sizes[c1] == 0 {
			est.EmptyClusters++
		}
		for c2 := 0; c2 < k; c2++ {
			// 0/0 is NaN for blocks without pairs
			prob.Set(c1, c2, edges.At(c1, c2)/pairs.At(c1, c2))
			if pairs.At(c1, c2) == 0 {
				est.EmptyBlocks++
			}
		}
	}

	est.LogLik = blockLogLik(edges, pairs, prob, directed)
	est.LegacyLogLik = blockLogLik(edges, pairs, prob, true)
	if est.EmptyClusters > 0 {
		est.LogLik = math.NaN()
		est.LegacyLogLik = math.NaN()
	}
	return est, nil
}

// LogLikelihood evaluates the SBM log-likelihood of adj for arbitrary block
// probabilities. Unlike the maximum-likelihood fit, prob may assign 0 to a
// block with edges (or 1 to a block with non-edges), giving -Inf.
func LogLikelihood(adj *adjacency.Matrix, c models.ClusterAssignment, prob mat.Matrix, directed bool) (float64, error) {
	if adj == nil {
		return 0, models.InvalidParameterf("adjacency matrix is nil")
	}
	if err := c.Validate(adj.N()); err != nil {
		return 0, err
	}
	if !directed && !adj.IsSymmetric() {
		return 0, models.InvalidParameterf("undirected likelihood requires a symmetric adjacency matrix")
	}
	if err := checkProb(prob, c.NumClusters(), directed); err != nil {
		return 0, err
	}

	edges, pairs, _ := countBlocks(adj, c, directed)
	return blockLogLik(edges, pairs, prob, directed), nil
}

// countBlocks tallies realized edges and possible pairs per ordered block.
func countBlocks(adj *adjacency.Matrix, c models.ClusterAssignment, directed bool) (edges, pairs *mat.Dense, sizes []int) {
	n := adj.N()
	sizes = c.Sizes()
	k := len(sizes)

	edges = mat.NewDense(k, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if adj.HasEdge(i, j) {
				edges.Set(c[i], c[j], edges.At(c[i], c[j])+1)
			}
		}
	}

	pairs = mat.NewDense(k, k, nil)
	for c1 := 0; c1 < k; c1++ {
		for c2 := 0; c2 < k; c2++ {
			pairs.Set(c1, c2, float64(sizes[c1]*sizes[c2]))
		}
		// no self-edges
		pairs.Set(c1, c1, pairs.At(c1, c1)-float64(sizes[c1]))
		if !directed {
			edges.Set(c1, c1, edges.At(c1, c1)/2)
			pairs.Set(c1, c1, pairs.At(c1, c1)/2)
		}
	}
	return edges, pairs, sizes
}

// blockLogLik sums nEdges·ln(p) + (nPairs−nEdges)·ln(1−p) over the lower
// triangle of blocks (undirected) or all blocks (directed). Blocks without
// pairs are skipped.
func blockLogLik(edges, pairs *mat.Dense, prob mat.Matrix, directed bool) float64 {
	k, _ := edges.Dims()
	total := 0.0
	for c1 := 0; c1 < k; c1++ {
		for c2 := 0; c2 < k; c2++ {
			if !directed && c2 > c1 {
				continue
			}
			np := pairs.At(c1, c2)
			if np == 0 {
				continue
			}
			ne := edges.At(c1, c2)
			p := prob.At(c1, c2)
			total += xlogy(ne, p) + xlogy(np-ne, 1-p)
		}
	}
	return total
}

// xlogy returns x·ln(y) with 0·ln(0) = 0.
func xlogy(x, y float64) float64 {
	if x == 0 && !math.IsNaN(y) {
		return 0
	}
	return x * math.Log(y)
}

// checkProb validates block probabilities. Undirected models need a
// symmetric matrix, NaN matching NaN.
func checkProb(prob mat.Matrix, k int, directed bool) error {
	if prob == nil {
		return models.InvalidParameterf("block probability matrix is nil")
	}
	r, c := prob.Dims()
	if r != c {
		return models.InvalidParameterf("block probability matrix must be square, got %dx%d", r, c)
	}
	if r < k {
		return models.InvalidParameterf("block probability matrix is %dx%d but assignment has %d clusters", r, c, k)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p := prob.At(i, j)
			if math.IsNaN(p) {
				continue
			}
			if p < 0 || p > 1 {
				return models.InvalidParameterf("block probability (%d,%d) = %v outside [0,1]", i, j, p)
			}
		}
	}
	if !directed {
		for i := 0; i < r; i++ {
			for j := 0; j < i; j++ {
				a, b := prob.At(i, j), prob.At(j, i)
				if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
					return models.InvalidParameterf("undirected block probabilities must be symmetric, (%d,%d) = %v but (%d,%d) = %v", i, j, a, j, i, b)
				}
			}
		}
	}
	return nil
}
