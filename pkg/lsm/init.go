package lsm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/mds"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// ErrDisconnectedGraph is returned when the graph has no edges at all, so
// no diameter exists to stand in for unreachable pairs.
var ErrDisconnectedGraph = fmt.Errorf("graph has no edges, shortest-path distances are undefined: %w", models.ErrDegenerateModel)

// ShortestPathDistances returns hop distances between all node pairs of the
// undirected graph induced by adj. Pairs with no connecting path get twice
// the diameter (the largest finite distance).
func ShortestPathDistances(adj *adjacency.Matrix) (*mat.SymDense, error) {
	if adj == nil {
		return nil, models.InvalidParameterf("adjacency matrix is nil")
	}
	n := adj.N()
	paths := path.DijkstraAllPaths(adj.UndirectedGraph())

	dist := mat.NewSymDense(n, nil)
	diameter := 0.0
	unreachable := false
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := paths.Weight(int64(i), int64(j))
			if math.IsInf(d, 1) {
				unreachable = true
				d = -1
			} else if d > diameter {
				diameter = d
			}
			dist.SetSym(i, j, d)
		}
	}
	if diameter == 0 && n > 1 {
		return nil, ErrDisconnectedGraph
	}

	if unreachable {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if dist.At(i, j) < 0 {
					dist.SetSym(i, j, 2*diameter)
				}
			}
		}
	}
	return dist, nil
}

// InitialPositions embeds the distance matrix in dim dimensions by classical
// (Torgerson) multidimensional scaling. When fewer than dim eigenvalues are
// positive, the remaining coordinates are zero.
func InitialPositions(dist mat.Symmetric, dim int) (*mat.Dense, error) {
	n := dist.SymmetricDim()
	if dim <= 0 {
		return nil, models.InvalidParameterf("dimension must be positive, got %d", dim)
	}
	if dim >= n {
		return nil, models.InvalidParameterf("dimension %d must be less than the number of nodes %d", dim, n)
	}

	var coords mat.Dense
	eig := make([]float64, n)
	k, _ := mds.TorgersonScaling(&coords, eig, dist)
	if k == 0 {
		return nil, fmt.Errorf("multidimensional scaling found no positive eigenvalue: %w", models.ErrDegenerateModel)
	}

	pos := mat.NewDense(n, dim, nil)
	keep := min(k, dim)
	pos.Slice(0, n, 0, keep).(*mat.Dense).Copy(coords.Slice(0, n, 0, keep))
	return pos, nil
}
