// Package adjacency provides the binary adjacency matrix shared by every
// fitting and simulation package, plus its plain-text format and adapters to
// gonum graphs.
package adjacency

import (
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// Matrix is a square 0/1 matrix with an all-zero diagonal.
// It implements mat.Matrix so it can be handed straight to gonum routines,
// but exposes no mutators: values are fixed at construction.
type Matrix struct {
	data *mat.Dense
	n    int
}

// FromDense copies src into a new Matrix after validating it.
func FromDense(src mat.Matrix) (*Matrix, error) {
	r, c := src.Dims()
	if r != c {
		return nil, models.InvalidParameterf("adjacency matrix must be square, got %dx%d", r, c)
	}
	if err := validateEntries(src, r); err != nil {
		return nil, err
	}
	return &Matrix{data: mat.DenseCopyOf(src), n: r}, nil
}

// FromRows builds a Matrix from row slices.
func FromRows(rows [][]float64) (*Matrix, error) {
	n := len(rows)
	if n == 0 {
		return nil, models.InvalidParameterf("adjacency matrix has no rows")
	}
	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, models.InvalidParameterf("row %d has %d values, want %d", i, len(row), n)
		}
		data = append(data, row...)
	}
	return FromDense(mat.NewDense(n, n, data))
}

// Empty returns an n-node graph without edges. n must be positive.
func Empty(n int) *Matrix {
	return &Matrix{data: mat.NewDense(n, n, nil), n: n}
}

func validateEntries(src mat.Matrix, n int) error {
	if n == 0 {
		return models.InvalidParameterf("adjacency matrix has no rows")
	}
	for i := 0; i < n; i++ {
		if v := src.At(i, i); v != 0 {
			return models.InvalidParameterf("self-edge at node %d (value %v)", i, v)
		}
		for j := 0; j < n; j++ {
			v := src.At(i, j)
			if v != 0 && v != 1 {
				return models.InvalidParameterf("entry (%d,%d) = %v is not binary", i, j, v)
			}
		}
	}
	return nil
}

// Dims implements mat.Matrix.
func (m *Matrix) Dims() (int, int) { return m.n, m.n }

// At implements mat.Matrix.
func (m *Matrix) At(i, j int) float64 { return m.data.At(i, j) }

// T implements mat.Matrix.
func (m *Matrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// N returns the number of nodes.
func (m *Matrix) N() int { return m.n }

// HasEdge reports whether i -> j is present.
func (m *Matrix) HasEdge(i, j int) bool { return m.data.At(i, j) != 0 }

// Dense returns a copy of the underlying values.
func (m *Matrix) Dense() *mat.Dense { return mat.DenseCopyOf(m.data) }

// IsSymmetric reports whether every edge has its reverse.
func (m *Matrix) IsSymmetric() bool {
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if m.data.At(i, j) != m.data.At(j, i) {
				return false
			}
		}
	}
	return true
}

// NumEdges counts edges: ordered pairs when directed, unordered pairs
// (either direction present) otherwise.
func (m *Matrix) NumEdges(directed bool) int {
	count := 0
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if i == j {
				continue
			}
			if directed {
				if m.HasEdge(i, j) {
					count++
				}
			} else if j > i && (m.HasEdge(i, j) || m.HasEdge(j, i)) {
				count++
			}
		}
	}
	return count
}

// OutDegrees returns row sums.
func (m *Matrix) OutDegrees() []int {
	deg := make([]int, m.n)
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if m.HasEdge(i, j) {
				deg[i]++
			}
		}
	}
	return deg
}

// Symmetrize returns the undirected graph with an edge wherever either
// direction is present.
func (m *Matrix) Symmetrize() *Matrix {
	out := mat.NewDense(m.n, m.n, nil)
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if m.HasEdge(i, j) || m.HasEdge(j, i) {
				out.Set(i, j, 1)
			}
		}
	}
	return &Matrix{data: out, n: m.n}
}

// LowerTriangle returns the undirected graph read off the strictly lower
// triangle, ignoring the upper one.
func (m *Matrix) LowerTriangle() *Matrix {
	out := mat.NewDense(m.n, m.n, nil)
	for i := 0; i < m.n; i++ {
		for j := 0; j < i; j++ {
			if m.HasEdge(i, j) {
				out.Set(i, j, 1)
				out.Set(j, i, 1)
			}
		}
	}
	return &Matrix{data: out, n: m.n}
}

// Permute returns the matrix with rows and columns reordered so that
// node order[k] becomes node k.
func (m *Matrix) Permute(order []int) (*Matrix, error) {
	if len(order) != m.n {
		return nil, models.InvalidParameterf("permutation has %d entries, want %d", len(order), m.n)
	}
	seen := make([]bool, m.n)
	for _, v := range order {
		if v < 0 || v >= m.n || seen[v] {
			return nil, models.InvalidParameterf("order is not a permutation of 0..%d", m.n-1)
		}
		seen[v] = true
	}
	out := mat.NewDense(m.n, m.n, nil)
	for i, oi := range order {
		for j, oj := range order {
			out.Set(i, j, m.data.At(oi, oj))
		}
	}
	return &Matrix{data: out, n: m.n}, nil
}

// Equal reports element-wise equality.
func (m *Matrix) Equal(other *Matrix) bool {
	if other == nil || other.n != m.n {
		return false
	}
	return mat.Equal(m.data, other.data)
}
