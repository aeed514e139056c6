// Package spectral implements spectral clustering of adjacency matrices:
// a rank-truncated singular value decomposition followed by k-means on the
// scaled singular vectors.
//
// Clustering is split in two phases so that a caller can inspect the
// singular values (for example to choose the number of clusters) before
// committing:
//
//	spec, err := spectral.ComputeSpectrum(adj, spectral.SpectrumOptions{})
//	// look at spec.Values
//	labels, err := spectral.ClusterFromSpectrum(spec, 3, false, spectral.KMeansOptions{Rand: rng})
//
// Cluster runs both phases when the number of clusters is known.
package spectral

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// Method selects how the singular value decomposition is computed.
type Method string

const (
	// MethodFull factorizes the whole matrix and keeps the leading components.
	MethodFull Method = "full"
	// MethodTruncated computes only the leading components by randomized
	// subspace iteration.
	MethodTruncated Method = "truncated"
)

const (
	DefaultRank            = 20
	DefaultOversampling    = 10
	DefaultPowerIterations = 4
	DefaultSeed            = 42
)

// SpectrumOptions configures ComputeSpectrum.
type SpectrumOptions struct {
	Method          Method     // default MethodFull
	Rank            int        // components kept, default DefaultRank, clamped to N
	Oversampling    int        // extra subspace dimensions (truncated only)
	PowerIterations int        // subspace iterations (truncated only)
	Rand            *rand.Rand // random test matrix source (truncated only)
}

// Spectrum holds the leading singular triplets, sorted by decreasing
// singular value. Columns of U and V are the left and right singular vectors.
type Spectrum struct {
	Method Method
	Values []float64
	U      *mat.Dense
	V      *mat.Dense
}

// Rank returns the number of stored components.
func (s *Spectrum) Rank() int { return len(s.Values) }

// ComputeSpectrum returns the leading singular triplets of adj.
func ComputeSpectrum(adj mat.Matrix, opts SpectrumOptions) (*Spectrum, error) {
	n, c := adj.Dims()
	if n != c {
		return nil, models.InvalidParameterf("matrix must be square, got %dx%d", n, c)
	}
	if n == 0 {
		return nil, models.InvalidParameterf("matrix is empty")
	}
	if opts.Rank < 0 {
		return nil, models.InvalidParameterf("rank must be non-negative, got %d", opts.Rank)
	}

	rank := opts.Rank
	if rank == 0 {
		rank = DefaultRank
	}
	if rank > n {
		rank = n
	}

	var (
		spec *Spectrum
		err  error
	)
	switch opts.Method {
	case MethodFull, "":
		spec, err = fullSVD(adj, rank)
	case MethodTruncated:
		spec, err = truncatedSVD(adj, rank, opts)
	default:
		return nil, models.InvalidParameterf("unknown SVD method %q", opts.Method)
	}
	if err != nil {
		return nil, err
	}

	spec.sortDescending()
	return spec, nil
}

func fullSVD(adj mat.Matrix, rank int) (*Spectrum, error) {
	n, _ := adj.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(adj, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	return &Spectrum{
		Method: MethodFull,
		Values: values[:rank],
		U:      mat.DenseCopyOf(u.Slice(0, n, 0, rank)),
		V:      mat.DenseCopyOf(v.Slice(0, n, 0, rank)),
	}, nil
}

// truncatedSVD is the randomized range finder with power iterations:
// an orthonormal basis Q of range(A·Ω) is refined by alternating
// multiplication with Aᵀ and A, then the small matrix QᵀA is factorized.
func truncatedSVD(adj mat.Matrix, rank int, opts SpectrumOptions) (*Spectrum, error) {
	n, _ := adj.Dims()

	oversampling := opts.Oversampling
	if oversampling <= 0 {
		oversampling = DefaultOversampling
	}
	powerIters := opts.PowerIterations
	if powerIters < 0 {
		return nil, models.InvalidParameterf("power iterations must be non-negative, got %d", powerIters)
	}
	if powerIters == 0 {
		powerIters = DefaultPowerIterations
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(DefaultSeed, DefaultSeed))
	}

	width := rank + oversampling
	if width > n {
		width = n
	}

	omega := mat.NewDense(n, width, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < width; j++ {
			omega.Set(i, j, rng.NormFloat64())
		}
	}

	var y mat.Dense
	y.Mul(adj, omega)
	q := orthonormalBasis(&y, width)

	for it := 0; it < powerIters; it++ {
		var z mat.Dense
		z.Mul(adj.T(), q)
		qz := orthonormalBasis(&z, width)

		var y2 mat.Dense
		y2.Mul(adj, qz)
		q = orthonormalBasis(&y2, width)
	}

	// B = Qᵀ A is width × n
	var b mat.Dense
	b.Mul(q.T(), adj)

	var svd mat.SVD
	if ok := svd.Factorize(&b, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD of projected matrix failed")
	}
	var ub, vb mat.Dense
	svd.UTo(&ub)
	svd.VTo(&vb)
	values := svd.Values(nil)

	var u mat.Dense
	u.Mul(q, &ub)

	return &Spectrum{
		Method: MethodTruncated,
		Values: values[:rank],
		U:      mat.DenseCopyOf(u.Slice(0, n, 0, rank)),
		V:      mat.DenseCopyOf(vb.Slice(0, n, 0, rank)),
	}, nil
}

// orthonormalBasis returns the first width columns of Q from a QR
// factorization of a.
func orthonormalBasis(a *mat.Dense, width int) *mat.Dense {
	n, _ := a.Dims()
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	return mat.DenseCopyOf(q.Slice(0, n, 0, width))
}

// sortDescending reorders the triplets by decreasing singular value.
func (s *Spectrum) sortDescending() {
	r := len(s.Values)
	order := make([]int, r)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Values[order[a]] > s.Values[order[b]]
	})

	sorted := true
	for i, o := range order {
		if i != o {
			sorted = false
			break
		}
	}
	if sorted {
		return
	}

	n, _ := s.U.Dims()
	values := make([]float64, r)
	u := mat.NewDense(n, r, nil)
	v := mat.NewDense(n, r, nil)
	for dst, src := range order {
		values[dst] = s.Values[src]
		u.SetCol(dst, mat.Col(nil, src, s.U))
		v.SetCol(dst, mat.Col(nil, src, s.V))
	}
	s.Values, s.U, s.V = values, u, v
}
