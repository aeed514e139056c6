package spectral

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// ErrClusterCountRequired is returned when no cluster count was given.
// Callers choose one from Spectrum.Values and call ClusterFromSpectrum.
var ErrClusterCountRequired = errors.New("number of clusters must be chosen from the spectrum")

// Options bundles both clustering phases.
type Options struct {
	Spectrum SpectrumOptions
	KMeans   KMeansOptions
}

// Embedding returns the spectral embedding used for clustering:
// Z = U·sqrt(S) on the leading nClusters components, with V·sqrt(S)
// appended column-wise for directed graphs.
func Embedding(spec *Spectrum, nClusters int, directed bool) (*mat.Dense, error) {
	if spec == nil {
		return nil, models.InvalidParameterf("spectrum is nil")
	}
	n, _ := spec.U.Dims()
	if err := checkClusterCount(nClusters, n); err != nil {
		return nil, err
	}
	if nClusters > spec.Rank() {
		return nil, models.InvalidParameterf("spectrum holds %d components, %d clusters requested", spec.Rank(), nClusters)
	}

	width := nClusters
	if directed {
		width *= 2
	}
	z := mat.NewDense(n, width, nil)
	for c := 0; c < nClusters; c++ {
		scale := math.Sqrt(spec.Values[c])
		for i := 0; i < n; i++ {
			z.Set(i, c, spec.U.At(i, c)*scale)
			if directed {
				z.Set(i, nClusters+c, spec.V.At(i, c)*scale)
			}
		}
	}
	return z, nil
}

// ClusterFromSpectrum runs k-means on the spectral embedding of spec.
func ClusterFromSpectrum(spec *Spectrum, nClusters int, directed bool, opts KMeansOptions) (models.ClusterAssignment, error) {
	z, err := Embedding(spec, nClusters, directed)
	if err != nil {
		return nil, err
	}

	res, err := KMeans(z, nClusters, opts)
	if err != nil {
		return nil, fmt.Errorf("k-means on spectral embedding: %w", err)
	}
	return models.ClusterAssignment(res.Labels), nil
}

// Cluster computes the spectrum of adj and clusters it into nClusters groups.
// The spectrum rank is raised to nClusters when needed.
func Cluster(adj mat.Matrix, nClusters int, directed bool, opts Options) (models.ClusterAssignment, error) {
	n, _ := adj.Dims()
	if err := checkClusterCount(nClusters, n); err != nil {
		return nil, err
	}

	specOpts := opts.Spectrum
	if specOpts.Rank < nClusters {
		specOpts.Rank = nClusters
	}
	spec, err := ComputeSpectrum(adj, specOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to compute spectrum: %w", err)
	}
	return ClusterFromSpectrum(spec, nClusters, directed, opts.KMeans)
}

func checkClusterCount(nClusters, n int) error {
	switch {
	case nClusters == 0:
		return ErrClusterCountRequired
	case nClusters < 0:
		return models.InvalidParameterf("number of clusters must be positive, got %d", nClusters)
	case nClusters > n:
		return models.InvalidParameterf("number of clusters %d exceeds number of nodes %d", nClusters, n)
	}
	return nil
}
