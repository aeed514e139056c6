package spectral

import (
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

const (
	DefaultNInit         = 10
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
)

// KMeansOptions configures KMeans. Zero values select the defaults.
type KMeansOptions struct {
	NInit         int             // independent restarts, best inertia wins
	MaxIterations int             // Lloyd iterations per restart
	Tolerance     float64         // relative to the mean per-feature variance
	Rand          *rand.Rand      // seeding source; nil uses DefaultSeed
	Logger        *zerolog.Logger // nil disables logging
}

// KMeansResult is the best restart found.
type KMeansResult struct {
	Labels     []int
	Centers    *mat.Dense
	Inertia    float64
	Iterations int
	Converged  bool
}

func (o KMeansOptions) withDefaults() KMeansOptions {
	if o.NInit <= 0 {
		o.NInit = DefaultNInit
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(DefaultSeed, DefaultSeed))
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// KMeans clusters the rows of data into k groups with k-means++ seeding and
// Lloyd iterations. Running out of iterations is not an error: the best
// iterate is returned with Converged set to false. Labels are renumbered in
// order of first appearance, so row 0 is always in cluster 0.
func KMeans(data mat.Matrix, k int, opts KMeansOptions) (*KMeansResult, error) {
	n, dim := data.Dims()
	if k <= 0 || k > n {
		return nil, models.InvalidParameterf("k must be in [1, %d], got %d", n, k)
	}
	opts = opts.withDefaults()

	points := make([][]float64, n)
	for i := range points {
		points[i] = mat.Row(nil, i, data)
	}
	threshold := opts.Tolerance * meanVariance(points, dim)

	var best *KMeansResult
	for run := 0; run < opts.NInit; run++ {
		res := lloyd(points, k, dim, threshold, opts)
		opts.Logger.Debug().
			Int("run", run).
			Int("iterations", res.Iterations).
			Float64("inertia", res.Inertia).
			Bool("converged", res.Converged).
			Msg("k-means restart finished")
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}

	if !best.Converged {
		opts.Logger.Warn().
			Int("k", k).
			Int("max_iterations", opts.MaxIterations).
			Msg("k-means did not converge, returning best iterate")
	}

	canonicalize(best, k, dim)
	return best, nil
}

func lloyd(points [][]float64, k, dim int, threshold float64, opts KMeansOptions) *KMeansResult {
	n := len(points)
	centers := seedPlusPlus(points, k, opts.Rand)
	labels := make([]int, n)
	counts := make([]int, k)

	res := &KMeansResult{}
	for it := 0; it < opts.MaxIterations; it++ {
		res.Iterations = it + 1
		assign(points, centers, labels)

		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, dim)
			counts[c] = 0
		}
		for i, p := range points {
			floats.Add(next[labels[i]], p)
			counts[labels[i]]++
		}
		for c := range next {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), next[c])
			}
		}
		reseedEmpty(points, next, labels, counts)

		shift := 0.0
		for c := range centers {
			d := floats.Distance(centers[c], next[c], 2)
			shift += d * d
		}
		centers = next
		if shift <= threshold {
			res.Converged = true
			break
		}
	}

	res.Inertia = assign(points, centers, labels)
	res.Labels = labels
	res.Centers = mat.NewDense(k, dim, nil)
	for c, center := range centers {
		res.Centers.SetRow(c, center)
	}
	return res
}

// seedPlusPlus picks initial centers with probability proportional to the
// squared distance from the nearest already chosen center.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centers := make([][]float64, 0, k)
	first := points[rng.IntN(n)]
	centers = append(centers, append([]float64(nil), first...))

	closest := make([]float64, n)
	for i, p := range points {
		closest[i] = sqDist(p, centers[0])
	}

	for len(centers) < k {
		total := floats.Sum(closest)
		idx := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range closest {
				cum += d
				if cum >= target && d > 0 {
					idx = i
					break
				}
			}
		}
		center := append([]float64(nil), points[idx]...)
		centers = append(centers, center)
		for i, p := range points {
			if d := sqDist(p, center); d < closest[i] {
				closest[i] = d
			}
		}
	}
	return centers
}

// assign sets each label to the nearest center and returns the inertia.
func assign(points, centers [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, p := range points {
		bestC, bestD := 0, math.Inf(1)
		for c, center := range centers {
			if d := sqDist(p, center); d < bestD {
				bestC, bestD = c, d
			}
		}
		labels[i] = bestC
		inertia += bestD
	}
	return inertia
}

// reseedEmpty moves each empty cluster's center onto the point farthest from
// its own center, taken from a cluster that can spare it.
func reseedEmpty(points, centers [][]float64, labels, counts []int) {
	for c := range centers {
		if counts[c] > 0 {
			continue
		}
		far, farD := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] < 2 {
				continue
			}
			if d := sqDist(p, centers[labels[i]]); d > farD {
				far, farD = i, d
			}
		}
		if far < 0 {
			return
		}
		counts[labels[far]]--
		labels[far] = c
		counts[c] = 1
		copy(centers[c], points[far])
	}
}

// canonicalize renumbers clusters by first appearance.
func canonicalize(res *KMeansResult, k, dim int) {
	mapping := make([]int, k)
	for i := range mapping {
		mapping[i] = -1
	}
	next := 0
	for _, l := range res.Labels {
		if mapping[l] < 0 {
			mapping[l] = next
			next++
		}
	}
	for c := range mapping {
		if mapping[c] < 0 {
			mapping[c] = next
			next++
		}
	}

	centers := mat.NewDense(k, dim, nil)
	for c := 0; c < k; c++ {
		centers.SetRow(mapping[c], mat.Row(nil, c, res.Centers))
	}
	for i, l := range res.Labels {
		res.Labels[i] = mapping[l]
	}
	res.Centers = centers
}

func meanVariance(points [][]float64, dim int) float64 {
	if len(points) == 0 || dim == 0 {
		return 0
	}
	col := make([]float64, len(points))
	total := 0.0
	for j := 0; j < dim; j++ {
		for i, p := range points {
			col[i] = p[j]
		}
		mean := floats.Sum(col) / float64(len(col))
		v := 0.0
		for _, x := range col {
			v += (x - mean) * (x - mean)
		}
		total += v / float64(len(col))
	}
	return total / float64(dim)
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
