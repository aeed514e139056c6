// Package netstats computes the network statistics compared between observed
// and simulated networks.
package netstats

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
)

// Statistic names used as keys in goodness-of-fit reports.
const (
	StatEdges        = "edges"
	StatDensity      = "density"
	StatTransitivity = "transitivity"
	StatReciprocity  = "reciprocity"
)

// Summary collects the statistics of one network.
type Summary struct {
	Nodes        int     `json:"nodes" yaml:"nodes"`
	Edges        int     `json:"edges" yaml:"edges"`
	Density      float64 `json:"density" yaml:"density"`
	Transitivity float64 `json:"transitivity" yaml:"transitivity"`
	Reciprocity  float64 `json:"reciprocity" yaml:"reciprocity"`
}

// Compute returns all statistics for adj.
func Compute(adj *adjacency.Matrix, directed bool) Summary {
	return Summary{
		Nodes:        adj.N(),
		Edges:        EdgeCount(adj, directed),
		Density:      Density(adj, directed),
		Transitivity: Transitivity(adj),
		Reciprocity:  Reciprocity(adj),
	}
}

// Values returns the statistics keyed by name.
func (s Summary) Values() map[string]float64 {
	return map[string]float64{
		StatEdges:        float64(s.Edges),
		StatDensity:      s.Density,
		StatTransitivity: s.Transitivity,
		StatReciprocity:  s.Reciprocity,
	}
}

// EdgeCount counts directed edges, or unordered pairs when undirected.
func EdgeCount(adj *adjacency.Matrix, directed bool) int {
	return adj.NumEdges(directed)
}

// Density is the fraction of possible edges present. NaN below two nodes.
func Density(adj *adjacency.Matrix, directed bool) float64 {
	n := float64(adj.N())
	possible := n * (n - 1)
	if !directed {
		possible /= 2
	}
	if possible == 0 {
		return math.NaN()
	}
	return float64(adj.NumEdges(directed)) / possible
}

// Transitivity is the global clustering coefficient of the symmetrized
// graph: 3·triangles / connected triples, computed as trace(A³)/Σ k(k−1).
// A graph without any connected triple has transitivity 0.
func Transitivity(adj *adjacency.Matrix) float64 {
	sym := adj.Symmetrize()
	n := sym.N()

	var a2 mat.Dense
	a2.Mul(sym, sym)

	closed := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if sym.HasEdge(i, j) {
				closed += a2.At(i, j)
			}
		}
	}
	triples := 0.0
	for _, k := range sym.OutDegrees() {
		triples += float64(k * (k - 1))
	}
	if triples == 0 {
		return 0
	}
	return closed / triples
}

// Reciprocity is the fraction of directed edges i→j whose reverse j→i is
// also present. Symmetric graphs have reciprocity 1; NaN without edges.
func Reciprocity(adj *adjacency.Matrix) float64 {
	n := adj.N()
	edges, mutual := 0, 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !adj.HasEdge(i, j) {
				continue
			}
			edges++
			if adj.HasEdge(j, i) {
				mutual++
			}
		}
	}
	if edges == 0 {
		return math.NaN()
	}
	return float64(mutual) / float64(edges)
}
