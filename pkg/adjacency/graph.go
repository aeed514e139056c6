package adjacency

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// UndirectedGraph converts the matrix to a gonum graph with node IDs equal
// to matrix indices. An edge exists if either direction is present.
func (m *Matrix) UndirectedGraph() *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for i := 0; i < m.n; i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if m.HasEdge(i, j) || m.HasEdge(j, i) {
				g.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
			}
		}
	}
	return g
}

// ConnectedComponents returns the weakly connected components as sorted
// node index lists, ordered by their smallest node.
func (m *Matrix) ConnectedComponents() [][]int {
	comps := topo.ConnectedComponents(m.UndirectedGraph())
	out := make([][]int, len(comps))
	for i, comp := range comps {
		out[i] = nodeIndices(comp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a][0] < out[b][0] })
	return out
}

func nodeIndices(nodes []graph.Node) []int {
	idx := make([]int, len(nodes))
	for i, n := range nodes {
		idx[i] = int(n.ID())
	}
	sort.Ints(idx)
	return idx
}
