// Package edgelist loads raw edge lists, filters them by degree and converts
// them to adjacency matrices.
package edgelist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/models"
)

// Graph is an edge list loaded into memory. Nodes keep the order in which
// they first appeared in the input; parallel edges collapse into one.
type Graph struct {
	directed bool
	labels   []string
	index    map[string]int
	removed  []bool
	out      []map[int]struct{}
	in       []map[int]struct{} // same as out when undirected
}

// New creates an empty graph.
func New(directed bool) *Graph {
	return &Graph{directed: directed, index: make(map[string]int)}
}

// Read parses "source target [attributes...]" lines. Blank lines and lines
// starting with '#' are skipped; attributes are ignored.
func Read(r io.Reader, directed bool) (*Graph, error) {
	g := New(directed)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, models.InvalidParameterf("line %d: expected source and target, got %q", lineNum, line)
		}
		g.AddEdge(parts[0], parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edge list: %w", err)
	}
	return g, nil
}

// ReadFile reads an edge list from path.
func ReadFile(path string, directed bool) (*Graph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Read(file, directed)
}

func (g *Graph) node(label string) int {
	if id, ok := g.index[label]; ok {
		return id
	}
	id := len(g.labels)
	g.index[label] = id
	g.labels = append(g.labels, label)
	g.removed = append(g.removed, false)
	g.out = append(g.out, make(map[int]struct{}))
	if g.directed {
		g.in = append(g.in, make(map[int]struct{}))
	} else {
		g.in = g.out
	}
	return id
}

// AddEdge adds from→to (or the undirected edge), creating nodes as needed.
// A removed node is not revived.
func (g *Graph) AddEdge(from, to string) {
	u, v := g.node(from), g.node(to)
	if g.removed[u] || g.removed[v] {
		return
	}
	g.out[u][v] = struct{}{}
	g.in[v][u] = struct{}{}
}

// Directed reports whether edges are ordered.
func (g *Graph) Directed() bool { return g.directed }

// Nodes returns the labels of the remaining nodes in first-seen order.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.labels))
	for id, label := range g.labels {
		if !g.removed[id] {
			nodes = append(nodes, label)
		}
	}
	return nodes
}

// NumNodes counts the remaining nodes.
func (g *Graph) NumNodes() int {
	n := 0
	for _, r := range g.removed {
		if !r {
			n++
		}
	}
	return n
}

// NumEdges counts edges, each undirected edge once.
func (g *Graph) NumEdges() int {
	total, loops := 0, 0
	for u, succ := range g.out {
		if g.removed[u] {
			continue
		}
		total += len(succ)
		if _, ok := succ[u]; ok {
			loops++
		}
	}
	if g.directed {
		return total
	}
	return (total-loops)/2 + loops
}

// outDegree counts a self-loop twice in undirected graphs.
func (g *Graph) outDegree(id int) int {
	d := len(g.out[id])
	if _, ok := g.out[id][id]; ok && !g.directed {
		d++
	}
	return d
}

func (g *Graph) inDegree(id int) int {
	if !g.directed {
		return g.outDegree(id)
	}
	return len(g.in[id])
}

// Degree returns the degree of label (out-degree + in-degree when directed).
func (g *Graph) Degree(label string) (int, bool) {
	id, ok := g.index[label]
	if !ok || g.removed[id] {
		return 0, false
	}
	if g.directed {
		return g.outDegree(id) + g.inDegree(id), true
	}
	return g.outDegree(id), true
}

// Reverse flips every edge of a directed graph. Undirected graphs are
// unchanged.
func (g *Graph) Reverse() {
	if g.directed {
		g.out, g.in = g.in, g.out
	}
}

// RemoveSelfLoops deletes all edges from a node to itself and returns how
// many were removed.
func (g *Graph) RemoveSelfLoops() int {
	removed := 0
	for id := range g.labels {
		if _, ok := g.out[id][id]; ok {
			delete(g.out[id], id)
			delete(g.in[id], id)
			removed++
		}
	}
	return removed
}

func (g *Graph) removeNode(id int) {
	for v := range g.out[id] {
		delete(g.in[v], id)
	}
	for u := range g.in[id] {
		delete(g.out[u], id)
	}
	g.out[id] = make(map[int]struct{})
	if g.directed {
		g.in[id] = make(map[int]struct{})
	} else {
		g.in[id] = g.out[id]
	}
	g.removed[id] = true
}

// FilterByDegree removes low-degree nodes and returns how many were removed.
//
// Undirected graphs lose every node whose degree is below minDegree.
// Directed graphs lose every node whose in- and out-degree are both below
// minDegree, and then every node left with neither in- nor out-edges.
// Degrees are taken before any node is removed.
func (g *Graph) FilterByDegree(minDegree int) int {
	var drop []int
	for id := range g.labels {
		if g.removed[id] {
			continue
		}
		if g.directed {
			if g.inDegree(id) < minDegree && g.outDegree(id) < minDegree {
				drop = append(drop, id)
			}
		} else if g.outDegree(id) < minDegree {
			drop = append(drop, id)
		}
	}
	for _, id := range drop {
		g.removeNode(id)
	}
	removed := len(drop)

	if g.directed {
		for id := range g.labels {
			if !g.removed[id] && len(g.in[id]) == 0 && len(g.out[id]) == 0 {
				g.removeNode(id)
				removed++
			}
		}
	}
	return removed
}

// ToAdjacency converts the remaining nodes to an adjacency matrix, rows in
// the order returned by Nodes. Self-loops are dropped.
func (g *Graph) ToAdjacency() (*adjacency.Matrix, []string, error) {
	labels := g.Nodes()
	n := len(labels)
	if n == 0 {
		return nil, nil, models.InvalidParameterf("graph has no nodes")
	}

	pos := make(map[int]int, n)
	for id := range g.labels {
		if !g.removed[id] {
			pos[id] = len(pos)
		}
	}

	data := mat.NewDense(n, n, nil)
	for u, i := range pos {
		for v := range g.out[u] {
			if u == v {
				continue
			}
			data.Set(i, pos[v], 1)
		}
	}

	adj, err := adjacency.FromDense(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build adjacency matrix: %w", err)
	}
	return adj, labels, nil
}
