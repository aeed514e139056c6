package netstats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
)

func mustRows(t *testing.T, rows [][]float64) *adjacency.Matrix {
	t.Helper()
	m, err := adjacency.FromRows(rows)
	require.NoError(t, err)
	return m
}

func TestUndirectedStatistics(t *testing.T) {
	// triangle 0-1-2 with a pendant 3 attached to 2
	adj := mustRows(t, [][]float64{
		{0, 1, 1, 0},
		{1, 0, 1, 0},
		{1, 1, 0, 1},
		{0, 0, 1, 0},
	})

	s := Compute(adj, false)
	assert.Equal(t, 4, s.Nodes)
	assert.Equal(t, 4, s.Edges)
	assert.InDelta(t, 4.0/6.0, s.Density, 1e-12)
	// one triangle, five connected triples
	assert.InDelta(t, 3.0/5.0, s.Transitivity, 1e-12)
	assert.Equal(t, 1.0, s.Reciprocity)
}

func TestTransitivity(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float64
		want float64
	}{
		{
			name: "Triangle",
			rows: [][]float64{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}},
			want: 1,
		},
		{
			name: "Star",
			rows: [][]float64{{0, 1, 1, 1}, {1, 0, 0, 0}, {1, 0, 0, 0}, {1, 0, 0, 0}},
			want: 0,
		},
		{
			name: "SingleEdge",
			rows: [][]float64{{0, 1}, {1, 0}},
			want: 0,
		},
		{
			name: "DirectedCycleIsATriangle",
			rows: [][]float64{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Transitivity(mustRows(t, tt.rows)), 1e-12)
		})
	}
}

func TestDirectedStatistics(t *testing.T) {
	// 0<->1, 1->2
	adj := mustRows(t, [][]float64{
		{0, 1, 0},
		{1, 0, 1},
		{0, 0, 0},
	})

	assert.Equal(t, 3, EdgeCount(adj, true))
	assert.InDelta(t, 0.5, Density(adj, true), 1e-12)
	assert.InDelta(t, 2.0/3.0, Reciprocity(adj), 1e-12)
}

func TestDegenerateStatistics(t *testing.T) {
	assert.True(t, math.IsNaN(Density(adjacency.Empty(1), false)))
	assert.True(t, math.IsNaN(Reciprocity(adjacency.Empty(3))))
	assert.Equal(t, 0.0, Transitivity(adjacency.Empty(3)))
	assert.Equal(t, 0.0, Density(adjacency.Empty(3), true))
}

func TestSummaryValues(t *testing.T) {
	s := Summary{Nodes: 3, Edges: 2, Density: 0.5, Transitivity: 0.25, Reciprocity: 1}
	assert.Equal(t, map[string]float64{
		StatEdges:        2,
		StatDensity:      0.5,
		StatTransitivity: 0.25,
		StatReciprocity:  1,
	}, s.Values())
}
