package gf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/openne/pkg/pronet"
)

func squareGraph(t *testing.T) *pronet.Graph {
	t.Helper()
	g := pronet.NewGraph()
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"}} {
		require.NoError(t, g.AddEdge(e[0], e[1], 1))
		require.NoError(t, g.AddEdge(e[1], e[0], 1))
	}
	return g
}

func TestGF_CostMatchesDefinition(t *testing.T) {
	g := squareGraph(t)
	m := New(2, 0.01, 0.5, rand.New(rand.NewSource(1)))
	require.NoError(t, m.Build(g))

	rows := m.emb.Snapshot()
	want := 0.0
	for i := range rows {
		for j := range rows {
			p := rows[i][0]*rows[j][0] + rows[i][1]*rows[j][1]
			a := m.adj.At(i, j)
			r := a - p*m.mask.At(i, j)
			want += r * r
		}
		want += 0.5 * (rows[i][0]*rows[i][0] + rows[i][1]*rows[i][1])
	}

	cost, err := m.TrainEpoch()
	require.NoError(t, err)
	assert.InDelta(t, want, cost, 1e-9)
}

func TestGF_CostDecreases(t *testing.T) {
	m := New(2, 0.01, 0.1, rand.New(rand.NewSource(2)))
	require.NoError(t, m.Build(squareGraph(t)))

	first, err := m.TrainEpoch()
	require.NoError(t, err)
	last := first
	for i := 0; i < 300; i++ {
		last, err = m.TrainEpoch()
		require.NoError(t, err)
		require.False(t, math.IsNaN(last))
	}
	assert.Less(t, last, first)

	emb, err := m.Embeddings()
	require.NoError(t, err)
	assert.Equal(t, 4, emb.Len())
	assert.Equal(t, 2, emb.Dim())
}

func TestGF_Errors(t *testing.T) {
	m := New(2, 0.01, 1, rand.New(rand.NewSource(1)))
	_, err := m.TrainEpoch()
	assert.Error(t, err)
	_, err = m.Embeddings()
	assert.Error(t, err)

	g := pronet.NewGraph()
	g.AddNode("x")
	assert.Error(t, m.Build(g))
}
