package pronet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge("a", "b", 2))
	require.NoError(t, g.AddEdge("a", "c", 1))
	require.NoError(t, g.AddEdge("a", "b", 5))

	assert.Equal(t, 3, g.NodeSize())
	assert.Equal(t, 2, g.EdgeSize())
	assert.Equal(t, 6.0, g.OutDegree(0))
	assert.Equal(t, 0.0, g.OutDegree(1))

	vid, ok := g.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, int64(2), vid)
	assert.Equal(t, "c", g.NodeName(vid))
	assert.Equal(t, "", g.NodeName(42))
	assert.Equal(t, []string{"a", "b", "c"}, g.Names())
}

func TestGraph_AddEdgeRejectsBadWeights(t *testing.T) {
	g := NewGraph()
	for _, w := range []float64{0, -1} {
		err := g.AddEdge("a", "b", w)
		assert.True(t, errors.Is(err, ErrInvalidWeight), "weight %v", w)
	}
	assert.Equal(t, 0, g.EdgeSize())
}

func TestReadEdgeList_Undirected(t *testing.T) {
	in := "# comment\n1 2\n\n2 3\n"
	g, err := ReadEdgeList(strings.NewReader(in), LoadOptions{Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, 3, g.NodeSize())
	assert.Equal(t, 4, g.EdgeSize())
	two, _ := g.Lookup("2")
	assert.Equal(t, 2.0, g.OutDegree(two))
}

func TestReadEdgeList_DirectedWeighted(t *testing.T) {
	in := "a b 0.5\nb c 2\n"
	g, err := ReadEdgeList(strings.NewReader(in), LoadOptions{Weighted: true, Directed: true, Logger: quietLogger()})
	require.NoError(t, err)

	require.Equal(t, 2, g.EdgeSize())
	assert.Equal(t, Edge{Head: 0, Tail: 1, Weight: 0.5}, g.Edges()[0])
	assert.Equal(t, Edge{Head: 1, Tail: 2, Weight: 2}, g.Edges()[1])
}

func TestReadEdgeList_Malformed(t *testing.T) {
	cases := map[string]string{
		"missing tail":   "a\n",
		"missing weight": "a b\n",
		"bad weight":     "a b x\n",
		"zero weight":    "a b 0\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadEdgeList(strings.NewReader(in), LoadOptions{Weighted: name != "missing tail", Logger: quietLogger()})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestLoadEdgeList_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.txt")
	require.NoError(t, os.WriteFile(path, []byte("x y\ny z\n"), 0o644))

	g, err := LoadEdgeList(path, LoadOptions{Directed: true, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, 2, g.EdgeSize())

	_, err = LoadEdgeList(filepath.Join(t.TempDir(), "missing.txt"), LoadOptions{})
	assert.Error(t, err)
}
