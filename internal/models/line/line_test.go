package line

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viterin/vek"

	"github.com/cnclabs/openne/internal/config"
	"github.com/cnclabs/openne/pkg/pronet"
)

func testOptions(dim int, order Order) Options {
	return Options{
		Dim:           dim,
		Order:         order,
		NegativeRatio: 2,
		BatchSize:     8,
		LR:            0.01,
		TableSize:     1000,
	}
}

func twoNodeGraph(t *testing.T) *pronet.Graph {
	t.Helper()
	g := pronet.NewGraph()
	require.NoError(t, g.AddEdge("a", "b", 1))
	return g
}

func cliqueGraph(t *testing.T, n int) *pronet.Graph {
	t.Helper()
	g := pronet.NewGraph()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				require.NoError(t, g.AddEdge(fmt.Sprint(i), fmt.Sprint(j), 1))
			}
		}
	}
	return g
}

func TestNew_RejectsBadOptions(t *testing.T) {
	cases := []struct {
		key    string
		mutate func(*Options)
	}{
		{"order", func(o *Options) { o.Order = 3 }},
		{"dim", func(o *Options) { o.Dim = 0 }},
		{"negative_ratio", func(o *Options) { o.NegativeRatio = 0 }},
		{"batch_size", func(o *Options) { o.BatchSize = 0 }},
		{"table_size", func(o *Options) { o.TableSize = 0 }},
		{"lr", func(o *Options) { o.LR = 0 }},
		{"lr", func(o *Options) { o.LR = math.NaN() }},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			opts := testOptions(8, First)
			tc.mutate(&opts)

			m, err := New(opts, rand.New(rand.NewSource(1)))
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, errors.Is(err, config.ErrInvalid))

			var verr *config.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.key, verr.Key)
		})
	}
}

func TestLoss_FirstOrderMatchesFormula(t *testing.T) {
	m, err := New(testOptions(2, First), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, m.Build(twoNodeGraph(t)))

	m.Vertex().Rows[0] = []float64{1, 2}
	m.Vertex().Rows[1] = []float64{0.5, -1}
	dot := 1*0.5 + 2*-1.0

	pos := m.Loss(pronet.Batch{Heads: []int64{0}, Tails: []int64{1}, Sign: pronet.Positive})
	assert.InDelta(t, -math.Log(1/(1+math.Exp(-dot))), pos, 1e-12)

	neg := m.Loss(pronet.Batch{Heads: []int64{0}, Tails: []int64{1}, Sign: pronet.Negative})
	assert.InDelta(t, -math.Log(1/(1+math.Exp(dot))), neg, 1e-12)
}

func TestLoss_SecondOrderUsesContext(t *testing.T) {
	m, err := New(testOptions(2, Second), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, m.Build(twoNodeGraph(t)))
	require.NotNil(t, m.Context())

	m.Vertex().Rows[0] = []float64{1, 1}
	m.Context().Rows[1] = []float64{0, 0}
	m.Vertex().Rows[1] = []float64{5, 5}

	loss := m.Loss(pronet.Batch{Heads: []int64{0}, Tails: []int64{1}, Sign: pronet.Positive})
	assert.InDelta(t, math.Log(2), loss, 1e-12)
}

func TestStep_PositiveRaisesDotProduct(t *testing.T) {
	m, err := New(testOptions(8, First), rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.NoError(t, m.Build(twoNodeGraph(t)))

	rows := m.Vertex().Rows
	before := vek.Dot(rows[0], rows[1])
	batch := pronet.Batch{Heads: []int64{0}, Tails: []int64{1}, Sign: pronet.Positive}
	first := m.Loss(batch)

	for i := 0; i < 200; i++ {
		m.Step(batch)
	}

	after := vek.Dot(rows[0], rows[1])
	assert.Greater(t, after, before)
	assert.Greater(t, 1/(1+math.Exp(-after)), 1/(1+math.Exp(-before)))
	assert.Less(t, m.Loss(batch), first)
}

func TestStep_NegativeLowersDotProduct(t *testing.T) {
	m, err := New(testOptions(8, Second), rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	require.NoError(t, m.Build(twoNodeGraph(t)))

	before := vek.Dot(m.Vertex().Rows[0], m.Context().Rows[1])
	batch := pronet.Batch{Heads: []int64{0}, Tails: []int64{1}, Sign: pronet.Negative}
	for i := 0; i < 50; i++ {
		m.Step(batch)
	}
	after := vek.Dot(m.Vertex().Rows[0], m.Context().Rows[1])
	assert.Less(t, after, before)
}

func TestTrainEpoch(t *testing.T) {
	for _, order := range []Order{First, Second} {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			m, err := New(testOptions(16, order), rand.New(rand.NewSource(5)))
			require.NoError(t, err)

			_, err = m.TrainEpoch()
			require.Error(t, err, "training needs a built model")

			g := cliqueGraph(t, 6)
			require.NoError(t, m.Build(g))

			var losses []float64
			for e := 0; e < 5; e++ {
				loss, err := m.TrainEpoch()
				require.NoError(t, err)
				require.False(t, math.IsNaN(loss))
				losses = append(losses, loss)
			}
			assert.Equal(t, 5, m.Epochs())
			assert.Positive(t, losses[0])

			emb, err := m.Embeddings()
			require.NoError(t, err)
			assert.Equal(t, g.NodeSize(), emb.Len())
			assert.Equal(t, 16, emb.Dim())
		})
	}
}

func TestEmbeddings_AreDetached(t *testing.T) {
	m, err := New(testOptions(4, First), rand.New(rand.NewSource(6)))
	require.NoError(t, err)
	require.NoError(t, m.Build(twoNodeGraph(t)))

	emb, err := m.Embeddings()
	require.NoError(t, err)
	vec, ok := emb.Get("a")
	require.True(t, ok)
	vec[0] = 1e9
	assert.NotEqual(t, 1e9, m.Vertex().Rows[0][0])
}

func TestBuild_DegenerateGraph(t *testing.T) {
	m, err := New(testOptions(4, First), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	g := pronet.NewGraph()
	g.AddNode("x")
	assert.Error(t, m.Build(g))
}

func TestLogSigmoid_Saturation(t *testing.T) {
	assert.InDelta(t, 0, logSigmoid(800), 1e-12)
	assert.InDelta(t, -800, logSigmoid(-800), 1e-9)
	assert.InDelta(t, math.Log(0.5), logSigmoid(0), 1e-12)
}
