package line

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposite_ConcatenatesHalves(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		c, err := NewComposite(testOptions(128, 0), parallel, rand.New(rand.NewSource(8)))
		require.NoError(t, err)
		assert.Equal(t, 64, c.First().Dim())
		assert.Equal(t, 64, c.Second().Dim())
		assert.Equal(t, First, c.First().opts.Order)
		assert.Equal(t, Second, c.Second().opts.Order)

		g := cliqueGraph(t, 5)
		require.NoError(t, c.Build(g))
		for e := 0; e < 2; e++ {
			loss, err := c.TrainEpoch()
			require.NoError(t, err)
			assert.Positive(t, loss)
		}
		assert.Equal(t, 2, c.First().Epochs())
		assert.Equal(t, 2, c.Second().Epochs())

		emb, err := c.Embeddings()
		require.NoError(t, err)
		e1, err := c.First().Embeddings()
		require.NoError(t, err)
		e2, err := c.Second().Embeddings()
		require.NoError(t, err)

		assert.Equal(t, 128, emb.Dim())
		assert.Equal(t, g.NodeSize(), emb.Len())
		for _, id := range emb.IDs() {
			vec, _ := emb.Get(id)
			left, _ := e1.Get(id)
			right, _ := e2.Get(id)
			require.Len(t, vec, 128)
			assert.Equal(t, left, vec[:64])
			assert.Equal(t, right, vec[64:])
		}
	}
}

func TestComposite_IndependentStreams(t *testing.T) {
	c, err := NewComposite(testOptions(8, 0), false, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	assert.NotSame(t, c.First().rng, c.Second().rng)
}

func TestComposite_RejectsOddDim(t *testing.T) {
	_, err := NewComposite(testOptions(7, 0), false, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestComposite_Deterministic(t *testing.T) {
	run := func() []float64 {
		c, err := NewComposite(testOptions(8, 0), true, rand.New(rand.NewSource(21)))
		require.NoError(t, err)
		require.NoError(t, c.Build(cliqueGraph(t, 4)))
		_, err = c.TrainEpoch()
		require.NoError(t, err)
		emb, err := c.Embeddings()
		require.NoError(t, err)
		vec, _ := emb.Get("0")
		return vec
	}
	assert.Equal(t, run(), run(), "seeded parallel training is reproducible")
}
