package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/openne/pkg/embedding"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRun(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	emb, err := embedding.FromRows([]string{"z", "a"}, [][]float64{{0.1, -2}, {3.5, 1e-9}}, 2)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(ctx, "run-1", "line-3rd", emb))

	got, err := s.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Dim())
	assert.Equal(t, []string{"z", "a"}, got.IDs())
	assert.Equal(t, emb.Map(), got.Map())

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "line-3rd", runs[0].Model)
	assert.Equal(t, 2, runs[0].Dim)
}

func TestSaveRun_Replaces(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	first, err := embedding.FromRows([]string{"a", "b"}, [][]float64{{1}, {2}}, 1)
	require.NoError(t, err)
	second, err := embedding.FromRows([]string{"c"}, [][]float64{{3}}, 1)
	require.NoError(t, err)

	require.NoError(t, s.SaveRun(ctx, "r", "lap", first))
	require.NoError(t, s.SaveRun(ctx, "r", "lap", second))

	got, err := s.LoadRun(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.IDs())
}

func TestLoadRun_Missing(t *testing.T) {
	_, err := openTemp(t).LoadRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestVectorCodec(t *testing.T) {
	vec := []float64{0, -1.5, 1e300}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
