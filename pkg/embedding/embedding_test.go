package embedding

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Add("a", []float64{0.1, 0.2}))
	require.NoError(t, s.Add("b", []float64{0.3, 0.4}))

	path := filepath.Join(t.TempDir(), "vec.txt")
	require.NoError(t, Save(path, s))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Dim())
	assert.Equal(t, []string{"a", "b"}, got.IDs())

	want := map[string][]float64{"a": {0.1, 0.2}, "b": {0.3, 0.4}}
	for id, vec := range got.Map() {
		assert.InDeltaSlice(t, want[id], vec, 1e-12, id)
	}
	assert.Len(t, got.Map(), 2)
}

func TestWrite_Format(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Add("n1", []float64{1, -0.5}))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))
	assert.Equal(t, "1 2\nn1 1 -0.5\n", buf.String())
}

func TestRead_Malformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrMalformed},
		{"bad header", "2\n", ErrMalformed},
		{"bad dim", "1 x\n", ErrMalformed},
		{"count too high", "3 2\na 1 2\nb 3 4\n", ErrMalformed},
		{"count too low", "1 2\na 1 2\nb 3 4\n", ErrMalformed},
		{"short vector", "2 2\na 1 2\nb 3\n", ErrDimMismatch},
		{"long vector", "1 2\na 1 2 3\n", ErrDimMismatch},
		{"bad float", "1 2\na 1 z\n", ErrMalformed},
		{"duplicate", "2 1\na 1\na 2\n", ErrDuplicate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestConcat(t *testing.T) {
	a, err := FromRows([]string{"x", "y"}, [][]float64{{1}, {2}}, 1)
	require.NoError(t, err)
	b, err := FromRows([]string{"y", "x"}, [][]float64{{20, 21}, {10, 11}}, 2)
	require.NoError(t, err)

	c, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Dim())
	x, _ := c.Get("x")
	assert.Equal(t, []float64{1, 10, 11}, x)
	y, _ := c.Get("y")
	assert.Equal(t, []float64{2, 20, 21}, y)

	short, err := FromRows([]string{"x"}, [][]float64{{1}}, 1)
	require.NoError(t, err)
	_, err = Concat(a, short)
	assert.Error(t, err)
}

func TestAdd_RejectsWrongWidth(t *testing.T) {
	s := New(3)
	err := s.Add("a", []float64{1})
	assert.True(t, errors.Is(err, ErrDimMismatch))
	assert.Equal(t, 0, s.Len())
}
