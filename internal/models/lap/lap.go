// Package lap embeds nodes with Laplacian Eigenmaps.
package lap

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/openne/pkg/embedding"
	"github.com/cnclabs/openne/pkg/pronet"
)

// ErrDimTooLarge is returned when more components are requested than nodes exist.
var ErrDimTooLarge = errors.New("lap: dim exceeds node count")

// LAP computes embeddings from the eigendecomposition of the graph Laplacian
// L = D - A of the symmetrised weighted adjacency. The embedding keeps the
// eigenvectors of the dim largest eigenvalues, scaled by sqrt(eigenvalue).
type LAP struct {
	dim   int
	names []string
	rows  [][]float64
}

func New(dim int) *LAP {
	return &LAP{dim: dim}
}

func (l *LAP) Name() string { return "lap" }

func (l *LAP) Dim() int { return l.dim }

// Build runs the decomposition.
func (l *LAP) Build(g *pronet.Graph) error {
	n := g.NodeSize()
	if n == 0 {
		return errors.Wrap(pronet.ErrNoEdges, "lap: empty graph")
	}
	if l.dim > n {
		return errors.Wrapf(ErrDimTooLarge, "dim %d, nodes %d", l.dim, n)
	}

	lapl := Laplacian(g)

	var eig mat.EigenSym
	if ok := eig.Factorize(lapl, true); !ok {
		return errors.New("lap: eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// eigenvalues come back ascending
	l.rows = make([][]float64, n)
	for i := 0; i < n; i++ {
		l.rows[i] = make([]float64, l.dim)
		for j := 0; j < l.dim; j++ {
			col := n - l.dim + j
			l.rows[i][j] = vectors.At(i, col) * math.Sqrt(math.Max(values[col], 0))
		}
	}
	l.names = g.Names()
	return nil
}

// TrainEpoch is a no-op: the decomposition is done once in Build.
func (l *LAP) TrainEpoch() (float64, error) {
	if l.rows == nil {
		return 0, errors.New("lap: train before build")
	}
	return 0, nil
}

func (l *LAP) Embeddings() (*embedding.Set, error) {
	if l.rows == nil {
		return nil, errors.New("lap: embeddings before build")
	}
	return embedding.FromRows(l.names, l.rows, l.dim)
}

// Laplacian returns D - A where A is the weighted adjacency made symmetric by
// averaging a_ij and a_ji.
func Laplacian(g *pronet.Graph) *mat.SymDense {
	n := g.NodeSize()
	adj := mat.NewDense(n, n, nil)
	for _, e := range g.Edges() {
		adj.Set(int(e.Head), int(e.Tail), e.Weight)
	}

	lapl := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		deg := 0.0
		for j := 0; j < n; j++ {
			a := (adj.At(i, j) + adj.At(j, i)) / 2
			deg += a
			if j > i {
				lapl.SetSym(i, j, -a)
			}
		}
		lapl.SetSym(i, i, deg-(adj.At(i, i)))
	}
	return lapl
}
