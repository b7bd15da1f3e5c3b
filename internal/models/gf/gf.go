// Package gf embeds nodes with Graph Factorization: it minimises
// ||A - (E E^T) o M||^2 + lambda ||E||^2 where M masks the observed edges.
package gf

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/cnclabs/openne/pkg/embedding"
	"github.com/cnclabs/openne/pkg/pronet"
)

type GF struct {
	dim    int
	lambda float64
	lr     float64
	rng    *rand.Rand

	names []string
	adj   *mat.Dense
	mask  *mat.Dense
	emb   *pronet.Parameter
	optim *pronet.Adam
}

func New(dim int, lr, lambda float64, rng *rand.Rand) *GF {
	return &GF{dim: dim, lr: lr, lambda: lambda, rng: rng}
}

func (f *GF) Name() string { return "gf" }

func (f *GF) Dim() int { return f.dim }

// Build materialises the dense adjacency and mask and initialises E.
func (f *GF) Build(g *pronet.Graph) error {
	n := g.NodeSize()
	if g.EdgeSize() == 0 {
		return errors.Wrap(pronet.ErrNoEdges, "gf: build")
	}
	f.adj = mat.NewDense(n, n, nil)
	f.mask = mat.NewDense(n, n, nil)
	for _, e := range g.Edges() {
		f.adj.Set(int(e.Head), int(e.Tail), e.Weight)
		f.mask.Set(int(e.Head), int(e.Tail), 1)
	}
	f.names = g.Names()
	f.emb = pronet.NewParameter(n, f.dim, f.rng)
	f.optim = pronet.NewAdam(f.lr)
	return nil
}

// TrainEpoch takes one full-batch Adam step and returns the cost before it.
func (f *GF) TrainEpoch() (float64, error) {
	if f.emb == nil {
		return 0, errors.New("gf: train before build")
	}
	n := len(f.emb.Rows)

	e := mat.NewDense(n, f.dim, nil)
	for i, row := range f.emb.Rows {
		e.SetRow(i, row)
	}

	var prod mat.Dense
	prod.Mul(e, e.T())

	// residual R = (A - (E E^T) o M) o M, where A is already zero off the mask
	var resid mat.Dense
	resid.MulElem(&prod, f.mask)
	resid.Sub(f.adj, &resid)

	cost := mat.Sum(mulElem(&resid, &resid)) + f.lambda*mat.Sum(mulElem(e, e))

	resid.MulElem(&resid, f.mask)
	var sym mat.Dense
	sym.Add(&resid, resid.T())

	// dC/dE = -2 (R + R^T) E + 2 lambda E
	var grad mat.Dense
	grad.Mul(&sym, e)
	grad.Scale(-2, &grad)
	var reg mat.Dense
	reg.Scale(2*f.lambda, e)
	grad.Add(&grad, &reg)

	rg := make(pronet.RowGrad, n)
	for i := 0; i < n; i++ {
		rg[int64(i)] = mat.Row(nil, i, &grad)
	}
	f.optim.Step(pronet.Update{Param: f.emb, Grad: rg})

	return cost, nil
}

func (f *GF) Embeddings() (*embedding.Set, error) {
	if f.emb == nil {
		return nil, errors.New("gf: embeddings before build")
	}
	return embedding.FromRows(f.names, f.emb.Rows, f.dim)
}

func mulElem(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}
