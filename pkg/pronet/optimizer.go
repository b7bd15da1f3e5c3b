package pronet

import (
	"math"
	"math/rand"

	"github.com/viterin/vek"
)

// Parameter is a learnable node x dim matrix together with its Adam moment
// estimates.
type Parameter struct {
	Rows [][]float64
	m    [][]float64
	v    [][]float64
}

// NewParameter allocates a rows x dim matrix with Xavier-normal initialisation.
func NewParameter(rows, dim int, rng *rand.Rand) *Parameter {
	p := NewZeroParameter(rows, dim)
	std := math.Sqrt(2.0 / float64(rows+dim))
	for _, row := range p.Rows {
		for d := range row {
			row[d] = rng.NormFloat64() * std
		}
	}
	return p
}

// NewZeroParameter allocates a rows x dim matrix of zeros.
func NewZeroParameter(rows, dim int) *Parameter {
	p := &Parameter{
		Rows: make([][]float64, rows),
		m:    make([][]float64, rows),
		v:    make([][]float64, rows),
	}
	for vid := 0; vid < rows; vid++ {
		p.Rows[vid] = make([]float64, dim)
		p.m[vid] = make([]float64, dim)
		p.v[vid] = make([]float64, dim)
	}
	return p
}

// Dim returns the number of columns.
func (p *Parameter) Dim() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return len(p.Rows[0])
}

// Snapshot returns a deep copy of the rows.
func (p *Parameter) Snapshot() [][]float64 {
	out := make([][]float64, len(p.Rows))
	for i, row := range p.Rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// RowGrad accumulates gradients for the rows touched by one step.
type RowGrad map[int64][]float64

// Add accumulates scale*vec into the gradient of row.
func (g RowGrad) Add(row int64, scale float64, vec []float64) {
	acc, ok := g[row]
	if !ok {
		acc = make([]float64, len(vec))
		g[row] = acc
	}
	vek.Add_Inplace(acc, vek.MulNumber(vec, scale))
}

// Update pairs a parameter with its gradient for one optimizer step.
type Update struct {
	Param *Parameter
	Grad  RowGrad
}

// Adam implements adaptive moment estimation. Only rows present in a step's
// gradient are updated; bias correction uses the global step count.
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	t int
}

// NewAdam returns an Adam optimizer with the usual defaults.
func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Steps returns the number of steps taken.
func (a *Adam) Steps() int { return a.t }

// Step applies one update to every parameter.
func (a *Adam) Step(updates ...Update) {
	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))
	stepSize := a.LR / bc1

	for _, u := range updates {
		for row, grad := range u.Grad {
			w := u.Param.Rows[row]
			m := u.Param.m[row]
			v := u.Param.v[row]
			for d, gd := range grad {
				m[d] = a.Beta1*m[d] + (1-a.Beta1)*gd
				v[d] = a.Beta2*v[d] + (1-a.Beta2)*gd*gd
				w[d] -= stepSize * m[d] / (math.Sqrt(v[d]/bc2) + a.Epsilon)
			}
		}
	}
}
