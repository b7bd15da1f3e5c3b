package line

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/viterin/vek"

	"github.com/cnclabs/openne/internal/config"
	"github.com/cnclabs/openne/pkg/embedding"
	"github.com/cnclabs/openne/pkg/pronet"
)

// Order specifies LINE order (1st or 2nd)
type Order int

const (
	First  Order = 1
	Second Order = 2
)

// Options are the constructor parameters of a single-order LINE model.
type Options struct {
	Dim           int
	Order         Order
	NegativeRatio int
	BatchSize     int
	LR            float64
	TableSize     int
}

// LINE implements the LINE (Large-scale Information Network Embedding) model
// trained with mini-batch negative sampling and Adam.
type LINE struct {
	opts Options
	rng  *rand.Rand

	names   []string
	sampler *pronet.Sampler
	vertex  *pronet.Parameter
	context *pronet.Parameter
	optim   *pronet.Adam
	epoch   int
}

// New creates a LINE model that draws all randomness from rng. Invalid options
// are reported as a *config.ValidationError naming the field.
func New(opts Options, rng *rand.Rand) (*LINE, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &LINE{opts: opts, rng: rng}, nil
}

func (o Options) validate() error {
	if o.Order != First && o.Order != Second {
		return &config.ValidationError{Key: "order", Reason: fmt.Sprintf("must be 1 or 2, got %d", o.Order)}
	}
	positive := []struct {
		key string
		val int
	}{
		{"dim", o.Dim},
		{"negative_ratio", o.NegativeRatio},
		{"batch_size", o.BatchSize},
		{"table_size", o.TableSize},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return &config.ValidationError{Key: p.key, Reason: fmt.Sprintf("must be positive, got %d", p.val)}
		}
	}
	if !(o.LR > 0) || math.IsInf(o.LR, 0) {
		return &config.ValidationError{Key: "lr", Reason: fmt.Sprintf("must be positive, got %v", o.LR)}
	}
	return nil
}

// Name identifies the model in logs.
func (l *LINE) Name() string {
	if l.opts.Order == First {
		return "line-1st"
	}
	return "line-2nd"
}

func (l *LINE) Dim() int { return l.opts.Dim }

// Build allocates the embedding matrices and the sampling structures for g.
func (l *LINE) Build(g *pronet.Graph) error {
	sampler, err := pronet.NewSampler(g, l.opts.TableSize)
	if err != nil {
		return errors.Wrap(err, "line: build")
	}
	l.sampler = sampler
	l.names = g.Names()
	l.vertex = pronet.NewParameter(g.NodeSize(), l.opts.Dim, l.rng)
	if l.opts.Order == Second {
		l.context = pronet.NewParameter(g.NodeSize(), l.opts.Dim, l.rng)
	}
	l.optim = pronet.NewAdam(l.opts.LR)
	l.epoch = 0
	return nil
}

// Loss returns the mean of -log sigmoid(sign * <u_h, v_t>) over the batch,
// where v is the vertex matrix for 1st order and the context matrix for 2nd.
func (l *LINE) Loss(b pronet.Batch) float64 {
	loss, _ := l.forward(b, false)
	return loss
}

// Step computes the loss of b and applies one Adam update.
func (l *LINE) Step(b pronet.Batch) float64 {
	loss, updates := l.forward(b, true)
	l.optim.Step(updates...)
	return loss
}

func (l *LINE) forward(b pronet.Batch, withGrad bool) (float64, []pronet.Update) {
	if len(b.Heads) == 0 {
		return 0, nil
	}
	targets := l.vertex
	if l.opts.Order == Second {
		targets = l.context
	}

	n := float64(len(b.Heads))
	headGrad := pronet.RowGrad{}
	tailGrad := headGrad
	if l.opts.Order == Second {
		tailGrad = pronet.RowGrad{}
	}

	loss := 0.0
	for i, h := range b.Heads {
		t := b.Tails[i]
		u := l.vertex.Rows[h]
		v := targets.Rows[t]
		z := b.Sign * vek.Dot(u, v)
		loss -= logSigmoid(z)

		if withGrad {
			// d/dx of -log sigmoid(s*x) is -s*sigmoid(-s*x)
			g := -b.Sign * sigmoid(-z) / n
			headGrad.Add(h, g, v)
			tailGrad.Add(t, g, u)
		}
	}
	if !withGrad {
		return loss / n, nil
	}

	updates := []pronet.Update{{Param: l.vertex, Grad: headGrad}}
	if l.opts.Order == Second {
		updates = append(updates, pronet.Update{Param: l.context, Grad: tailGrad})
	}
	return loss / n, updates
}

// TrainEpoch runs one pass of the batch generator and returns the summed
// batch loss.
func (l *LINE) TrainEpoch() (float64, error) {
	if l.sampler == nil {
		return 0, errors.New("line: train before build")
	}
	batches, err := l.sampler.Batches(l.opts.BatchSize, l.opts.NegativeRatio, l.rng)
	if err != nil {
		return 0, errors.Wrap(err, "line: train epoch")
	}
	sum := 0.0
	for {
		b, ok := batches.Next()
		if !ok {
			break
		}
		sum += l.Step(b)
	}
	l.epoch++
	return sum, nil
}

// Epochs returns the number of completed epochs.
func (l *LINE) Epochs() int { return l.epoch }

// Embeddings copies the vertex matrix into a set keyed by node name.
func (l *LINE) Embeddings() (*embedding.Set, error) {
	if l.vertex == nil {
		return nil, errors.New("line: embeddings before build")
	}
	return embedding.FromRows(l.names, l.vertex.Rows, l.opts.Dim)
}

// Vertex exposes the learned vertex matrix.
func (l *LINE) Vertex() *pronet.Parameter { return l.vertex }

// Context exposes the context matrix; nil for 1st order.
func (l *LINE) Context() *pronet.Parameter { return l.context }

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// logSigmoid computes log(sigmoid(x)) without overflow.
func logSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}
