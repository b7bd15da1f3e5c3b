package line

import (
	"math/rand"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cnclabs/openne/pkg/embedding"
	"github.com/cnclabs/openne/pkg/pronet"
)

// Composite trains a 1st-order and a 2nd-order model of half width each and
// concatenates their embeddings column-wise (LINE order 3).
type Composite struct {
	first    *LINE
	second   *LINE
	parallel bool
}

// NewComposite splits dim between the two halves; dim must be even. Each half
// gets its own random stream derived from rng.
func NewComposite(opts Options, parallel bool, rng *rand.Rand) (*Composite, error) {
	if opts.Dim <= 0 || opts.Dim%2 != 0 {
		return nil, errors.Errorf("line: order 3 needs a positive even dim, got %d", opts.Dim)
	}

	half := opts
	half.Dim = opts.Dim / 2

	half.Order = First
	first, err := New(half, rand.New(rand.NewSource(rng.Int63())))
	if err != nil {
		return nil, err
	}
	half.Order = Second
	second, err := New(half, rand.New(rand.NewSource(rng.Int63())))
	if err != nil {
		return nil, err
	}

	return &Composite{first: first, second: second, parallel: parallel}, nil
}

func (c *Composite) Name() string { return "line-3rd" }

func (c *Composite) Dim() int { return c.first.Dim() + c.second.Dim() }

// Build prepares both halves over the same graph.
func (c *Composite) Build(g *pronet.Graph) error {
	if err := c.first.Build(g); err != nil {
		return err
	}
	return c.second.Build(g)
}

// TrainEpoch trains each half for one epoch, concurrently when the composite
// is parallel, and returns the sum of their losses.
func (c *Composite) TrainEpoch() (float64, error) {
	if !c.parallel {
		l1, err := c.first.TrainEpoch()
		if err != nil {
			return 0, err
		}
		l2, err := c.second.TrainEpoch()
		if err != nil {
			return 0, err
		}
		return l1 + l2, nil
	}

	var l1, l2 float64
	var eg errgroup.Group
	eg.Go(func() (err error) {
		l1, err = c.first.TrainEpoch()
		return err
	})
	eg.Go(func() (err error) {
		l2, err = c.second.TrainEpoch()
		return err
	})
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return l1 + l2, nil
}

// Embeddings concatenates the 1st-order and 2nd-order embeddings.
func (c *Composite) Embeddings() (*embedding.Set, error) {
	e1, err := c.first.Embeddings()
	if err != nil {
		return nil, err
	}
	e2, err := c.second.Embeddings()
	if err != nil {
		return nil, err
	}
	return embedding.Concat(e1, e2)
}

// First returns the 1st-order half.
func (c *Composite) First() *LINE { return c.first }

// Second returns the 2nd-order half.
func (c *Composite) Second() *LINE { return c.second }
