package pronet

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Sign of a batch's contribution to the loss.
const (
	Positive = 1.0
	Negative = -1.0
)

// Batch is one mini-batch of (head, tail) pairs sharing a sign.
type Batch struct {
	Heads []int64
	Tails []int64
	Sign  float64
	// Edges holds the shuffled edge indices of the window before alias
	// reweighting. It is set on positive batches only.
	Edges []int
}

// Sampler bundles the immutable sampling structures built from one graph.
type Sampler struct {
	edges []Edge
	alias *EdgeAlias
	table NegativeTable
}

// NewSampler builds the negative table from out-degrees and the edge alias
// structure from edge weights.
func NewSampler(g *Graph, tableSize int) (*Sampler, error) {
	if g.EdgeSize() == 0 {
		return nil, errors.Wrap(ErrNoEdges, "new sampler")
	}

	degrees := make([]float64, g.NodeSize())
	for vid := range degrees {
		degrees[vid] = g.OutDegree(int64(vid))
	}
	table, err := BuildNegativeTable(degrees, PowerSample, tableSize)
	if err != nil {
		return nil, err
	}

	weights := make([]float64, g.EdgeSize())
	for i, e := range g.Edges() {
		weights[i] = e.Weight
	}
	alias, err := BuildEdgeAlias(weights)
	if err != nil {
		return nil, err
	}

	return &Sampler{edges: g.Edges(), alias: alias, table: table}, nil
}

// EdgeSize returns the number of edges the sampler draws from.
func (s *Sampler) EdgeSize() int { return len(s.edges) }

// Table returns the negative sampling table.
func (s *Sampler) Table() NegativeTable { return s.table }

// Alias returns the edge alias structure.
func (s *Sampler) Alias() *EdgeAlias { return s.alias }

// Batches starts one epoch over a fresh shuffle of the edges. batchSize must
// be positive and negativeRatio must not be negative.
func (s *Sampler) Batches(batchSize, negativeRatio int, rng *rand.Rand) (*BatchGenerator, error) {
	if batchSize < 1 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if negativeRatio < 0 {
		return nil, errors.Errorf("negative ratio must not be negative, got %d", negativeRatio)
	}
	return &BatchGenerator{
		sampler:       s,
		batchSize:     batchSize,
		negativeRatio: negativeRatio,
		rng:           rng,
		order:         rng.Perm(len(s.edges)),
	}, nil
}

// BatchGenerator yields, for every window of batchSize shuffled edges, one
// positive batch followed by negativeRatio negative batches reusing its heads.
// It is single pass.
type BatchGenerator struct {
	sampler       *Sampler
	batchSize     int
	negativeRatio int
	rng           *rand.Rand

	order []int
	start int
	mod   int
	heads []int64
}

// Next returns the next batch, or false once the shuffled order is exhausted.
func (bg *BatchGenerator) Next() (Batch, bool) {
	n := len(bg.order)
	if bg.start >= n {
		return Batch{}, false
	}
	end := bg.start + bg.batchSize
	if end > n {
		end = n
	}

	var b Batch
	if bg.mod == 0 {
		b = bg.positive(bg.start, end)
		bg.heads = b.Heads
	} else {
		b = bg.negative()
	}

	bg.mod++
	if bg.mod == 1+bg.negativeRatio {
		bg.mod = 0
		bg.start = end
	}
	return b, true
}

func (bg *BatchGenerator) positive(start, end int) Batch {
	size := end - start
	b := Batch{
		Heads: make([]int64, size),
		Tails: make([]int64, size),
		Sign:  Positive,
		Edges: make([]int, size),
	}
	for i := 0; i < size; i++ {
		raw := bg.order[start+i]
		e := bg.sampler.edges[bg.sampler.alias.Resolve(raw, bg.rng)]
		b.Edges[i] = raw
		b.Heads[i] = e.Head
		b.Tails[i] = e.Tail
	}
	return b
}

func (bg *BatchGenerator) negative() Batch {
	b := Batch{
		Heads: bg.heads,
		Tails: make([]int64, len(bg.heads)),
		Sign:  Negative,
	}
	for i := range b.Tails {
		b.Tails[i] = bg.sampler.table.Sample(bg.rng)
	}
	return b
}
