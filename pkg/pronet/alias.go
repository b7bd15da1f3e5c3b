package pronet

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// NegativeTable maps a uniformly drawn cell to a node id. The share of cells
// holding node j approximates degree(j)^power / sum(degree^power).
type NegativeTable []int32

// BuildNegativeTable fills a table of tableSize cells from per-node degrees,
// walking nodes in id order and stamping cells while the cell's position is
// below the cumulative normalized mass.
func BuildNegativeTable(degrees []float64, power float64, tableSize int) (NegativeTable, error) {
	if tableSize <= 0 {
		return nil, errors.Errorf("table size must be positive, got %d", tableSize)
	}

	norm := 0.0
	last := -1
	for j, d := range degrees {
		if d > 0 {
			norm += math.Pow(d, power)
			last = j
		}
	}
	if last < 0 || norm == 0 {
		return nil, errors.Wrap(ErrZeroWeight, "build negative table")
	}

	table := make(NegativeTable, tableSize)
	size := float64(tableSize)
	p := 0.0
	i := 0
	for j, d := range degrees {
		if d <= 0 {
			continue
		}
		p += math.Pow(d, power) / norm
		for i < tableSize && float64(i)/size < p {
			table[i] = int32(j)
			i++
		}
	}
	// rounding can leave p a hair under 1
	for ; i < tableSize; i++ {
		table[i] = int32(last)
	}

	return table, nil
}

// Sample draws a node id.
func (t NegativeTable) Sample(rng *rand.Rand) int64 {
	return int64(t[rng.Intn(len(t))])
}

// EdgeAlias holds Walker alias tables over edges: draw e uniformly, keep it
// with probability Prob[e], otherwise use Alias[e].
type EdgeAlias struct {
	Prob  []float64
	Alias []int
}

// BuildEdgeAlias builds the alias structure so that edges are drawn in
// proportion to their weight.
func BuildEdgeAlias(weights []float64) (*EdgeAlias, error) {
	n := len(weights)
	if n == 0 {
		return nil, errors.Wrap(ErrNoEdges, "build edge alias")
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, errors.Wrapf(ErrZeroWeight, "build edge alias: total weight %v", total)
	}

	// Normalize so the mean weight is 1
	norm := make([]float64, n)
	for i, w := range weights {
		norm[i] = w * float64(n) / total
	}

	at := &EdgeAlias{
		Prob:  make([]float64, n),
		Alias: make([]int, n),
	}

	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for k := n - 1; k >= 0; k-- {
		if norm[k] < 1.0 {
			small = append(small, k)
		} else {
			large = append(large, k)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]

		g := large[len(large)-1]
		large = large[:len(large)-1]

		at.Prob[l] = norm[l]
		at.Alias[l] = g

		norm[g] = norm[g] + norm[l] - 1.0
		if norm[g] < 1.0 {
			small = append(small, g)
		} else {
			large = append(large, g)
		}
	}

	// Handle remaining elements
	for _, g := range large {
		at.Prob[g] = 1.0
		at.Alias[g] = g
	}
	for _, l := range small {
		at.Prob[l] = 1.0
		at.Alias[l] = l
	}

	return at, nil
}

// Len returns the number of edges covered.
func (at *EdgeAlias) Len() int { return len(at.Prob) }

// Resolve applies the accept/alias step to an edge index that was picked
// uniformly, using one uniform draw from rng.
func (at *EdgeAlias) Resolve(e int, rng *rand.Rand) int {
	if rng.Float64() < at.Prob[e] {
		return e
	}
	return at.Alias[e]
}

// Sample performs O(1) weighted random sampling of an edge index.
func (at *EdgeAlias) Sample(rng *rand.Rand) int {
	return at.Resolve(rng.Intn(len(at.Prob)), rng)
}
