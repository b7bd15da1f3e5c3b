// Package classify evaluates embeddings by multi-label node classification
// with one-vs-rest logistic regression and top-k prediction.
package classify

import (
	"bufio"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/cnclabs/openne/pkg/embedding"
	"github.com/cnclabs/openne/pkg/pronet"
)

// ErrUnknownNode is returned when a labelled node has no embedding.
var ErrUnknownNode = errors.New("node has no embedding")

// Options tune the logistic regression.
type Options struct {
	Iterations int
	LR         float64
	// L2 is the ridge penalty on the weights (not the bias).
	L2 float64
	// Simple reports micro and macro F1 only.
	Simple bool
}

// DefaultOptions returns settings that work for embeddings of typical scale.
func DefaultOptions() Options {
	return Options{Iterations: 300, LR: 0.05, L2: 1e-4}
}

// Scores are F1 averages.
type Scores struct {
	Micro    float64 `json:"micro"`
	Macro    float64 `json:"macro"`
	Samples  float64 `json:"samples,omitempty"`
	Weighted float64 `json:"weighted,omitempty"`
}

// Classifier is a one-vs-rest logistic regression over node embeddings.
type Classifier struct {
	emb     *embedding.Set
	opts    Options
	classes []string
	index   map[string]int
	// weights has one row per class: dim weights followed by the bias.
	weights *pronet.Parameter
}

func New(emb *embedding.Set, opts Options) *Classifier {
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultOptions().Iterations
	}
	if opts.LR <= 0 {
		opts.LR = DefaultOptions().LR
	}
	return &Classifier{emb: emb, opts: opts}
}

// Classes returns the label vocabulary in sorted order.
func (c *Classifier) Classes() []string { return c.classes }

func (c *Classifier) features(nodes []string) ([][]float64, error) {
	xs := make([][]float64, len(nodes))
	for i, node := range nodes {
		vec, ok := c.emb.Get(node)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownNode, "node %s", node)
		}
		xs[i] = vec
	}
	return xs, nil
}

// Train fits one binary classifier per label. allLabels fixes the label
// vocabulary so that labels absent from the training split still count.
func (c *Classifier) Train(nodes []string, labels, allLabels [][]string) error {
	if len(nodes) != len(labels) {
		return errors.Errorf("classify: %d nodes, %d label sets", len(nodes), len(labels))
	}
	xs, err := c.features(nodes)
	if err != nil {
		return err
	}

	c.fitVocabulary(allLabels)
	dim := c.emb.Dim()
	c.weights = pronet.NewZeroParameter(len(c.classes), dim+1)

	targets := make([][]float64, len(nodes))
	for i, ls := range labels {
		targets[i] = make([]float64, len(c.classes))
		for _, l := range ls {
			if k, ok := c.index[l]; ok {
				targets[i][k] = 1
			}
		}
	}

	optim := pronet.NewAdam(c.opts.LR)
	n := float64(len(nodes))
	for it := 0; it < c.opts.Iterations; it++ {
		grad := make(pronet.RowGrad, len(c.classes))
		for k, w := range c.weights.Rows {
			g := make([]float64, dim+1)
			for i, x := range xs {
				p := sigmoid(floats.Dot(w[:dim], x) + w[dim])
				r := (p - targets[i][k]) / n
				floats.AddScaled(g[:dim], r, x)
				g[dim] += r
			}
			floats.AddScaled(g[:dim], c.opts.L2, w[:dim])
			grad[int64(k)] = g
		}
		optim.Step(pronet.Update{Param: c.weights, Grad: grad})
	}
	return nil
}

func (c *Classifier) fitVocabulary(allLabels [][]string) {
	seen := make(map[string]bool)
	c.classes = c.classes[:0]
	for _, ls := range allLabels {
		for _, l := range ls {
			if !seen[l] {
				seen[l] = true
				c.classes = append(c.classes, l)
			}
		}
	}
	sort.Strings(c.classes)
	c.index = make(map[string]int, len(c.classes))
	for k, l := range c.classes {
		c.index[l] = k
	}
}

// Probabilities returns the per-class scores of one node.
func (c *Classifier) Probabilities(node string) ([]float64, error) {
	if c.weights == nil {
		return nil, errors.New("classify: predict before train")
	}
	x, ok := c.emb.Get(node)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "node %s", node)
	}
	dim := c.emb.Dim()
	probs := make([]float64, len(c.classes))
	for k, w := range c.weights.Rows {
		probs[k] = sigmoid(floats.Dot(w[:dim], x) + w[dim])
	}
	return probs, nil
}

// Predict returns, for every node, the topK[i] most probable labels.
func (c *Classifier) Predict(nodes []string, topK []int) ([][]string, error) {
	out := make([][]string, len(nodes))
	for i, node := range nodes {
		probs, err := c.Probabilities(node)
		if err != nil {
			return nil, err
		}
		order := make([]int, len(probs))
		floats.Argsort(append([]float64(nil), probs...), order)

		k := topK[i]
		if k > len(order) {
			k = len(order)
		}
		pred := make([]string, 0, k)
		for j := len(order) - k; j < len(order); j++ {
			pred = append(pred, c.classes[order[j]])
		}
		out[i] = pred
	}
	return out, nil
}

// Evaluate predicts as many labels as each node truly has and scores them.
func (c *Classifier) Evaluate(nodes []string, labels [][]string) (Scores, error) {
	topK := make([]int, len(labels))
	for i, ls := range labels {
		topK[i] = len(ls)
	}
	pred, err := c.Predict(nodes, topK)
	if err != nil {
		return Scores{}, err
	}
	s := F1(labels, pred, c.classes)
	if c.opts.Simple {
		s.Samples, s.Weighted = 0, 0
	}
	return s, nil
}

// TrainAndEvaluate trains on a ratio-sized random split and scores the rest.
func (c *Classifier) TrainAndEvaluate(nodes []string, labels [][]string, ratio float64, rng *rand.Rand) (Scores, error) {
	trainX, trainY, testX, testY := Split(nodes, labels, ratio, rng)
	if len(trainX) == 0 || len(testX) == 0 {
		return Scores{}, errors.Errorf("classify: split of %d nodes at ratio %v leaves an empty side", len(nodes), ratio)
	}
	if err := c.Train(trainX, trainY, labels); err != nil {
		return Scores{}, err
	}
	return c.Evaluate(testX, testY)
}

// Split shuffles the nodes and puts the first ratio share into the training side.
func Split(nodes []string, labels [][]string, ratio float64, rng *rand.Rand) (trainX []string, trainY [][]string, testX []string, testY [][]string) {
	perm := rng.Perm(len(nodes))
	cut := int(ratio * float64(len(nodes)))
	for i, p := range perm {
		if i < cut {
			trainX = append(trainX, nodes[p])
			trainY = append(trainY, labels[p])
		} else {
			testX = append(testX, nodes[p])
			testY = append(testY, labels[p])
		}
	}
	return trainX, trainY, testX, testY
}

// F1 computes micro, macro, per-sample and support-weighted F1 of pred
// against truth over the given classes.
func F1(truth, pred [][]string, classes []string) Scores {
	index := make(map[string]int, len(classes))
	for k, l := range classes {
		index[l] = k
	}
	tp := make([]float64, len(classes))
	fp := make([]float64, len(classes))
	fn := make([]float64, len(classes))

	samples := 0.0
	for i := range truth {
		want := toSet(truth[i])
		got := toSet(pred[i])
		hit := 0.0
		for l := range got {
			k, ok := index[l]
			if !ok {
				continue
			}
			if want[l] {
				tp[k]++
				hit++
			} else {
				fp[k]++
			}
		}
		for l := range want {
			if k, ok := index[l]; ok && !got[l] {
				fn[k]++
			}
		}
		samples += f1(hit, float64(len(got))-hit, float64(len(want))-hit)
	}

	var s Scores
	if len(truth) > 0 {
		s.Samples = samples / float64(len(truth))
	}
	s.Micro = f1(floats.Sum(tp), floats.Sum(fp), floats.Sum(fn))

	support := 0.0
	for k := range classes {
		score := f1(tp[k], fp[k], fn[k])
		s.Macro += score
		s.Weighted += score * (tp[k] + fn[k])
		support += tp[k] + fn[k]
	}
	if len(classes) > 0 {
		s.Macro /= float64(len(classes))
	}
	if support > 0 {
		s.Weighted /= support
	}
	return s
}

func f1(tp, fp, fn float64) float64 {
	if tp == 0 {
		return 0
	}
	return 2 * tp / (2*tp + fp + fn)
}

func toSet(ls []string) map[string]bool {
	out := make(map[string]bool, len(ls))
	for _, l := range ls {
		out[l] = true
	}
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// ReadNodeLabels parses "node label1 label2 ..." lines.
func ReadNodeLabels(r io.Reader) ([]string, [][]string, error) {
	var nodes []string
	var labels [][]string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		nodes = append(nodes, fields[0])
		labels = append(labels, fields[1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "read node labels")
	}
	return nodes, labels, nil
}

// LoadNodeLabels reads a label file.
func LoadNodeLabels(filename string) ([]string, [][]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", filename)
	}
	defer f.Close()
	return ReadNodeLabels(f)
}
