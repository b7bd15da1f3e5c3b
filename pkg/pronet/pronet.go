package pronet

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	Monitor     = 10000
	PowerSample = 0.75
)

var (
	// ErrInvalidWeight is returned for non-positive or non-finite edge weights.
	ErrInvalidWeight = errors.New("edge weight must be a positive finite number")
	// ErrNoEdges is returned when sampling structures are requested for an empty graph.
	ErrNoEdges = errors.New("graph has no edges")
	// ErrZeroWeight is returned when the total edge weight or degree mass is zero.
	ErrZeroWeight = errors.New("graph has zero total weight")
)

// Edge is a weighted directed connection between two dense node ids.
type Edge struct {
	Head   int64
	Tail   int64
	Weight float64
}

// Graph is a read-only view over a weighted network. Every node name maps to a
// dense id in [0, NodeSize()).
type Graph struct {
	lookUp    map[string]int64
	lookBack  []string
	edges     []Edge
	edgeIndex map[[2]int64]int
	outDegree []float64
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		lookUp:    make(map[string]int64),
		lookBack:  make([]string, 0),
		edgeIndex: make(map[[2]int64]int),
	}
}

// AddNode returns the id of name, assigning the next dense id if it is new.
func (g *Graph) AddNode(name string) int64 {
	if vid, exists := g.lookUp[name]; exists {
		return vid
	}

	vid := int64(len(g.lookBack))
	g.lookUp[name] = vid
	g.lookBack = append(g.lookBack, name)
	g.outDegree = append(g.outDegree, 0)

	return vid
}

// AddEdge adds the directed edge head->tail. Adding an existing pair replaces
// its weight.
func (g *Graph) AddEdge(head, tail string, weight float64) error {
	if !(weight > 0) || math.IsInf(weight, 0) {
		return errors.Wrapf(ErrInvalidWeight, "edge %s->%s weight %v", head, tail, weight)
	}

	h := g.AddNode(head)
	t := g.AddNode(tail)

	key := [2]int64{h, t}
	if idx, exists := g.edgeIndex[key]; exists {
		g.outDegree[h] += weight - g.edges[idx].Weight
		g.edges[idx].Weight = weight
		return nil
	}

	g.edgeIndex[key] = len(g.edges)
	g.edges = append(g.edges, Edge{Head: h, Tail: t, Weight: weight})
	g.outDegree[h] += weight
	return nil
}

// NodeSize returns the number of nodes.
func (g *Graph) NodeSize() int { return len(g.lookBack) }

// EdgeSize returns the number of directed edges.
func (g *Graph) EdgeSize() int { return len(g.edges) }

// Edges returns the edges in insertion order. The slice must not be modified.
func (g *Graph) Edges() []Edge { return g.edges }

// Lookup returns the dense id of a node name.
func (g *Graph) Lookup(name string) (int64, bool) {
	vid, ok := g.lookUp[name]
	return vid, ok
}

// NodeName returns the name of a node by id
func (g *Graph) NodeName(vid int64) string {
	if vid < 0 || vid >= int64(len(g.lookBack)) {
		return ""
	}
	return g.lookBack[vid]
}

// Names returns node names indexed by id.
func (g *Graph) Names() []string { return g.lookBack }

// OutDegree returns the summed weight of edges leaving vid.
func (g *Graph) OutDegree(vid int64) float64 { return g.outDegree[vid] }

// LoadOptions controls how an edge list is interpreted.
type LoadOptions struct {
	// Weighted reads a third column as the edge weight; otherwise every edge weighs 1.
	Weighted bool
	// Directed keeps edges one-way; undirected lists add both directions.
	Directed bool
	Logger   logrus.FieldLogger
}

// LoadEdgeList loads the network from an edge list file
func LoadEdgeList(filename string, opts LoadOptions) (*Graph, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open edge list %s", filename)
	}
	defer file.Close()

	g, err := ReadEdgeList(file, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read edge list %s", filename)
	}
	return g, nil
}

// ReadEdgeList parses "head tail [weight]" lines. Blank lines and lines
// starting with '#' are skipped.
func ReadEdgeList(r io.Reader, opts LoadOptions) (*Graph, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	g := NewGraph()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	connections := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		parts := strings.Fields(text)
		want := 2
		if opts.Weighted {
			want = 3
		}
		if len(parts) < want {
			return nil, errors.Errorf("line %d: expected %d fields, got %d", lineNo, want, len(parts))
		}

		weight := 1.0
		if opts.Weighted {
			w, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid weight", lineNo)
			}
			weight = w
		}
		if err := addConnection(g, parts[0], parts[1], weight, opts.Directed); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}

		connections++
		if connections%Monitor == 0 {
			log.WithField("connections", connections).Debug("loading edge list")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan edge list")
	}

	log.WithFields(logrus.Fields{
		"nodes":    g.NodeSize(),
		"edges":    g.EdgeSize(),
		"directed": opts.Directed,
		"weighted": opts.Weighted,
	}).Info("graph loaded")

	return g, nil
}

func addConnection(g *Graph, head, tail string, weight float64, directed bool) error {
	if err := g.AddEdge(head, tail, weight); err != nil {
		return err
	}
	if !directed && head != tail {
		return g.AddEdge(tail, head, weight)
	}
	return nil
}
