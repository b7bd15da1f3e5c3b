// Package embedding holds node embedding sets and their text serialisation.
//
// The text format has a header line "<node_count> <dim>" followed by one line
// per node: "<node_id> <v1> ... <v_dim>".
package embedding

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrMalformed reports a structurally invalid embedding file.
	ErrMalformed = errors.New("malformed embedding file")
	// ErrDimMismatch reports a vector whose length differs from the set's width.
	ErrDimMismatch = errors.New("embedding dimension mismatch")
	// ErrDuplicate reports a node added twice.
	ErrDuplicate = errors.New("duplicate node")
)

// Set maps node identifiers to fixed-length vectors, remembering insertion order.
type Set struct {
	dim  int
	ids  []string
	vecs map[string][]float64
}

// New returns an empty set of width dim.
func New(dim int) *Set {
	return &Set{dim: dim, vecs: make(map[string][]float64)}
}

// FromRows builds a set from a row matrix whose i-th row belongs to names[i].
// Rows are copied.
func FromRows(names []string, rows [][]float64, dim int) (*Set, error) {
	if len(names) != len(rows) {
		return nil, errors.Errorf("%d names for %d rows", len(names), len(rows))
	}
	s := New(dim)
	for i, name := range names {
		if err := s.Add(name, append([]float64(nil), rows[i]...)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add stores vec under id. The set keeps the slice.
func (s *Set) Add(id string, vec []float64) error {
	if len(vec) != s.dim {
		return errors.Wrapf(ErrDimMismatch, "node %s has %d components, want %d", id, len(vec), s.dim)
	}
	if _, exists := s.vecs[id]; exists {
		return errors.Wrapf(ErrDuplicate, "node %s", id)
	}
	s.ids = append(s.ids, id)
	s.vecs[id] = vec
	return nil
}

// Get returns the vector of id.
func (s *Set) Get(id string) ([]float64, bool) {
	v, ok := s.vecs[id]
	return v, ok
}

func (s *Set) Dim() int { return s.dim }

func (s *Set) Len() int { return len(s.ids) }

// IDs returns node identifiers in insertion order.
func (s *Set) IDs() []string { return s.ids }

// Map returns a copy of the set as a plain map.
func (s *Set) Map() map[string][]float64 {
	out := make(map[string][]float64, len(s.vecs))
	for id, v := range s.vecs {
		out[id] = append([]float64(nil), v...)
	}
	return out
}

// Concat joins two sets column-wise: every node of a must be present in b,
// and the result has width a.Dim()+b.Dim().
func Concat(a, b *Set) (*Set, error) {
	if a.Len() != b.Len() {
		return nil, errors.Errorf("concat: %d nodes vs %d nodes", a.Len(), b.Len())
	}
	out := New(a.dim + b.dim)
	for _, id := range a.ids {
		right, ok := b.vecs[id]
		if !ok {
			return nil, errors.Errorf("concat: node %s missing from right-hand set", id)
		}
		vec := make([]float64, 0, out.dim)
		vec = append(vec, a.vecs[id]...)
		vec = append(vec, right...)
		if err := out.Add(id, vec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Write serialises s in the text format.
func Write(w io.Writer, s *Set) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strconv.Itoa(s.Len()) + " " + strconv.Itoa(s.dim) + "\n"); err != nil {
		return errors.Wrap(err, "write header")
	}

	buf := make([]byte, 0, 32*(s.dim+1))
	for _, id := range s.ids {
		buf = append(buf[:0], id...)
		for _, x := range s.vecs[id] {
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, x, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return errors.Wrapf(err, "write node %s", id)
		}
	}
	return errors.Wrap(bw.Flush(), "flush embeddings")
}

// Read parses the text format, failing if the declared node count does not
// match the data lines or any vector has the wrong width.
func Read(r io.Reader) (*Set, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "read header")
		}
		return nil, errors.Wrap(ErrMalformed, "missing header")
	}
	header := strings.Fields(scanner.Text())
	if len(header) != 2 {
		return nil, errors.Wrapf(ErrMalformed, "header %q", scanner.Text())
	}
	count, err := strconv.Atoi(header[0])
	if err != nil || count < 0 {
		return nil, errors.Wrapf(ErrMalformed, "node count %q", header[0])
	}
	dim, err := strconv.Atoi(header[1])
	if err != nil || dim <= 0 {
		return nil, errors.Wrapf(ErrMalformed, "dimension %q", header[1])
	}

	s := New(dim)
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+1 {
			return nil, errors.Wrapf(ErrDimMismatch, "line %d has %d components, want %d", lineNo, len(fields)-1, dim)
		}
		vec := make([]float64, dim)
		for d, f := range fields[1:] {
			if vec[d], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, errors.Wrapf(ErrMalformed, "line %d component %d: %v", lineNo, d, err)
			}
		}
		if err := s.Add(fields[0], vec); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read embeddings")
	}

	if s.Len() != count {
		return nil, errors.Wrapf(ErrMalformed, "header declares %d nodes, found %d", count, s.Len())
	}
	return s, nil
}

// Save writes s to filename.
func Save(filename string, s *Set) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return errors.Wrapf(err, "save %s", filename)
	}
	return errors.Wrapf(f.Close(), "close %s", filename)
}

// Load reads an embedding file.
func Load(filename string) (*Set, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", filename)
	}
	return s, nil
}
