package config

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Model kinds.
const (
	ModelLINE = "line"
	ModelLAP  = "lap"
	ModelGF   = "gf"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// ValidationError names the offending key.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Config is the training configuration shared by all models.
type Config struct {
	Model string `yaml:"model"`

	Dim           int     `yaml:"dim"`
	Order         int     `yaml:"order"`
	NegativeRatio int     `yaml:"negative_ratio"`
	BatchSize     int     `yaml:"batch_size"`
	LR            float64 `yaml:"lr"`
	TableSize     Count   `yaml:"table_size"`
	Epochs        int     `yaml:"epochs"`
	// Seed fixes every random stream; 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
	// DataParallel trains the two order-3 halves concurrently.
	DataParallel bool `yaml:"data_parallel"`

	// Lambda is the L2 weight of graph factorization.
	Lambda float64 `yaml:"lambda"`

	Weighted bool `yaml:"weighted"`
	Directed bool `yaml:"directed"`

	ClfRatio float64 `yaml:"clf_ratio"`
	// ValidateEpochs scores the embeddings on the label file after every epoch and
	// keeps the best ones.
	ValidateEpochs bool `yaml:"validate"`
}

// Count is an integer that also accepts an integral float literal such as
// 1e8 in YAML.
type Count int

func (c *Count) UnmarshalYAML(value *yaml.Node) error {
	if n, err := strconv.ParseInt(value.Value, 0, 64); err == nil {
		*c = Count(n)
		return nil
	}
	f, err := strconv.ParseFloat(value.Value, 64)
	if err != nil {
		return errors.Errorf("line %d: %q is not a number", value.Line, value.Value)
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return errors.Errorf("line %d: %q is not an integer", value.Line, value.Value)
	}
	*c = Count(f)
	return nil
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Model:         ModelLINE,
		Dim:           128,
		Order:         3,
		NegativeRatio: 5,
		BatchSize:     1024,
		LR:            0.001,
		TableSize:     100_000_000,
		Epochs:        40,
		Lambda:        1.0,
		ClfRatio:      0.5,
	}
}

// DefaultFor returns the defaults of a model kind. GF trains with a larger
// step for more epochs and LAP needs a single pass.
func DefaultFor(model string) Config {
	cfg := Default()
	cfg.Model = model
	switch model {
	case ModelGF:
		cfg.LR = 0.01
		cfg.Epochs = 100
	case ModelLAP:
		cfg.Epochs = 1
	}
	return cfg
}

// Validate checks every field and returns the first *ValidationError found.
func (c Config) Validate() error {
	switch c.Model {
	case ModelLINE, ModelLAP, ModelGF:
	default:
		return &ValidationError{Key: "model", Reason: fmt.Sprintf("unknown model %q", c.Model)}
	}

	positive := []struct {
		key string
		val int
	}{
		{"dim", c.Dim},
		{"negative_ratio", c.NegativeRatio},
		{"batch_size", c.BatchSize},
		{"table_size", int(c.TableSize)},
		{"epochs", c.Epochs},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return &ValidationError{Key: p.key, Reason: fmt.Sprintf("must be positive, got %d", p.val)}
		}
	}

	if !(c.LR > 0) || math.IsInf(c.LR, 0) {
		return &ValidationError{Key: "lr", Reason: fmt.Sprintf("must be positive, got %v", c.LR)}
	}
	if c.Lambda < 0 || math.IsNaN(c.Lambda) {
		return &ValidationError{Key: "lambda", Reason: fmt.Sprintf("must not be negative, got %v", c.Lambda)}
	}
	if !(c.ClfRatio > 0 && c.ClfRatio < 1) {
		return &ValidationError{Key: "clf_ratio", Reason: fmt.Sprintf("must be in (0, 1), got %v", c.ClfRatio)}
	}

	if c.Model == ModelLINE {
		if c.Order < 1 || c.Order > 3 {
			return &ValidationError{Key: "order", Reason: fmt.Sprintf("must be 1, 2 or 3, got %d", c.Order)}
		}
		if c.Order == 3 && c.Dim%2 != 0 {
			return &ValidationError{Key: "dim", Reason: fmt.Sprintf("must be even for order 3, got %d", c.Dim)}
		}
	}
	return nil
}

// Parse decodes YAML over the defaults, rejecting unknown keys, and validates
// the result.
func Parse(data []byte) (Config, error) {
	return ParseOver(Default(), data)
}

// ParseOver is Parse with base supplying the values of absent keys.
func ParseOver(base Config, data []byte) (Config, error) {
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(ErrInvalid, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (Config, error) {
	return LoadOver(Default(), path)
}

// LoadOver reads a YAML configuration file over base.
func LoadOver(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := ParseOver(base, data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}
