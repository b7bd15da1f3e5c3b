// Package models selects an embedding model kind from configuration.
package models

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cnclabs/openne/internal/config"
	"github.com/cnclabs/openne/internal/models/gf"
	"github.com/cnclabs/openne/internal/models/lap"
	"github.com/cnclabs/openne/internal/models/line"
	"github.com/cnclabs/openne/pkg/embedding"
	"github.com/cnclabs/openne/pkg/pronet"
)

// Embedder is the capability shared by every model kind.
type Embedder interface {
	Name() string
	Dim() int
	// Build prepares the model for g. g must not change afterwards.
	Build(g *pronet.Graph) error
	// TrainEpoch runs one epoch and returns its cumulative loss.
	TrainEpoch() (float64, error)
	// Embeddings returns a detached copy of the current embeddings.
	Embeddings() (*embedding.Set, error)
}

var (
	_ Embedder = (*line.LINE)(nil)
	_ Embedder = (*line.Composite)(nil)
	_ Embedder = (*lap.LAP)(nil)
	_ Embedder = (*gf.GF)(nil)
)

// New builds the model named by cfg.Model. cfg must already be valid.
func New(cfg config.Config, rng *rand.Rand) (Embedder, error) {
	switch cfg.Model {
	case config.ModelLINE:
		opts := line.Options{
			Dim:           cfg.Dim,
			Order:         line.Order(cfg.Order),
			NegativeRatio: cfg.NegativeRatio,
			BatchSize:     cfg.BatchSize,
			LR:            cfg.LR,
			TableSize:     int(cfg.TableSize),
		}
		if cfg.Order == 3 {
			c, err := line.NewComposite(opts, cfg.DataParallel, rng)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		l, err := line.New(opts, rng)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.ModelLAP:
		return lap.New(cfg.Dim), nil
	case config.ModelGF:
		return gf.New(cfg.Dim, cfg.LR, cfg.Lambda, rng), nil
	}
	return nil, errors.Errorf("models: unknown model %q", cfg.Model)
}
