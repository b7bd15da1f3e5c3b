// Package trainer drives epochs over an embedding model, reporting the loss
// of every epoch and optionally keeping the best embeddings under a
// validation score.
package trainer

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cnclabs/openne/internal/models"
	"github.com/cnclabs/openne/pkg/embedding"
)

// ErrDiverged is returned when an epoch loss is NaN or infinite.
var ErrDiverged = errors.New("training diverged")

// Validator scores embeddings after an epoch; higher is better.
type Validator func(epoch int, emb *embedding.Set) (float64, error)

// Options configure a Trainer. Zero values are usable.
type Options struct {
	Logger  logrus.FieldLogger
	Metrics *Metrics
	// Validate, when set, is called after every epoch.
	Validate Validator
	// AllowNaN keeps training when the loss is not finite.
	AllowNaN bool
	// OnEpoch is called with every epoch loss; returning an error stops training.
	OnEpoch func(epoch int, loss float64) error
}

// Result summarises a run.
type Result struct {
	RunID  string
	Model  string
	Losses []float64
	Final  *embedding.Set
	// Best is the highest-scoring snapshot when a validator is set.
	Best      *embedding.Set
	BestScore float64
	BestEpoch int
}

type Trainer struct {
	opts Options
	log  logrus.FieldLogger
}

func New(opts Options) *Trainer {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Trainer{opts: opts, log: log}
}

// Run trains a built model for the given number of epochs.
func (t *Trainer) Run(m models.Embedder, epochs int) (*Result, error) {
	if epochs <= 0 {
		return nil, errors.Errorf("trainer: epochs must be positive, got %d", epochs)
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Model:     m.Name(),
		Losses:    make([]float64, 0, epochs),
		BestScore: math.Inf(-1),
		BestEpoch: -1,
	}
	log := t.log.WithFields(logrus.Fields{"run": res.RunID, "model": res.Model})
	met := t.opts.Metrics

	log.WithFields(logrus.Fields{"epochs": epochs, "dim": m.Dim()}).Info("start training")

	for epoch := 0; epoch < epochs; epoch++ {
		started := time.Now()
		loss, err := m.TrainEpoch()
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
		elapsed := time.Since(started)

		res.Losses = append(res.Losses, loss)
		met.Epochs.WithLabelValues(res.Model).Inc()
		met.EpochLoss.WithLabelValues(res.Model).Set(loss)
		met.EpochDuration.WithLabelValues(res.Model).Observe(elapsed.Seconds())

		entry := log.WithFields(logrus.Fields{
			"epoch":    epoch,
			"loss":     loss,
			"duration": elapsed.Round(time.Millisecond),
		})

		if !t.opts.AllowNaN && (math.IsNaN(loss) || math.IsInf(loss, 0)) {
			entry.Error("loss is not finite")
			return nil, errors.Wrapf(ErrDiverged, "epoch %d loss %v", epoch, loss)
		}

		if t.opts.Validate != nil {
			score, err := t.validate(m, epoch, res)
			if err != nil {
				return nil, err
			}
			entry = entry.WithFields(logrus.Fields{"score": score, "best": res.BestScore})
		}
		entry.Info("epoch done")

		if t.opts.OnEpoch != nil {
			if err := t.opts.OnEpoch(epoch, loss); err != nil {
				return nil, errors.Wrapf(err, "epoch %d", epoch)
			}
		}
	}

	final, err := m.Embeddings()
	if err != nil {
		return nil, errors.Wrap(err, "finalize embeddings")
	}
	res.Final = final
	log.WithField("nodes", final.Len()).Info("training finished")
	return res, nil
}

func (t *Trainer) validate(m models.Embedder, epoch int, res *Result) (float64, error) {
	emb, err := m.Embeddings()
	if err != nil {
		return 0, errors.Wrapf(err, "epoch %d embeddings", epoch)
	}
	score, err := t.opts.Validate(epoch, emb)
	if err != nil {
		return 0, errors.Wrapf(err, "epoch %d validation", epoch)
	}
	t.opts.Metrics.ValidationScore.WithLabelValues(res.Model).Set(score)
	if score > res.BestScore {
		res.BestScore = score
		res.BestEpoch = epoch
		res.Best = emb
	}
	return score, nil
}
