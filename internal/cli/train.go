// Package cli holds the cobra commands shared by the binaries under cmd/.
package cli

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cnclabs/openne/internal/config"
	"github.com/cnclabs/openne/internal/models"
	"github.com/cnclabs/openne/internal/store"
	"github.com/cnclabs/openne/internal/tasks/classify"
	"github.com/cnclabs/openne/internal/trainer"
	"github.com/cnclabs/openne/pkg/embedding"
	"github.com/cnclabs/openne/pkg/pronet"
)

// TrainFlags are the non-model flags of a training command.
type TrainFlags struct {
	ConfigPath  string
	Input       string
	Output      string
	LabelFile   string
	StorePath   string
	MetricsAddr string
	Verbose     bool
}

// NewTrainCommand returns the command that trains the given model kind.
func NewTrainCommand(model, short, example string) *cobra.Command {
	var flags TrainFlags
	cfg := config.DefaultFor(model)

	cmd := &cobra.Command{
		Use:           model,
		Short:         short,
		Example:       example,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveConfig(cmd.Flags(), flags.ConfigPath, cfg, model)
			if err != nil {
				return err
			}
			log := newLogger(flags.Verbose)
			return Train(cmd.Context(), resolved, flags, log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.ConfigPath, "config", "", "YAML configuration file")
	f.StringVar(&flags.Input, "input", "", "Edge list of the network")
	f.StringVar(&flags.Output, "output", "", "Save the representation data")
	f.StringVar(&flags.LabelFile, "label-file", "", "Node labels for evaluation")
	f.StringVar(&flags.StorePath, "store", "", "SQLite database that also receives the embeddings")
	f.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.BoolVarP(&flags.Verbose, "verbose", "v", false, "Debug logging")

	f.IntVar(&cfg.Dim, "dim", cfg.Dim, "Dimension of vertex representation")
	f.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "Number of training epochs")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed, 0 seeds from the clock")
	f.Float64Var(&cfg.LR, "lr", cfg.LR, "Learning rate")
	f.BoolVar(&cfg.Weighted, "weighted", cfg.Weighted, "Read a weight column from the edge list")
	f.BoolVar(&cfg.Directed, "directed", cfg.Directed, "Treat edges as directed")
	f.Float64Var(&cfg.ClfRatio, "clf-ratio", cfg.ClfRatio, "Share of labelled nodes used to train the classifier")
	f.BoolVar(&cfg.ValidateEpochs, "validate", cfg.ValidateEpochs, "Score after every epoch and keep the best embeddings")

	switch model {
	case config.ModelLINE:
		f.IntVar(&cfg.Order, "order", cfg.Order, "Order of proximity (1, 2 or 3)")
		f.IntVar(&cfg.NegativeRatio, "negative-ratio", cfg.NegativeRatio, "Negative samples per positive edge")
		f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Edges per mini-batch")
		f.IntVar((*int)(&cfg.TableSize), "table-size", int(cfg.TableSize), "Length of the negative sampling table")
		f.BoolVar(&cfg.DataParallel, "data-parallel", cfg.DataParallel, "Train the order-3 halves concurrently")
	case config.ModelGF:
		f.Float64Var(&cfg.Lambda, "lambda", cfg.Lambda, "L2 weight of the factorization")
	}

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// resolveConfig layers explicitly set flags over the config file, which is
// itself decoded over fromFlags so that keys it omits keep the model's
// defaults.
func resolveConfig(fs *pflag.FlagSet, path string, fromFlags config.Config, model string) (config.Config, error) {
	if path == "" {
		fromFlags.Model = model
		return fromFlags, fromFlags.Validate()
	}

	cfg, err := config.LoadOver(fromFlags, path)
	if err != nil {
		return config.Config{}, err
	}
	cfg.Model = model
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "dim":
			cfg.Dim = fromFlags.Dim
		case "epochs":
			cfg.Epochs = fromFlags.Epochs
		case "seed":
			cfg.Seed = fromFlags.Seed
		case "lr":
			cfg.LR = fromFlags.LR
		case "weighted":
			cfg.Weighted = fromFlags.Weighted
		case "directed":
			cfg.Directed = fromFlags.Directed
		case "clf-ratio":
			cfg.ClfRatio = fromFlags.ClfRatio
		case "validate":
			cfg.ValidateEpochs = fromFlags.ValidateEpochs
		case "order":
			cfg.Order = fromFlags.Order
		case "negative-ratio":
			cfg.NegativeRatio = fromFlags.NegativeRatio
		case "batch-size":
			cfg.BatchSize = fromFlags.BatchSize
		case "table-size":
			cfg.TableSize = fromFlags.TableSize
		case "data-parallel":
			cfg.DataParallel = fromFlags.DataParallel
		case "lambda":
			cfg.Lambda = fromFlags.Lambda
		}
	})
	return cfg, cfg.Validate()
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// Train loads the graph, trains the configured model, writes the embeddings
// and, when a label file is given, reports classification scores.
func Train(ctx context.Context, cfg config.Config, flags TrainFlags, log logrus.FieldLogger) error {
	if cfg.ValidateEpochs && flags.LabelFile == "" {
		return &config.ValidationError{Key: "validate", Reason: "needs --label-file"}
	}

	reg := prometheus.NewRegistry()
	metrics := trainer.NewMetrics(reg)
	if flags.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              flags.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	g, err := pronet.LoadEdgeList(flags.Input, pronet.LoadOptions{
		Weighted: cfg.Weighted,
		Directed: cfg.Directed,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	model, err := models.New(cfg, rng)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"model": model.Name(), "dim": model.Dim(), "seed": seed}).Info("building model")
	if err := model.Build(g); err != nil {
		return err
	}

	var nodes []string
	var labels [][]string
	if flags.LabelFile != "" {
		if nodes, labels, err = classify.LoadNodeLabels(flags.LabelFile); err != nil {
			return err
		}
	}

	opts := trainer.Options{Logger: log, Metrics: metrics}
	if cfg.ValidateEpochs {
		clfOpts := classify.DefaultOptions()
		clfOpts.Simple = true
		opts.Validate = func(epoch int, emb *embedding.Set) (float64, error) {
			clf := classify.New(emb, clfOpts)
			s, err := clf.TrainAndEvaluate(nodes, labels, cfg.ClfRatio, rand.New(rand.NewSource(seed)))
			return s.Macro, err
		}
	}

	res, err := trainer.New(opts).Run(model, cfg.Epochs)
	if err != nil {
		return err
	}

	out := res.Final
	if res.Best != nil {
		log.WithFields(logrus.Fields{"epoch": res.BestEpoch, "score": res.BestScore}).Info("keeping best embeddings")
		out = res.Best
	}
	if err := embedding.Save(flags.Output, out); err != nil {
		return err
	}
	log.WithField("path", flags.Output).Info("embeddings saved")

	if flags.StorePath != "" {
		st, err := store.Open(ctx, flags.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveRun(ctx, res.RunID, res.Model, out); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"store": flags.StorePath, "run": res.RunID}).Info("embeddings stored")
	}

	if flags.LabelFile != "" {
		scores, err := classify.New(out, classify.DefaultOptions()).
			TrainAndEvaluate(nodes, labels, cfg.ClfRatio, rand.New(rand.NewSource(seed)))
		if err != nil {
			return errors.Wrap(err, "evaluate")
		}
		log.WithFields(logrus.Fields{
			"micro":    scores.Micro,
			"macro":    scores.Macro,
			"samples":  scores.Samples,
			"weighted": scores.Weighted,
		}).Info("node classification")
	}
	return nil
}
