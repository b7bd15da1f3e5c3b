package cli

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cnclabs/openne/internal/store"
	"github.com/cnclabs/openne/internal/tasks/classify"
	"github.com/cnclabs/openne/pkg/embedding"
)

// NewClassifyCommand returns the command that scores an embedding file (or a
// stored run) by node classification and prints the F1 scores as JSON.
func NewClassifyCommand() *cobra.Command {
	var (
		embPath   string
		storePath string
		runID     string
		labelPath string
		ratio     float64
		seed      int64
		simple    bool
	)

	cmd := &cobra.Command{
		Use:           "classify",
		Short:         "Evaluate embeddings by multi-label node classification",
		Example:       "classify --embeddings vec.txt --labels labels.txt --clf-ratio 0.5",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !(ratio > 0 && ratio < 1) {
				return errors.Errorf("clf-ratio must be in (0, 1), got %v", ratio)
			}

			var emb *embedding.Set
			var err error
			switch {
			case embPath != "":
				emb, err = embedding.Load(embPath)
			case storePath != "" && runID != "":
				var st *store.Store
				if st, err = store.Open(cmd.Context(), storePath); err != nil {
					return err
				}
				defer st.Close()
				emb, err = st.LoadRun(cmd.Context(), runID)
			default:
				return errors.New("need --embeddings or --store with --run")
			}
			if err != nil {
				return err
			}

			nodes, labels, err := classify.LoadNodeLabels(labelPath)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			opts := classify.DefaultOptions()
			opts.Simple = simple
			scores, err := classify.New(emb, opts).TrainAndEvaluate(nodes, labels, ratio, rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(scores)
		},
	}

	f := cmd.Flags()
	f.StringVar(&embPath, "embeddings", "", "Embedding file")
	f.StringVar(&storePath, "store", "", "SQLite database holding stored runs")
	f.StringVar(&runID, "run", "", "Run id inside --store")
	f.StringVar(&labelPath, "labels", "", "Node label file")
	f.Float64Var(&ratio, "clf-ratio", 0.5, "Share of labelled nodes used for training")
	f.Int64Var(&seed, "seed", 0, "Split seed, 0 seeds from the clock")
	f.BoolVar(&simple, "simple", false, "Report micro and macro F1 only")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}
