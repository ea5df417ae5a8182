package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/scorer"
	"github.com/sells-group/sourcing-cli/internal/store"
)

var rescoreCriteriaPath string

var rescoreCmd = &cobra.Command{
	Use:   "rescore <run-id>",
	Short: "Re-rank a stored run's manufacturers without searching or scraping again",
	Long:  "Loads the extracted records of a finished run and scores them again, against the run's own criteria or a new criteria file. No network calls are made and nothing is written back.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("rescore"); err != nil {
			return err
		}

		var criteria *model.SearchCriteria
		if rescoreCriteriaPath != "" {
			c, err := model.LoadCriteria(rescoreCriteriaPath)
			if err != nil {
				return err
			}
			criteria = &c
		}

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sr, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "rescore")
		}

		result := rescoreRun(sr, criteria, scorer.New(cfg.Scoring))
		zap.L().Info("rescored run",
			zap.String("run_id", sr.Run.ID),
			zap.Int("manufacturers", len(result.Manufacturers)),
		)
		return writeJSON(os.Stdout, result)
	},
}

// rescoreRun scores the stored records against criteria, or against the
// run's own criteria when criteria is nil.
func rescoreRun(sr *store.StoredRun, criteria *model.SearchCriteria, sc *scorer.Scorer) model.RunResult {
	result := sr.Result
	if criteria != nil {
		result.Criteria = *criteria
	}

	records := make([]model.ManufacturerRecord, 0, len(sr.Result.Manufacturers))
	for _, m := range sr.Result.Manufacturers {
		records = append(records, m.Record)
	}
	result.Manufacturers = sc.ScoreAll(result.Criteria, records)
	return result
}

func init() {
	rescoreCmd.Flags().StringVar(&rescoreCriteriaPath, "criteria", "", "score against this criteria file instead of the run's own")
	rootCmd.AddCommand(rescoreCmd)
}
