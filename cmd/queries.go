package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/query"
	anthropicpkg "github.com/sells-group/sourcing-cli/pkg/anthropic"
)

var (
	queriesCriteriaPath string
	queriesFallback     bool
)

// queriesOutput is the preview printed by the queries command.
type queriesOutput struct {
	Queries       []model.Query      `json:"queries"`
	Fallback      bool               `json:"fallback"`
	CostUSD       float64            `json:"cost_usd"`
	CostBreakdown map[string]float64 `json:"cost_breakdown,omitempty"`
}

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Preview the search queries a criteria file would produce",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("queries"); err != nil {
			return err
		}
		criteria, err := model.LoadCriteria(queriesCriteriaPath)
		if err != nil {
			return err
		}

		tracker := cost.NewTracker(cost.NewCalculator(ratesFromConfig(cfg.Pricing)), cfg.Pipeline.BudgetUSD)
		strategist := newPreviewStrategist(cfg, tracker, queriesFallback)

		batch, err := strategist.Generate(cmd.Context(), criteria)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, queriesOutput{
			Queries:       batch.Queries,
			Fallback:      batch.Fallback,
			CostUSD:       tracker.Spent(),
			CostBreakdown: tracker.Breakdown(),
		})
	},
}

// newPreviewStrategist uses templates only when asked to or when no
// Anthropic key is configured.
func newPreviewStrategist(c *config.Config, meter query.Meter, templatesOnly bool) *query.Strategist {
	if templatesOnly || c.Anthropic.Key == "" {
		if !templatesOnly {
			zap.L().Info("anthropic.key not set, previewing template queries")
		}
		return query.NewStrategist(nil, meter, c.Anthropic, c.Query)
	}

	opts := []anthropicpkg.Option{anthropicpkg.WithBaseURL(c.Anthropic.BaseURL)}
	if c.Anthropic.TimeoutSecs > 0 {
		opts = append(opts, anthropicpkg.WithTimeout(time.Duration(c.Anthropic.TimeoutSecs)*time.Second))
	}
	gen := anthropicpkg.NewGenerator(anthropicpkg.NewClient(c.Anthropic.Key, opts...))
	return query.NewStrategist(gen, meter, c.Anthropic, c.Query)
}

func init() {
	queriesCmd.Flags().StringVar(&queriesCriteriaPath, "criteria", "", "criteria file, YAML or JSON (required)")
	queriesCmd.Flags().BoolVar(&queriesFallback, "fallback", false, "skip the model and print template queries")
	_ = queriesCmd.MarkFlagRequired("criteria")
	rootCmd.AddCommand(queriesCmd)
}
