package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
)

var (
	runCriteriaPath string
	runMax          int
	runNoStore      bool
	runNotion       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run discovery for a criteria file and print the ranked manufacturers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		criteria, err := model.LoadCriteria(runCriteriaPath)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, cfg, "run", envOptions{noStore: runNoStore, notion: runNotion})
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := env.Manager.StartRun(criteria, runMax)
		if err != nil {
			return eris.Wrap(err, "start run")
		}

		result, err := awaitRun(ctx, env.Manager, id, 2*time.Second)
		if err != nil {
			return err
		}

		zap.L().Info("run finished",
			zap.String("run_id", id),
			zap.String("status", string(result.Status)),
			zap.Int("manufacturers", len(result.Manufacturers)),
			zap.Float64("cost_usd", result.CostUSD),
		)

		if err := writeJSON(os.Stdout, result); err != nil {
			return err
		}
		if result.Status == model.ResultFailed && result.Error != nil {
			return eris.Errorf("run %s failed: %s", id, result.Error.Error())
		}
		return nil
	},
}

// awaitRun blocks until the run finishes, logging each step change. When
// ctx is canceled the run is stopped and its terminal result returned.
func awaitRun(ctx context.Context, m *pipeline.Manager, id string, every time.Duration) (*model.RunResult, error) {
	done := make(chan struct{})
	defer close(done)
	go logProgress(m, id, every, done)

	result, err := m.Wait(ctx, id)
	if err == nil {
		return result, nil
	}

	zap.L().Warn("interrupted, stopping run", zap.String("run_id", id))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		return nil, eris.Wrap(err, "stop run")
	}
	return m.GetResult(id)
}

func logProgress(m *pipeline.Manager, id string, every time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	var last string
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snap, err := m.GetProgress(id)
			if err != nil {
				return
			}
			line := snap.Step + "|" + snap.Detail
			if line == last {
				continue
			}
			last = line
			zap.L().Info("progress",
				zap.String("state", string(snap.State)),
				zap.String("step", snap.Step),
				zap.String("detail", snap.Detail),
				zap.Int("percent", snap.Progress),
				zap.Float64("cost_usd", snap.CostUSD),
			)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

func init() {
	runCmd.Flags().StringVar(&runCriteriaPath, "criteria", "", "criteria file, YAML or JSON (required)")
	runCmd.Flags().IntVar(&runMax, "max", 0, "maximum candidates to process (default pipeline.max_manufacturers)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not persist the run")
	runCmd.Flags().BoolVar(&runNotion, "notion", false, "export ranked manufacturers to the Notion database")
	_ = runCmd.MarkFlagRequired("criteria")
	rootCmd.AddCommand(runCmd)
}
