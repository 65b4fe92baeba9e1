package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-earlystop/tracking"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs",
	Long:  `Runs lists every recorded training run, newest first.`,
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "emit runs as JSON")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if runsLimit <= 0 {
		return fmt.Errorf("limit must be > 0")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tracking.CloseIfSupported(store)
	}()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(runs) > runsLimit {
		runs = runs[:runsLimit]
	}

	if runsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	for _, run := range runs {
		stopped := "-"
		if run.StoppedEpoch >= 0 {
			stopped = fmt.Sprintf("%d", run.StoppedEpoch)
		}
		best := "n/a"
		if run.BestEpoch >= 0 {
			best = fmt.Sprintf("%.6f@%d", run.BestValue, run.BestEpoch)
		}
		fmt.Printf("run_id=%s name=%s status=%s monitor=%s mode=%s patience=%d stopped_epoch=%s best=%s started_at=%s\n",
			run.ID,
			run.Name,
			run.Status,
			run.Monitor,
			run.Mode,
			run.Patience,
			stopped,
			best,
			run.StartedAt.Format(time.RFC3339),
		)
	}
	return nil
}
