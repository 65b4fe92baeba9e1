package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-earlystop/tracking"
)

var (
	historyRunID string
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show per-epoch metrics for a run",
	Long:  `History prints every recorded metric of a run, epoch by epoch.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "run id")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "emit history as JSON")
	_ = historyCmd.MarkFlagRequired("run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tracking.CloseIfSupported(store)
	}()

	history, found, err := store.GetEpochMetrics(ctx, historyRunID)
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("no metrics recorded")
		return nil
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for _, em := range history {
		names := make([]string, 0, len(em.Values))
		for name := range em.Values {
			names = append(names, name)
		}
		sort.Strings(names)

		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%.6f", name, em.Values[name]))
		}
		fmt.Printf("epoch=%d %s\n", em.Epoch, strings.Join(parts, " "))
	}
	return nil
}
