package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-earlystop/checkpoints"
	"github.com/tsawler/go-earlystop/earlystop"
	"github.com/tsawler/go-earlystop/training"
)

var (
	exportCheckpoint string
	exportFormat     string
	exportOut        string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export early stopping state from a checkpoint",
	Long: `Export reads a saved checkpoint, extracts the early stopping state it
carries, and writes it as a standalone snapshot:

  earlystopctl export --checkpoint ckpts/best_checkpoint.json --out state.json
  earlystopctl export --checkpoint ckpts/best_checkpoint.json --format pb --out state.pb`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportCheckpoint, "checkpoint", "", "checkpoint file to read")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "snapshot format: json|pb")
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "output path (- for stdout)")
	_ = exportCmd.MarkFlagRequired("checkpoint")
}

func runExport(cmd *cobra.Command, args []string) error {
	saver := checkpoints.NewCheckpointSaver(checkpoints.FormatJSON)
	checkpoint, err := saver.LoadCheckpoint(exportCheckpoint)
	if err != nil {
		return err
	}

	state, ok := checkpoint.CallbackStates[training.EarlyStoppingName]
	if !ok {
		return fmt.Errorf("checkpoint %s carries no early stopping state", exportCheckpoint)
	}
	snapshot, err := earlystop.SnapshotFromMap(state)
	if err != nil {
		return err
	}

	var data []byte
	switch exportFormat {
	case "json":
		data, err = earlystop.MarshalSnapshot(snapshot)
	case "pb":
		data, err = earlystop.MarshalSnapshotBinary(snapshot)
	default:
		return fmt.Errorf("unsupported export format: %s", exportFormat)
	}
	if err != nil {
		return err
	}

	if exportOut == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %v", err)
	}
	fmt.Printf("exported format=%s bytes=%d path=%s\n", exportFormat, len(data), exportOut)
	return nil
}
