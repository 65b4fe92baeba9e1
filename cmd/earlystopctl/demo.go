package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-earlystop/checkpoints"
	"github.com/tsawler/go-earlystop/earlystop"
	"github.com/tsawler/go-earlystop/tracking"
	"github.com/tsawler/go-earlystop/training"
)

var (
	demoEpochs        int
	demoPatience      int
	demoMinDelta      float64
	demoMonitor       string
	demoMode          string
	demoName          string
	demoSeed          int64
	demoBaseLR        float64
	demoCheckpointDir string
	demoSaveEvery     int
	demoNoProgress    bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Train a synthetic run with early stopping",
	Long: `Demo drives a training loop over a synthetic decaying loss curve.
The run stops as soon as the monitored metric plateaus, and everything
the run produced lands in the selected store:

  earlystopctl demo --epochs 60 --patience 5
  earlystopctl --store sqlite demo --name baseline --checkpoint-dir ./ckpts`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().IntVar(&demoEpochs, "epochs", 60, "maximum training epochs")
	demoCmd.Flags().IntVar(&demoPatience, "patience", 5, "non-improving validation cycles tolerated past the first")
	demoCmd.Flags().Float64Var(&demoMinDelta, "min-delta", 0.001, "minimum change that counts as improvement")
	demoCmd.Flags().StringVar(&demoMonitor, "monitor", earlystop.DefaultMonitor, "validation metric to monitor")
	demoCmd.Flags().StringVar(&demoMode, "mode", "min", "improvement direction: min|max")
	demoCmd.Flags().StringVar(&demoName, "name", "demo", "run name")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 1, "rng seed for the synthetic curve")
	demoCmd.Flags().Float64Var(&demoBaseLR, "lr", 0.1, "base learning rate")
	demoCmd.Flags().StringVar(&demoCheckpointDir, "checkpoint-dir", "", "write checkpoints into this directory")
	demoCmd.Flags().IntVar(&demoSaveEvery, "save-every", 5, "periodic checkpoint cadence in epochs")
	demoCmd.Flags().BoolVar(&demoNoProgress, "no-progress", false, "disable the progress bar")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tracking.CloseIfSupported(store)
	}()

	cfg := earlystop.Config{
		Monitor:  demoMonitor,
		Patience: demoPatience,
		MinDelta: demoMinDelta,
		Mode:     earlystop.Mode(demoMode),
	}

	stopping, err := training.NewEarlyStopping(cfg, training.WithLogger(logger))
	if err != nil {
		return err
	}

	scheduler := training.NewReduceLROnPlateauScheduler(demoMonitor, cfg.Mode, 0.5, 2)
	monitor := training.NewLearningRateMonitor(scheduler, demoBaseLR)
	recorder := training.NewRecorder(store, demoName, cfg)

	// The monitor publishes the learning rate before the stopping and
	// checkpoint callbacks read the cycle metrics
	callbacks := []training.Callback{monitor, stopping}

	var manager *checkpoints.Manager
	if demoCheckpointDir != "" {
		managerConfig := checkpoints.DefaultManagerConfig()
		managerConfig.SaveDirectory = demoCheckpointDir
		managerConfig.SaveFrequency = demoSaveEvery
		managerConfig.Monitor = demoMonitor
		managerConfig.Mode = cfg.Mode
		manager = checkpoints.NewManager(managerConfig)

		checkpointCb, err := training.NewCheckpointCallback(manager, demoMonitor)
		if err != nil {
			return err
		}
		callbacks = append(callbacks, checkpointCb)
	}
	callbacks = append(callbacks, recorder)

	loop, err := training.NewLoop(training.LoopConfig{
		MaxEpochs: demoEpochs,
		Callbacks: callbacks,
		Progress:  !demoNoProgress,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	train, validate := syntheticCurves(demoSeed)

	run, err := loop.Fit(ctx, train, validate)
	if err != nil {
		if failErr := recorder.Fail(context.Background()); failErr != nil {
			logger.Warn("failed to mark run as failed", "error", failErr)
		}
		return err
	}

	rec, found, err := store.GetRun(ctx, recorder.RunID())
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("run %s missing from store after training", recorder.RunID())
	}

	fmt.Printf("run_id=%s name=%s status=%s epochs=%d/%d\n",
		rec.ID, rec.Name, rec.Status, run.Epoch()+1, run.MaxEpochs())
	if rec.BestEpoch >= 0 {
		fmt.Printf("best_%s=%.6f best_epoch=%d\n", rec.Monitor, rec.BestValue, rec.BestEpoch)
	}
	if run.StopRequested() {
		fmt.Printf("stopped_epoch=%d reason=%q\n", run.StoppedEpoch(), run.StopReason())
	}
	if manager != nil {
		fmt.Printf("best_checkpoint=%s\n", manager.BestPath())
	}
	return nil
}

// syntheticCurves returns train and validate functions over a decaying
// loss that bottoms out, so the monitored metric plateaus and the
// stopping policy fires well before the epoch budget
func syntheticCurves(seed int64) (training.TrainFunc, training.ValidateFunc) {
	rng := rand.New(rand.NewSource(seed))

	loss := func(epoch int, noise float64) float64 {
		return 0.35 + 1.8*math.Exp(-0.3*float64(epoch)) + noise
	}

	train := func(epoch int) (training.Metrics, error) {
		return training.Metrics{
			"train_loss": loss(epoch, 0.02*rng.Float64()),
		}, nil
	}
	validate := func(epoch int) (training.Metrics, error) {
		valLoss := loss(epoch, 0.04*rng.Float64())
		accuracy := 1.0 - valLoss/2.5
		if accuracy < 0 {
			accuracy = 0
		}
		return training.Metrics{
			"val_loss":     valLoss,
			"val_accuracy": accuracy,
		}, nil
	}
	return train, validate
}
