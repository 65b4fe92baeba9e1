package training

import (
	"context"
	"fmt"
	"time"

	"github.com/tsawler/go-earlystop/earlystop"
	"github.com/tsawler/go-earlystop/tracking"
)

// Recorder is a callback that mirrors a run and its per-epoch metrics
// into a tracking.Store
type Recorder struct {
	BaseCallback
	store tracking.Store
	rec   tracking.Run
	mode  earlystop.Mode
}

// NewRecorder creates a recorder writing to store, tagged with the
// stopping configuration the run trains under
func NewRecorder(store tracking.Store, name string, cfg earlystop.Config) *Recorder {
	if cfg.Monitor == "" {
		cfg.Monitor = earlystop.DefaultMonitor
	}
	if cfg.Mode == "" {
		cfg.Mode = earlystop.ModeMin
	}
	return &Recorder{
		store: store,
		rec:   tracking.NewRun(name, cfg),
		mode:  cfg.Mode,
	}
}

// Name identifies the recorder in callback state maps
func (r *Recorder) Name() string {
	return "run_recorder"
}

// RunID returns the id the run is stored under
func (r *Recorder) RunID() string {
	return r.rec.ID
}

// OnTrainStart registers the run as running
func (r *Recorder) OnTrainStart(run *Run) error {
	if err := r.store.SaveRun(run.Context(), r.rec); err != nil {
		return fmt.Errorf("failed to record run start: %v", err)
	}
	return nil
}

// OnEpochEnd appends the cycle metrics to the store
func (r *Recorder) OnEpochEnd(run *Run, metrics Metrics) error {
	em := tracking.EpochMetrics{
		RunID:  r.rec.ID,
		Epoch:  run.Epoch(),
		Values: metrics.clone(),
	}
	if err := r.store.AppendEpochMetrics(run.Context(), em); err != nil {
		return fmt.Errorf("failed to record epoch metrics: %v", err)
	}
	return nil
}

// OnTrainEnd finalizes the run record with its outcome and best value
func (r *Recorder) OnTrainEnd(run *Run) error {
	r.rec.FinishedAt = time.Now().UTC()
	if run.StopRequested() {
		r.rec.Status = tracking.StatusEarlyStopped
		r.rec.StoppedEpoch = run.StoppedEpoch()
	} else {
		r.rec.Status = tracking.StatusCompleted
	}
	if best, epoch, ok := run.History().Best(r.rec.Monitor, r.mode); ok {
		r.rec.BestValue = best
		r.rec.BestEpoch = epoch
	}
	if err := r.store.SaveRun(run.Context(), r.rec); err != nil {
		return fmt.Errorf("failed to record run end: %v", err)
	}
	return nil
}

// Fail marks the run as failed, for callers whose training loop returned
// an error before OnTrainEnd could fire
func (r *Recorder) Fail(ctx context.Context) error {
	r.rec.Status = tracking.StatusFailed
	r.rec.FinishedAt = time.Now().UTC()
	if err := r.store.SaveRun(ctx, r.rec); err != nil {
		return fmt.Errorf("failed to record run failure: %v", err)
	}
	return nil
}
