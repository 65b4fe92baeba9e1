package training

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tsawler/go-earlystop/checkpoints"
	"github.com/tsawler/go-earlystop/earlystop"
)

// PayloadFunc produces the opaque payload stored inside a checkpoint,
// typically the caller's serialized model
type PayloadFunc func() (json.RawMessage, error)

// CheckpointCallback writes checkpoints through a checkpoints.Manager as
// validation results arrive. Sibling callback state is captured into every
// checkpoint, so a restored run resumes with its stopping counters intact.
type CheckpointCallback struct {
	BaseCallback
	manager *checkpoints.Manager
	monitor string
	payload PayloadFunc
}

// CheckpointOption configures a CheckpointCallback
type CheckpointOption func(*CheckpointCallback)

// WithPayload attaches a payload producer invoked on every save
func WithPayload(fn PayloadFunc) CheckpointOption {
	return func(c *CheckpointCallback) {
		c.payload = fn
	}
}

// NewCheckpointCallback creates a callback that saves through manager,
// keyed on the given monitored metric
func NewCheckpointCallback(manager *checkpoints.Manager, monitor string, opts ...CheckpointOption) (*CheckpointCallback, error) {
	if manager == nil {
		return nil, fmt.Errorf("checkpoint manager is required")
	}
	if monitor == "" {
		monitor = earlystop.DefaultMonitor
	}

	c := &CheckpointCallback{
		manager: manager,
		monitor: monitor,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the callback in checkpoint state maps
func (c *CheckpointCallback) Name() string {
	return "model_checkpoint"
}

// OnValidationEnd saves best and periodic checkpoints for this cycle
func (c *CheckpointCallback) OnValidationEnd(run *Run, metrics Metrics) error {
	value, ok := metrics[c.monitor]
	if !ok {
		return nil
	}

	checkpoint, err := c.buildCheckpoint(run, metrics)
	if err != nil {
		return err
	}

	if _, err := c.manager.SaveBest(checkpoint, value); err != nil {
		return err
	}
	if _, err := c.manager.SavePeriodic(checkpoint, run.Epoch()); err != nil {
		return err
	}
	return nil
}

// buildCheckpoint assembles a checkpoint from the current cycle
func (c *CheckpointCallback) buildCheckpoint(run *Run, metrics Metrics) (*checkpoints.Checkpoint, error) {
	state := checkpoints.TrainingState{
		Epoch:   run.Epoch(),
		Step:    run.Epoch() + 1,
		Monitor: c.monitor,
	}
	if lr, ok := metrics[MetricLearningRate]; ok {
		state.LearningRate = lr
	}
	if best := c.manager.BestMetric(); !math.IsInf(best, 0) && !math.IsNaN(best) {
		state.BestMetric = best
	}

	checkpoint := &checkpoints.Checkpoint{
		State:          state,
		CallbackStates: CollectStates(run.Callbacks()),
	}

	if c.payload != nil {
		payload, err := c.payload()
		if err != nil {
			return nil, fmt.Errorf("failed to build checkpoint payload: %v", err)
		}
		checkpoint.Payload = payload
	}

	return checkpoint, nil
}

// RestoreCallbackStates pushes a checkpoint's saved callback state back into
// the matching stateful callbacks, typically before resuming a run
func RestoreCallbackStates(checkpoint *checkpoints.Checkpoint, callbacks []Callback) error {
	if checkpoint == nil || checkpoint.CallbackStates == nil {
		return nil
	}
	for _, cb := range callbacks {
		stateful, ok := cb.(StatefulCallback)
		if !ok {
			continue
		}
		state, ok := checkpoint.CallbackStates[cb.Name()]
		if !ok {
			continue
		}
		if err := stateful.LoadStateMap(state); err != nil {
			return fmt.Errorf("failed to restore callback %s: %v", cb.Name(), err)
		}
	}
	return nil
}
