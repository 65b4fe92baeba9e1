package training

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// TrainFunc runs one training epoch and returns its metrics
type TrainFunc func(epoch int) (Metrics, error)

// ValidateFunc runs one validation pass and returns its metrics
type ValidateFunc func(epoch int) (Metrics, error)

// LoopConfig holds configuration for a training Loop
type LoopConfig struct {
	MaxEpochs      int          // Epoch budget, must be > 0
	ValidateEvery  int          // Run validation every N epochs (default 1)
	Callbacks      []Callback   // Fired in order on every hook
	Progress       bool         // Render a progress bar while training
	ProgressWriter io.Writer    // Destination for the bar (default stdout)
	Logger         *slog.Logger // Optional; nil disables logging
}

// Loop drives epochs, validation cadence and callbacks around
// caller-supplied step functions. Model computation never enters this
// package.
type Loop struct {
	config    LoopConfig
	callbacks []Callback
	logger    *slog.Logger
}

// NewLoop creates a Loop from config
func NewLoop(config LoopConfig) (*Loop, error) {
	if config.MaxEpochs <= 0 {
		return nil, fmt.Errorf("max epochs must be > 0, got %d", config.MaxEpochs)
	}
	if config.ValidateEvery <= 0 {
		config.ValidateEvery = 1
	}
	return &Loop{
		config:    config,
		callbacks: config.Callbacks,
		logger:    config.Logger,
	}, nil
}

// Run is the mutable state of one Fit execution, shared with callbacks
type Run struct {
	ctx           context.Context
	callbacks     []Callback
	epoch         int
	maxEpochs     int
	stoppedEpoch  int
	stopRequested bool
	stopReason    string
	lastMetrics   Metrics
	history       *MetricHistory
	startedAt     time.Time
}

// Context returns the context the run was started with
func (r *Run) Context() context.Context {
	return r.ctx
}

// Callbacks returns the callbacks attached to this run
func (r *Run) Callbacks() []Callback {
	return r.callbacks
}

// Epoch returns the current zero-based epoch
func (r *Run) Epoch() int {
	return r.epoch
}

// MaxEpochs returns the epoch budget
func (r *Run) MaxEpochs() int {
	return r.maxEpochs
}

// StoppedEpoch returns the epoch whose cycle requested the stop, or -1
func (r *Run) StoppedEpoch() int {
	return r.stoppedEpoch
}

// StopRequested reports whether a callback has asked to end the run
func (r *Run) StopRequested() bool {
	return r.stopRequested
}

// StopReason returns the first stop reason given, or ""
func (r *Run) StopReason() string {
	return r.stopReason
}

// RequestStop asks the loop to end the run after the current epoch. The
// first reason wins; later requests are no-ops.
func (r *Run) RequestStop(reason string) {
	if r.stopRequested {
		return
	}
	r.stopRequested = true
	r.stopReason = reason
}

// LastMetrics returns the merged metrics of the most recent cycle
func (r *Run) LastMetrics() Metrics {
	return r.lastMetrics.clone()
}

// History returns the per-epoch metric record of this run
func (r *Run) History() *MetricHistory {
	return r.history
}

// Duration returns the wall time since the run started
func (r *Run) Duration() time.Duration {
	return time.Since(r.startedAt)
}

// Fit runs up to MaxEpochs epochs, driving validation and callbacks, and
// returns the completed Run. It ends early when a callback requests a stop
// or ctx is cancelled; the Run it returns is valid in either case.
func (l *Loop) Fit(ctx context.Context, train TrainFunc, validate ValidateFunc) (*Run, error) {
	if train == nil {
		return nil, fmt.Errorf("train function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	run := &Run{
		ctx:          ctx,
		callbacks:    l.callbacks,
		maxEpochs:    l.config.MaxEpochs,
		stoppedEpoch: -1,
		history:      NewMetricHistory(),
		startedAt:    time.Now(),
	}

	var bar *ProgressBar
	if l.config.Progress {
		bar = NewProgressBar("Training", l.config.MaxEpochs)
		if l.config.ProgressWriter != nil {
			bar.SetWriter(l.config.ProgressWriter)
		}
	}

	if l.logger != nil {
		l.logger.Info("starting training", "max_epochs", l.config.MaxEpochs,
			"validate_every", l.config.ValidateEvery)
	}

	if err := l.fireTrainStart(run); err != nil {
		return run, err
	}

	for epoch := 0; epoch < l.config.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		run.epoch = epoch

		// Training phase
		cycle, err := train(epoch)
		if err != nil {
			return run, fmt.Errorf("training epoch %d failed: %v", epoch, err)
		}
		cycle = cycle.clone()

		// Validation phase
		if validate != nil && (epoch+1)%l.config.ValidateEvery == 0 {
			valMetrics, err := validate(epoch)
			if err != nil {
				return run, fmt.Errorf("validation at epoch %d failed: %v", epoch, err)
			}
			for name, value := range valMetrics {
				cycle[name] = value
			}

			if err := l.fireValidationEnd(run, cycle); err != nil {
				return run, err
			}
		}

		if err := l.fireEpochEnd(run, cycle); err != nil {
			return run, err
		}

		// Record the cycle after callbacks, so metrics they publish land
		// in the history too
		run.lastMetrics = cycle
		run.history.Record(epoch, cycle)

		if bar != nil {
			bar.Update(epoch+1, cycle)
		}
		if l.logger != nil {
			l.logger.Debug("epoch complete", "epoch", epoch)
		}

		if run.stopRequested {
			run.stoppedEpoch = epoch
			if bar != nil {
				bar.FinishEarly(epoch, run.stopReason)
			}
			if l.logger != nil {
				l.logger.Info("stopping early", "epoch", epoch, "reason", run.stopReason)
			}
			break
		}
	}

	if bar != nil && !run.stopRequested {
		bar.Finish()
	}

	if err := l.fireTrainEnd(run); err != nil {
		return run, err
	}

	if l.logger != nil {
		l.logger.Info("training finished", "epochs", run.epoch+1,
			"early_stopped", run.stopRequested, "duration", run.Duration())
	}
	return run, nil
}

// fireTrainStart invokes OnTrainStart on every callback in order
func (l *Loop) fireTrainStart(run *Run) error {
	for _, cb := range l.callbacks {
		if err := cb.OnTrainStart(run); err != nil {
			return fmt.Errorf("callback %s failed on train start: %v", cb.Name(), err)
		}
	}
	return nil
}

// fireValidationEnd invokes OnValidationEnd on every callback in order
func (l *Loop) fireValidationEnd(run *Run, metrics Metrics) error {
	for _, cb := range l.callbacks {
		if err := cb.OnValidationEnd(run, metrics); err != nil {
			return fmt.Errorf("callback %s failed on validation end: %v", cb.Name(), err)
		}
	}
	return nil
}

// fireEpochEnd invokes OnEpochEnd on every callback in order
func (l *Loop) fireEpochEnd(run *Run, metrics Metrics) error {
	for _, cb := range l.callbacks {
		if err := cb.OnEpochEnd(run, metrics); err != nil {
			return fmt.Errorf("callback %s failed on epoch end: %v", cb.Name(), err)
		}
	}
	return nil
}

// fireTrainEnd invokes OnTrainEnd on every callback in order
func (l *Loop) fireTrainEnd(run *Run) error {
	for _, cb := range l.callbacks {
		if err := cb.OnTrainEnd(run); err != nil {
			return fmt.Errorf("callback %s failed on train end: %v", cb.Name(), err)
		}
	}
	return nil
}
