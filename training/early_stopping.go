package training

import (
	"fmt"
	"log/slog"

	"github.com/tsawler/go-earlystop/earlystop"
)

// EarlyStoppingName keys the callback's persisted state in checkpoints
const EarlyStoppingName = "early_stopping"

// MissingMetricPolicy decides what happens when the monitored metric is
// absent from a validation cycle
type MissingMetricPolicy int

const (
	// MissingError fails the run when the monitored metric is absent
	MissingError MissingMetricPolicy = iota
	// MissingSkip ignores the cycle and leaves the policy untouched
	MissingSkip
)

// EarlyStopping is the callback form of the earlystop policy: it resolves
// the monitored metric from each validation cycle, feeds it to the policy,
// and requests a stop once patience runs out. Its state persists through
// checkpoints via StatefulCallback.
type EarlyStopping struct {
	BaseCallback
	policy  *earlystop.Policy
	missing MissingMetricPolicy
	logger  *slog.Logger
}

// EarlyStoppingOption customizes an EarlyStopping callback
type EarlyStoppingOption func(*EarlyStopping)

// WithLogger enables improvement and stop logging through logger
func WithLogger(logger *slog.Logger) EarlyStoppingOption {
	return func(es *EarlyStopping) {
		es.logger = logger
	}
}

// WithMissingMetric sets the reaction to validation cycles that lack the
// monitored metric; the default is MissingError
func WithMissingMetric(policy MissingMetricPolicy) EarlyStoppingOption {
	return func(es *EarlyStopping) {
		es.missing = policy
	}
}

// NewEarlyStopping creates the callback around a fresh policy built from cfg
func NewEarlyStopping(cfg earlystop.Config, opts ...EarlyStoppingOption) (*EarlyStopping, error) {
	policy, err := earlystop.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create early stopping policy: %v", err)
	}

	es := &EarlyStopping{policy: policy}
	for _, opt := range opts {
		opt(es)
	}
	return es, nil
}

// Name implements Callback
func (es *EarlyStopping) Name() string {
	return EarlyStoppingName
}

// Policy exposes the underlying decision state
func (es *EarlyStopping) Policy() *earlystop.Policy {
	return es.policy
}

// OnValidationEnd feeds the monitored metric to the policy and requests a
// stop when the policy signals one
func (es *EarlyStopping) OnValidationEnd(run *Run, metrics Metrics) error {
	monitor := es.policy.Monitor()
	value, ok := metrics[monitor]
	if !ok {
		if es.missing == MissingSkip {
			if es.logger != nil {
				es.logger.Warn("monitored metric missing, skipping cycle",
					"monitor", monitor, "epoch", run.Epoch())
			}
			return nil
		}
		return fmt.Errorf("monitored metric %q not found in validation metrics", monitor)
	}

	prevBest := es.policy.BestValue()
	stop := es.policy.Update(value)

	if es.logger != nil && es.policy.BestValue() != prevBest {
		es.logger.Info("monitored metric improved",
			"monitor", monitor, "epoch", run.Epoch(), "best", es.policy.BestValue())
	}

	if stop && !run.StopRequested() {
		reason := fmt.Sprintf("%s did not improve beyond %g for more than %d epochs",
			monitor, es.policy.BestValue(), es.policy.Patience())
		if es.logger != nil {
			es.logger.Info("early stopping triggered",
				"monitor", monitor, "epoch", run.Epoch(), "best", es.policy.BestValue(),
				"patience", es.policy.Patience())
		}
		run.RequestStop(reason)
	}
	return nil
}

// StateMap implements StatefulCallback
func (es *EarlyStopping) StateMap() map[string]any {
	return es.policy.State().Map()
}

// LoadStateMap implements StatefulCallback. Malformed state surfaces as an
// *earlystop.InvalidStateError.
func (es *EarlyStopping) LoadStateMap(state map[string]any) error {
	snap, err := earlystop.SnapshotFromMap(state)
	if err != nil {
		return err
	}
	return es.policy.Restore(snap)
}
