// Package training provides the loop harness around the earlystop policy:
// lifecycle callbacks, metric history, checkpoint integration, learning rate
// scheduling and progress display. Model computation stays outside; the loop
// drives caller-supplied step functions.
package training

// Metrics holds one monitoring cycle's named scalar values, as produced by
// the train and validation steps and consumed by callbacks
type Metrics map[string]float64

// clone returns an independent copy of m
func (m Metrics) clone() Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Callback receives lifecycle hooks from the training loop. Hooks fire in
// callback registration order, and an error from any hook aborts the run.
// Implementations embed BaseCallback and override what they need.
type Callback interface {
	// Name identifies the callback; it keys persisted callback state
	Name() string

	// OnTrainStart fires once before the first epoch
	OnTrainStart(run *Run) error

	// OnEpochEnd fires after every epoch with the cycle's merged metrics
	OnEpochEnd(run *Run, metrics Metrics) error

	// OnValidationEnd fires exactly once per validation pass
	OnValidationEnd(run *Run, metrics Metrics) error

	// OnTrainEnd fires once after the loop finishes, stopped early or not
	OnTrainEnd(run *Run) error
}

// StatefulCallback is implemented by callbacks whose state rides inside
// checkpoints and survives a resume
type StatefulCallback interface {
	Callback

	// StateMap returns the callback's persistable state as a flat mapping
	StateMap() map[string]any

	// LoadStateMap restores state previously produced by StateMap
	LoadStateMap(state map[string]any) error
}

// BaseCallback provides no-op implementations of every hook except Name
type BaseCallback struct{}

func (BaseCallback) OnTrainStart(*Run) error             { return nil }
func (BaseCallback) OnEpochEnd(*Run, Metrics) error      { return nil }
func (BaseCallback) OnValidationEnd(*Run, Metrics) error { return nil }
func (BaseCallback) OnTrainEnd(*Run) error               { return nil }

// CollectStates gathers the persisted state of every stateful callback,
// keyed by callback name
func CollectStates(callbacks []Callback) map[string]map[string]any {
	states := make(map[string]map[string]any)
	for _, cb := range callbacks {
		if sc, ok := cb.(StatefulCallback); ok {
			states[cb.Name()] = sc.StateMap()
		}
	}
	return states
}
