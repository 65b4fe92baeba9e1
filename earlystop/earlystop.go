// Package earlystop implements the early stopping decision rule used to end
// training once a monitored metric stops improving. The Policy is a pure
// state machine: callers feed it one metric value per monitoring cycle and it
// reports whether training should stop. Persistence, metric routing and loop
// control live in the training and checkpoints packages.
package earlystop

import (
	"fmt"
	"math"
)

// Mode selects the direction of improvement for the monitored metric
type Mode string

const (
	// ModeMin treats lower values as better (losses)
	ModeMin Mode = "min"
	// ModeMax treats higher values as better (accuracy, scores)
	ModeMax Mode = "max"
)

// DefaultMonitor is the metric name used when none is configured
const DefaultMonitor = "val_loss"

// DefaultPatience is the number of non-improving cycles tolerated by default
const DefaultPatience = 3

// Config holds the construction parameters for a Policy
type Config struct {
	Monitor  string  // Metric name resolved by the caller, default "val_loss"
	Mode     Mode    // Improvement direction, default ModeMin
	MinDelta float64 // Minimum change that counts as improvement, must be >= 0
	Patience int     // Consecutive non-improving cycles tolerated, must be >= 0
}

// DefaultConfig returns the conventional setup: watch val_loss in min mode
// with patience 3 and no improvement threshold
func DefaultConfig() Config {
	return Config{
		Monitor:  DefaultMonitor,
		Mode:     ModeMin,
		MinDelta: 0,
		Patience: DefaultPatience,
	}
}

// Policy tracks a single monitored metric and decides when training should
// stop. It performs no I/O and holds no locks; drive it from one goroutine
// and call Update exactly once per monitoring cycle.
type Policy struct {
	cfg Config

	bestValue    float64
	waitCount    int
	stoppedEpoch int
	stopped      bool
	numUpdates   int
}

// New creates a Policy from cfg. An empty Monitor falls back to
// DefaultMonitor and an empty Mode to ModeMin; out-of-range MinDelta,
// Patience or Mode values are rejected.
func New(cfg Config) (*Policy, error) {
	if cfg.Monitor == "" {
		cfg.Monitor = DefaultMonitor
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeMin
	}
	if cfg.Mode != ModeMin && cfg.Mode != ModeMax {
		return nil, fmt.Errorf("invalid mode %q: must be %q or %q", cfg.Mode, ModeMin, ModeMax)
	}
	if cfg.MinDelta < 0 || math.IsNaN(cfg.MinDelta) {
		return nil, fmt.Errorf("min delta must be >= 0, got %g", cfg.MinDelta)
	}
	if cfg.Patience < 0 {
		return nil, fmt.Errorf("patience must be >= 0, got %d", cfg.Patience)
	}

	return &Policy{
		cfg:          cfg,
		bestValue:    initialBest(cfg.Mode),
		stoppedEpoch: -1,
	}, nil
}

// initialBest returns the sentinel any finite first value improves on
func initialBest(mode Mode) float64 {
	if mode == ModeMax {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// Improved reports whether value beats best by more than minDelta under
// mode. A change of exactly minDelta does not qualify, and NaN never
// qualifies. This is the one improvement rule shared by the policy, the
// plateau scheduler and best-checkpoint tracking.
func Improved(value, best, minDelta float64, mode Mode) bool {
	if mode == ModeMax {
		return value > best+minDelta
	}
	return value < best-minDelta
}

// Update feeds one monitored value to the policy and reports whether
// training should stop. An improving value becomes the new best and resets
// the wait counter; anything else increments it. The stop signal fires once
// the counter exceeds Patience and then latches: every later Update returns
// true for the life of the instance, even if the metric recovers. Restore
// is the only way to clear the latch.
func (p *Policy) Update(value float64) bool {
	step := p.numUpdates
	p.numUpdates++

	if Improved(value, p.bestValue, p.cfg.MinDelta, p.cfg.Mode) {
		p.bestValue = value
		p.waitCount = 0
	} else {
		p.waitCount++
		if p.waitCount > p.cfg.Patience && !p.stopped {
			p.stopped = true
			p.stoppedEpoch = step
		}
	}

	return p.stopped
}

// BestValue returns the best monitored value seen so far
func (p *Policy) BestValue() float64 {
	return p.bestValue
}

// WaitCount returns the current run of consecutive non-improving updates
func (p *Policy) WaitCount() int {
	return p.waitCount
}

// StoppedEpoch returns the update index that triggered the stop, or -1 when
// the signal has not fired
func (p *Policy) StoppedEpoch() int {
	return p.stoppedEpoch
}

// Stopped reports whether the stop signal has fired
func (p *Policy) Stopped() bool {
	return p.stopped
}

// NumUpdates returns how many values the policy has consumed
func (p *Policy) NumUpdates() int {
	return p.numUpdates
}

// Monitor returns the configured metric name
func (p *Policy) Monitor() string {
	return p.cfg.Monitor
}

// Mode returns the configured improvement direction
func (p *Policy) Mode() Mode {
	return p.cfg.Mode
}

// Patience returns the configured tolerance for non-improving cycles
func (p *Policy) Patience() int {
	return p.cfg.Patience
}

// MinDelta returns the configured improvement threshold
func (p *Policy) MinDelta() float64 {
	return p.cfg.MinDelta
}
