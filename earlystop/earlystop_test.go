package earlystop

import (
	"math"
	"testing"
)

// feedUntilStop feeds values in order and returns the index at which the
// stop signal first fired, or -1 if it never did
func feedUntilStop(t *testing.T, p *Policy, values []float64) int {
	t.Helper()
	for i, v := range values {
		if p.Update(v) {
			return i
		}
	}
	return -1
}

func TestUpdateStopIndex(t *testing.T) {
	testCases := []struct {
		name     string
		values   []float64
		patience int
		minDelta float64
		mode     Mode
		wantStop int
	}{
		{
			name:     "plateau after single improvement",
			values:   []float64{6, 5, 5, 5, 5, 5},
			patience: 3,
			mode:     ModeMin,
			wantStop: 5,
		},
		{
			name:     "spike then plateau",
			values:   []float64{6, 5, 6, 5, 5, 5},
			patience: 3,
			mode:     ModeMin,
			wantStop: 5,
		},
		{
			name:     "short patience",
			values:   []float64{6, 5, 4, 4, 4, 3},
			patience: 1,
			mode:     ModeMin,
			wantStop: 4,
		},
		{
			name:     "recovering metric keeps training",
			values:   []float64{6, 5, 4, 4, 3, 3},
			patience: 1,
			mode:     ModeMin,
			wantStop: -1,
		},
		{
			name:     "steadily improving never stops",
			values:   []float64{6, 5, 4, 3, 2, 1},
			patience: 0,
			mode:     ModeMin,
			wantStop: -1,
		},
		{
			name:     "zero patience stops on first flat value",
			values:   []float64{5, 5},
			patience: 0,
			mode:     ModeMin,
			wantStop: 1,
		},
		{
			name:     "max mode plateau",
			values:   []float64{0.5, 0.7, 0.7, 0.7, 0.7},
			patience: 2,
			mode:     ModeMax,
			wantStop: 4,
		},
		{
			name:     "max mode improving never stops",
			values:   []float64{0.1, 0.2, 0.3, 0.4},
			patience: 0,
			mode:     ModeMax,
			wantStop: -1,
		},
		{
			name:     "min delta swallows small improvements",
			values:   []float64{10, 9.8, 9.6, 9.4},
			patience: 1,
			minDelta: 0.5,
			mode:     ModeMin,
			wantStop: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(Config{Mode: tc.mode, MinDelta: tc.minDelta, Patience: tc.patience})
			if err != nil {
				t.Fatalf("Failed to create policy: %v", err)
			}

			got := feedUntilStop(t, p, tc.values)
			if got != tc.wantStop {
				t.Errorf("expected stop at index %d, got %d", tc.wantStop, got)
			}
			if tc.wantStop >= 0 {
				if !p.Stopped() {
					t.Error("expected Stopped() to report true after trigger")
				}
				if p.StoppedEpoch() != tc.wantStop {
					t.Errorf("expected StoppedEpoch %d, got %d", tc.wantStop, p.StoppedEpoch())
				}
			} else {
				if p.Stopped() {
					t.Error("expected Stopped() to report false")
				}
				if p.StoppedEpoch() != -1 {
					t.Errorf("expected StoppedEpoch -1, got %d", p.StoppedEpoch())
				}
			}
		})
	}
}

func TestNonImprovingStopsAfterPatiencePlusOne(t *testing.T) {
	for patience := 0; patience <= 5; patience++ {
		p, err := New(Config{Patience: patience})
		if err != nil {
			t.Fatalf("Failed to create policy: %v", err)
		}

		// First value improves on +Inf, then the metric goes flat
		values := make([]float64, patience+2)
		for i := range values {
			values[i] = 1.0
		}

		got := feedUntilStop(t, p, values)
		want := patience + 1
		if got != want {
			t.Errorf("patience %d: expected stop at index %d, got %d", patience, want, got)
		}
	}
}

func TestFirstUpdateAlwaysImproves(t *testing.T) {
	testCases := []struct {
		name  string
		mode  Mode
		value float64
	}{
		{"min mode large value", ModeMin, 1e12},
		{"min mode negative value", ModeMin, -1e12},
		{"max mode small value", ModeMax, -1e12},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(Config{Mode: tc.mode, Patience: 0})
			if err != nil {
				t.Fatalf("Failed to create policy: %v", err)
			}

			if p.Update(tc.value) {
				t.Error("first update should never stop")
			}
			if p.BestValue() != tc.value {
				t.Errorf("expected best value %g, got %g", tc.value, p.BestValue())
			}
			if p.WaitCount() != 0 {
				t.Errorf("expected wait count 0, got %d", p.WaitCount())
			}
		})
	}
}

func TestMinDeltaBoundaryIsStrict(t *testing.T) {
	p, err := New(Config{MinDelta: 0.5, Patience: 10})
	if err != nil {
		t.Fatalf("Failed to create policy: %v", err)
	}

	p.Update(10)

	// Improving by exactly MinDelta does not qualify
	p.Update(9.5)
	if p.BestValue() != 10 {
		t.Errorf("expected best to stay 10 after exact-delta change, got %g", p.BestValue())
	}
	if p.WaitCount() != 1 {
		t.Errorf("expected wait count 1, got %d", p.WaitCount())
	}

	// Anything past the threshold does
	p.Update(9.4999)
	if p.BestValue() != 9.4999 {
		t.Errorf("expected best 9.4999, got %g", p.BestValue())
	}
	if p.WaitCount() != 0 {
		t.Errorf("expected wait count reset to 0, got %d", p.WaitCount())
	}
}

func TestStopSignalLatches(t *testing.T) {
	p, err := New(Config{Patience: 0})
	if err != nil {
		t.Fatalf("Failed to create policy: %v", err)
	}

	p.Update(5)
	if !p.Update(5) {
		t.Fatal("expected stop at second flat value with zero patience")
	}
	stoppedAt := p.StoppedEpoch()

	// A recovery after the trigger updates counters but not the signal
	if !p.Update(1) {
		t.Error("expected stop signal to stay latched after improvement")
	}
	if p.BestValue() != 1 {
		t.Errorf("expected best value to keep tracking, got %g", p.BestValue())
	}
	if p.WaitCount() != 0 {
		t.Errorf("expected wait count to reset on improvement, got %d", p.WaitCount())
	}
	if p.StoppedEpoch() != stoppedAt {
		t.Errorf("expected StoppedEpoch to stay %d, got %d", stoppedAt, p.StoppedEpoch())
	}
}

func TestNaNNeverImproves(t *testing.T) {
	p, err := New(Config{Patience: 1})
	if err != nil {
		t.Fatalf("Failed to create policy: %v", err)
	}

	p.Update(5)
	nan := math.NaN()
	if p.Update(nan) {
		t.Fatal("expected no stop after one NaN")
	}
	if p.WaitCount() != 1 {
		t.Errorf("expected wait count 1 after NaN, got %d", p.WaitCount())
	}
	if !p.Update(nan) {
		t.Error("expected NaN streak to exhaust patience")
	}
	if p.BestValue() != 5 {
		t.Errorf("expected best to remain 5, got %g", p.BestValue())
	}
}

func TestNaNFirstValueNeverBecomesBest(t *testing.T) {
	p, err := New(Config{Patience: 5})
	if err != nil {
		t.Fatalf("Failed to create policy: %v", err)
	}

	p.Update(math.NaN())
	if !math.IsInf(p.BestValue(), 1) {
		t.Errorf("expected best to remain +Inf, got %g", p.BestValue())
	}
	if p.WaitCount() != 1 {
		t.Errorf("expected wait count 1, got %d", p.WaitCount())
	}

	// A finite value afterwards still counts as the first improvement
	p.Update(3)
	if p.BestValue() != 3 {
		t.Errorf("expected best 3, got %g", p.BestValue())
	}
}

func TestNewValidation(t *testing.T) {
	testCases := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"explicit min", Config{Mode: ModeMin, Patience: 1}, false},
		{"explicit max", Config{Mode: ModeMax}, false},
		{"unknown mode", Config{Mode: "auto"}, true},
		{"negative patience", Config{Patience: -1}, true},
		{"negative min delta", Config{MinDelta: -0.1}, true},
		{"nan min delta", Config{MinDelta: math.NaN()}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.config)
			if tc.wantErr {
				if err == nil {
					t.Error("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if p.Monitor() == "" {
				t.Error("expected monitor to be defaulted")
			}
			if p.Mode() != ModeMin && p.Mode() != ModeMax {
				t.Errorf("expected a concrete mode, got %q", p.Mode())
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Monitor != DefaultMonitor {
		t.Errorf("expected monitor %q, got %q", DefaultMonitor, cfg.Monitor)
	}
	if cfg.Mode != ModeMin {
		t.Errorf("expected mode %q, got %q", ModeMin, cfg.Mode)
	}
	if cfg.Patience != DefaultPatience {
		t.Errorf("expected patience %d, got %d", DefaultPatience, cfg.Patience)
	}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create policy from defaults: %v", err)
	}
	if !math.IsInf(p.BestValue(), 1) {
		t.Errorf("expected initial best +Inf, got %g", p.BestValue())
	}
}

func TestImproved(t *testing.T) {
	testCases := []struct {
		name     string
		value    float64
		best     float64
		minDelta float64
		mode     Mode
		want     bool
	}{
		{"min lower is better", 4, 5, 0, ModeMin, true},
		{"min equal is not", 5, 5, 0, ModeMin, false},
		{"min higher is not", 6, 5, 0, ModeMin, false},
		{"min exact delta is not", 9.5, 10, 0.5, ModeMin, false},
		{"min beyond delta is", 9.49, 10, 0.5, ModeMin, true},
		{"max higher is better", 6, 5, 0, ModeMax, true},
		{"max equal is not", 5, 5, 0, ModeMax, false},
		{"max exact delta is not", 10.5, 10, 0.5, ModeMax, false},
		{"nan is never better", math.NaN(), 5, 0, ModeMin, false},
		{"first value beats +Inf", 100, math.Inf(1), 0, ModeMin, true},
		{"first value beats -Inf", -100, math.Inf(-1), 0, ModeMax, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Improved(tc.value, tc.best, tc.minDelta, tc.mode)
			if got != tc.want {
				t.Errorf("Improved(%g, %g, %g, %q): expected %v, got %v",
					tc.value, tc.best, tc.minDelta, tc.mode, tc.want, got)
			}
		})
	}
}
