package earlystop

import (
	"math"
	"strconv"
)

// Snapshot field names as they appear in serialized form
const (
	fieldBestValue    = "best_value"
	fieldWaitCount    = "wait_count"
	fieldMode         = "mode"
	fieldPatience     = "patience"
	fieldMinDelta     = "min_delta"
	fieldStoppedEpoch = "stopped_epoch"
)

// Snapshot is the serializable monitoring state of a Policy. It is a flat
// record so checkpoint writers can embed it directly. Monitor is routing
// configuration rather than decision state and is deliberately absent.
type Snapshot struct {
	BestValue    float64 `json:"best_value"`
	WaitCount    int     `json:"wait_count"`
	Mode         string  `json:"mode"`
	Patience     int     `json:"patience"`
	MinDelta     float64 `json:"min_delta"`
	StoppedEpoch int     `json:"stopped_epoch"`
}

// State returns a copy of the policy's current monitoring state
func (p *Policy) State() Snapshot {
	return Snapshot{
		BestValue:    p.bestValue,
		WaitCount:    p.waitCount,
		Mode:         string(p.cfg.Mode),
		Patience:     p.cfg.Patience,
		MinDelta:     p.cfg.MinDelta,
		StoppedEpoch: p.stoppedEpoch,
	}
}

// Restore overwrites the policy's state from s. The snapshot is
// authoritative: mode, patience and min delta replace the constructor
// values, and a stopped_epoch >= 0 restores the stop signal as fired while
// -1 restores it clear. On a validation failure the policy is left
// untouched and the returned error is an *InvalidStateError.
func (p *Policy) Restore(s Snapshot) error {
	if err := s.validate(); err != nil {
		return err
	}

	p.cfg.Mode = Mode(s.Mode)
	p.cfg.Patience = s.Patience
	p.cfg.MinDelta = s.MinDelta
	p.bestValue = s.BestValue
	p.waitCount = s.WaitCount
	p.stoppedEpoch = s.StoppedEpoch
	p.stopped = s.StoppedEpoch >= 0
	return nil
}

// validate checks the semantic legality of every snapshot field
func (s Snapshot) validate() error {
	switch Mode(s.Mode) {
	case ModeMin, ModeMax:
	default:
		return invalidState(fieldMode, "must be %q or %q, got %q", ModeMin, ModeMax, s.Mode)
	}
	if math.IsNaN(s.BestValue) {
		return invalidState(fieldBestValue, "must not be NaN")
	}
	if s.WaitCount < 0 {
		return invalidState(fieldWaitCount, "must be >= 0, got %d", s.WaitCount)
	}
	if s.Patience < 0 {
		return invalidState(fieldPatience, "must be >= 0, got %d", s.Patience)
	}
	if s.MinDelta < 0 || math.IsNaN(s.MinDelta) {
		return invalidState(fieldMinDelta, "must be >= 0, got %g", s.MinDelta)
	}
	if s.StoppedEpoch < -1 {
		return invalidState(fieldStoppedEpoch, "must be -1 or an update index, got %d", s.StoppedEpoch)
	}
	return nil
}

// Map returns the snapshot as a flat field-name to value mapping, the form
// checkpoint writers embed alongside their own state. A non-finite best
// value is written as its string form ("+Inf", "-Inf") because JSON has no
// infinity literal; SnapshotFromMap reverses this.
func (s Snapshot) Map() map[string]any {
	var best any = s.BestValue
	if math.IsInf(s.BestValue, 0) {
		best = strconv.FormatFloat(s.BestValue, 'g', -1, 64)
	}
	return map[string]any{
		fieldBestValue:    best,
		fieldWaitCount:    s.WaitCount,
		fieldMode:         s.Mode,
		fieldPatience:     s.Patience,
		fieldMinDelta:     s.MinDelta,
		fieldStoppedEpoch: s.StoppedEpoch,
	}
}

// SnapshotFromMap rebuilds a Snapshot from a flat mapping. Every field is
// required; a missing or wrong-typed entry yields an *InvalidStateError
// naming the field. Numbers may arrive as any numeric Go type (JSON
// decoding produces float64), and integer fields reject fractional values.
func SnapshotFromMap(m map[string]any) (Snapshot, error) {
	var s Snapshot
	var err error

	if s.BestValue, err = floatField(m, fieldBestValue); err != nil {
		return Snapshot{}, err
	}
	if s.WaitCount, err = intField(m, fieldWaitCount); err != nil {
		return Snapshot{}, err
	}
	if s.Mode, err = stringField(m, fieldMode); err != nil {
		return Snapshot{}, err
	}
	if s.Patience, err = intField(m, fieldPatience); err != nil {
		return Snapshot{}, err
	}
	if s.MinDelta, err = floatField(m, fieldMinDelta); err != nil {
		return Snapshot{}, err
	}
	if s.StoppedEpoch, err = intField(m, fieldStoppedEpoch); err != nil {
		return Snapshot{}, err
	}
	if err := s.validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// floatField extracts a float64 from m, accepting the numeric types JSON
// and protobuf decoding produce plus the non-finite string forms Map emits
func floatField(m map[string]any, name string) (float64, error) {
	v, ok := m[name]
	if !ok {
		return 0, invalidState(name, "missing")
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || !math.IsInf(f, 0) {
			return 0, invalidState(name, "expected number, got %q", n)
		}
		return f, nil
	default:
		return 0, invalidState(name, "expected number, got %T", v)
	}
}

// intField extracts an int from m, rejecting fractional and non-finite
// values
func intField(m map[string]any, name string) (int, error) {
	f, err := floatField(m, name)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, invalidState(name, "expected integer, got %v", f)
	}
	return int(f), nil
}

// stringField extracts a string from m
func stringField(m map[string]any, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", invalidState(name, "missing")
	}
	str, ok := v.(string)
	if !ok {
		return "", invalidState(name, "expected string, got %T", v)
	}
	return str, nil
}
