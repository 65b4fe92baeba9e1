package tracking

import (
	"errors"
	"math"
	"testing"

	"github.com/tsawler/go-earlystop/earlystop"
)

func TestRunCodecRoundTrip(t *testing.T) {
	run := NewRun("codec-test", earlystop.Config{
		Monitor:  "val_loss",
		Patience: 2,
		MinDelta: 0.05,
		Mode:     earlystop.ModeMin,
	})
	run.Status = StatusEarlyStopped
	run.StoppedEpoch = 9
	run.BestValue = 0.31
	run.BestEpoch = 6

	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("Failed to encode run: %v", err)
	}

	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("Failed to decode run: %v", err)
	}
	if decoded.ID != run.ID || decoded.Name != run.Name {
		t.Errorf("Identity mismatch: got %+v", decoded)
	}
	if decoded.Monitor != "val_loss" || decoded.Mode != "min" || decoded.Patience != 2 || decoded.MinDelta != 0.05 {
		t.Errorf("Stopping config mismatch: got %+v", decoded)
	}
	if decoded.Status != StatusEarlyStopped || decoded.StoppedEpoch != 9 {
		t.Errorf("Outcome mismatch: got %+v", decoded)
	}
	if decoded.BestValue != 0.31 || decoded.BestEpoch != 6 {
		t.Errorf("Best tracking mismatch: got %+v", decoded)
	}
	if !decoded.StartedAt.Equal(run.StartedAt) {
		t.Errorf("StartedAt mismatch: expected %v, got %v", run.StartedAt, decoded.StartedAt)
	}
}

func TestDecodeRunRejectsSchemaMismatch(t *testing.T) {
	run := NewRun("old-schema", earlystop.DefaultConfig())
	run.SchemaVersion = CurrentSchemaVersion + 1

	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("Failed to encode run: %v", err)
	}

	_, err = DecodeRun(data)
	if err == nil {
		t.Fatal("Expected schema mismatch error")
	}
	if !errors.Is(err, ErrSchemaVersion) {
		t.Errorf("Expected ErrSchemaVersion, got: %v", err)
	}
}

func TestDecodeRunRejectsGarbage(t *testing.T) {
	if _, err := DecodeRun([]byte("{not json")); err == nil {
		t.Error("Expected error for malformed payload")
	}
}

func TestEncodeEpochMetricsDropsNonFinite(t *testing.T) {
	em := EpochMetrics{
		RunID: "r1",
		Epoch: 3,
		Values: map[string]float64{
			"val_loss":     0.42,
			"diverged":     math.NaN(),
			"pos_overflow": math.Inf(1),
			"neg_overflow": math.Inf(-1),
		},
	}

	data, err := EncodeEpochMetrics(em)
	if err != nil {
		t.Fatalf("Failed to encode metrics: %v", err)
	}

	decoded, err := DecodeEpochMetrics(data)
	if err != nil {
		t.Fatalf("Failed to decode metrics: %v", err)
	}
	if decoded.RunID != "r1" || decoded.Epoch != 3 {
		t.Errorf("Identity mismatch: got %+v", decoded)
	}
	if len(decoded.Values) != 1 {
		t.Errorf("Expected only the finite value to survive, got %v", decoded.Values)
	}
	if decoded.Values["val_loss"] != 0.42 {
		t.Errorf("Expected val_loss 0.42, got %f", decoded.Values["val_loss"])
	}

	// The caller's map is left alone
	if len(em.Values) != 4 {
		t.Errorf("Encoding mutated the input map: %v", em.Values)
	}
}
