package checkpoints

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/go-earlystop/earlystop"
)

func newTestManager(t *testing.T, mutate func(*ManagerConfig)) *Manager {
	t.Helper()
	config := DefaultManagerConfig()
	config.SaveDirectory = t.TempDir()
	if mutate != nil {
		mutate(&config)
	}
	return NewManager(config)
}

func checkpointAt(epoch int) *Checkpoint {
	return &Checkpoint{
		State: TrainingState{Epoch: epoch, Step: epoch + 1, LearningRate: 0.01},
	}
}

func TestSaveBestTracksImprovement(t *testing.T) {
	manager := newTestManager(t, nil)

	saved, err := manager.SaveBest(checkpointAt(0), 1.0)
	if err != nil {
		t.Fatalf("Failed to save best checkpoint: %v", err)
	}
	if !saved {
		t.Error("Expected first value to be saved as best")
	}

	saved, err = manager.SaveBest(checkpointAt(1), 1.5)
	if err != nil {
		t.Fatalf("Failed to evaluate best checkpoint: %v", err)
	}
	if saved {
		t.Error("Expected worse value to be skipped")
	}

	saved, err = manager.SaveBest(checkpointAt(2), 0.5)
	if err != nil {
		t.Fatalf("Failed to save improved checkpoint: %v", err)
	}
	if !saved {
		t.Error("Expected improved value to be saved")
	}
	if manager.BestMetric() != 0.5 {
		t.Errorf("Expected best metric 0.5, got %f", manager.BestMetric())
	}

	loaded, err := manager.LoadCheckpoint(manager.BestPath())
	if err != nil {
		t.Fatalf("Failed to load best checkpoint: %v", err)
	}
	if loaded.State.Epoch != 2 {
		t.Errorf("Expected best checkpoint from epoch 2, got %d", loaded.State.Epoch)
	}
	if loaded.State.BestMetric != 0.5 {
		t.Errorf("Expected recorded best metric 0.5, got %f", loaded.State.BestMetric)
	}
	if loaded.State.Monitor != earlystop.DefaultMonitor {
		t.Errorf("Expected monitor %s, got %s", earlystop.DefaultMonitor, loaded.State.Monitor)
	}
}

func TestSaveBestMaxMode(t *testing.T) {
	manager := newTestManager(t, func(c *ManagerConfig) {
		c.Monitor = "val_accuracy"
		c.Mode = earlystop.ModeMax
	})

	if saved, _ := manager.SaveBest(checkpointAt(0), 0.70); !saved {
		t.Error("Expected first accuracy to be saved as best")
	}
	if saved, _ := manager.SaveBest(checkpointAt(1), 0.65); saved {
		t.Error("Expected lower accuracy to be skipped in max mode")
	}
	if saved, _ := manager.SaveBest(checkpointAt(2), 0.80); !saved {
		t.Error("Expected higher accuracy to be saved in max mode")
	}
	if manager.BestMetric() != 0.80 {
		t.Errorf("Expected best metric 0.80, got %f", manager.BestMetric())
	}
}

func TestSaveBestDisabled(t *testing.T) {
	manager := newTestManager(t, func(c *ManagerConfig) {
		c.SaveBest = false
	})

	saved, err := manager.SaveBest(checkpointAt(0), 1.0)
	if err != nil {
		t.Fatalf("SaveBest returned error: %v", err)
	}
	if saved {
		t.Error("Expected no save when best saving is disabled")
	}
	if _, err := os.Stat(manager.BestPath()); !os.IsNotExist(err) {
		t.Error("Expected no best checkpoint file on disk")
	}
}

func TestSavePeriodicCadence(t *testing.T) {
	manager := newTestManager(t, func(c *ManagerConfig) {
		c.SaveFrequency = 2
	})

	var savedEpochs []int
	for epoch := 0; epoch < 6; epoch++ {
		saved, err := manager.SavePeriodic(checkpointAt(epoch), epoch)
		if err != nil {
			t.Fatalf("Failed to save periodic checkpoint at epoch %d: %v", epoch, err)
		}
		if saved {
			savedEpochs = append(savedEpochs, epoch)
		}
	}

	expected := []int{1, 3, 5}
	if len(savedEpochs) != len(expected) {
		t.Fatalf("Expected %d periodic saves, got %d", len(expected), len(savedEpochs))
	}
	for i, epoch := range expected {
		if savedEpochs[i] != epoch {
			t.Errorf("Expected save %d at epoch %d, got %d", i, epoch, savedEpochs[i])
		}
	}

	files := manager.SavedFiles()
	if len(files) != 3 {
		t.Fatalf("Expected 3 tracked files, got %d", len(files))
	}
	if !strings.HasSuffix(files[0], "checkpoint_epoch_1_step_2.json") {
		t.Errorf("Unexpected periodic filename: %s", files[0])
	}
}

func TestSavePeriodicDisabled(t *testing.T) {
	manager := newTestManager(t, func(c *ManagerConfig) {
		c.SaveFrequency = 0
	})

	saved, err := manager.SavePeriodic(checkpointAt(4), 4)
	if err != nil {
		t.Fatalf("SavePeriodic returned error: %v", err)
	}
	if saved {
		t.Error("Expected no save when periodic saving is disabled")
	}
}

func TestCleanupOldCheckpoints(t *testing.T) {
	manager := newTestManager(t, func(c *ManagerConfig) {
		c.SaveFrequency = 1
		c.MaxCheckpoints = 2
	})

	for epoch := 0; epoch < 5; epoch++ {
		if _, err := manager.SavePeriodic(checkpointAt(epoch), epoch); err != nil {
			t.Fatalf("Failed to save checkpoint at epoch %d: %v", epoch, err)
		}
	}

	files := manager.SavedFiles()
	if len(files) != 2 {
		t.Fatalf("Expected 2 tracked files after cleanup, got %d", len(files))
	}
	if !strings.HasSuffix(files[0], "checkpoint_epoch_3_step_4.json") {
		t.Errorf("Expected oldest surviving file from epoch 3, got %s", files[0])
	}
	if !strings.HasSuffix(files[1], "checkpoint_epoch_4_step_5.json") {
		t.Errorf("Expected newest file from epoch 4, got %s", files[1])
	}

	// The removed checkpoints should be gone from disk too
	removed := filepath.Join(filepath.Dir(files[0]), "checkpoint_epoch_0_step_1.json")
	if _, err := os.Stat(removed); !os.IsNotExist(err) {
		t.Errorf("Expected old checkpoint %s to be removed", removed)
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			t.Errorf("Expected surviving checkpoint %s on disk: %v", file, err)
		}
	}
}

func TestLoadCheckpointAdoptsBestMetric(t *testing.T) {
	dir := t.TempDir()

	// A previous session wrote a best checkpoint for the same monitor
	writer := newTestManager(t, func(c *ManagerConfig) {
		c.SaveDirectory = dir
	})
	if _, err := writer.SaveBest(checkpointAt(7), 0.4); err != nil {
		t.Fatalf("Failed to save best checkpoint: %v", err)
	}

	manager := newTestManager(t, func(c *ManagerConfig) {
		c.SaveDirectory = dir
	})
	if !math.IsInf(manager.BestMetric(), 1) {
		t.Fatalf("Expected fresh manager to start at +Inf, got %f", manager.BestMetric())
	}

	if _, err := manager.LoadCheckpoint(manager.BestPath()); err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if manager.BestMetric() != 0.4 {
		t.Errorf("Expected loaded best metric 0.4, got %f", manager.BestMetric())
	}

	// A checkpoint tracking a different monitor must not disturb the best
	other := newTestManager(t, func(c *ManagerConfig) {
		c.SaveDirectory = dir
		c.Monitor = "val_accuracy"
		c.Mode = earlystop.ModeMax
	})
	if _, err := other.LoadCheckpoint(manager.BestPath()); err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if !math.IsInf(other.BestMetric(), -1) {
		t.Errorf("Expected mismatched monitor to leave best at -Inf, got %f", other.BestMetric())
	}
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	manager := newTestManager(t, nil)

	_, err := manager.LoadCheckpoint(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("Expected error for missing checkpoint file")
	}
	if !strings.Contains(err.Error(), "failed to load checkpoint") {
		t.Errorf("Expected 'failed to load checkpoint' error, got: %v", err)
	}
}

func TestNewManagerCoercesConfig(t *testing.T) {
	manager := NewManager(ManagerConfig{SaveDirectory: t.TempDir()})

	if manager.config.Monitor != earlystop.DefaultMonitor {
		t.Errorf("Expected default monitor, got %s", manager.config.Monitor)
	}
	if manager.config.Mode != earlystop.ModeMin {
		t.Errorf("Expected min mode, got %s", manager.config.Mode)
	}
	if !math.IsInf(manager.BestMetric(), 1) {
		t.Errorf("Expected +Inf initial best, got %f", manager.BestMetric())
	}
}
