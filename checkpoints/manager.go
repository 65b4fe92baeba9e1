package checkpoints

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/tsawler/go-earlystop/earlystop"
)

// ManagerConfig configures checkpoint saving behavior
type ManagerConfig struct {
	SaveDirectory   string           // Directory to save checkpoints
	SaveFrequency   int              // Save every N epochs (0 = disabled)
	SaveBest        bool             // Save a checkpoint when the monitored metric improves
	Monitor         string           // Metric the best checkpoint tracks
	Mode            earlystop.Mode   // Direction of improvement for Monitor
	MaxCheckpoints  int              // Maximum number of periodic checkpoints to keep (0 = unlimited)
	Format          CheckpointFormat // Serialization format
	FilenamePattern string           // Pattern for periodic checkpoint filenames
}

// DefaultManagerConfig returns a sensible default configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SaveDirectory:   "./checkpoints",
		SaveFrequency:   5, // Save every 5 epochs
		SaveBest:        true,
		Monitor:         earlystop.DefaultMonitor,
		Mode:            earlystop.ModeMin,
		MaxCheckpoints:  10,
		Format:          FormatJSON,
		FilenamePattern: "checkpoint_epoch_%d_step_%d",
	}
}

// Manager handles checkpoint saving, rotation and best-checkpoint tracking
type Manager struct {
	config     ManagerConfig
	saver      *CheckpointSaver
	bestMetric float64
	savedFiles []string // Track saved checkpoint files for cleanup
}

// NewManager creates a new checkpoint manager
func NewManager(config ManagerConfig) *Manager {
	if config.Monitor == "" {
		config.Monitor = earlystop.DefaultMonitor
	}
	if config.Mode != earlystop.ModeMin && config.Mode != earlystop.ModeMax {
		config.Mode = earlystop.ModeMin
	}

	best := math.Inf(1)
	if config.Mode == earlystop.ModeMax {
		best = math.Inf(-1)
	}

	return &Manager{
		config:     config,
		saver:      NewCheckpointSaver(config.Format),
		bestMetric: best,
		savedFiles: make([]string, 0),
	}
}

// SaveCheckpoint saves the given checkpoint under a generated filename
func (m *Manager) SaveCheckpoint(checkpoint *Checkpoint, description string) error {
	checkpoint.Metadata.Description = description
	if len(checkpoint.Metadata.Tags) == 0 {
		checkpoint.Metadata.Tags = []string{fmt.Sprintf("epoch_%d", checkpoint.State.Epoch)}
	}

	// Generate filename
	filename := m.generateFilename(checkpoint.State.Epoch, checkpoint.State.Step)
	path := filepath.Join(m.config.SaveDirectory, filename)

	// Ensure directory exists
	if err := m.ensureDirectory(); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %v", err)
	}

	// Save checkpoint
	if err := m.saver.SaveCheckpoint(checkpoint, path); err != nil {
		return fmt.Errorf("failed to save checkpoint: %v", err)
	}

	// Track saved file
	m.savedFiles = append(m.savedFiles, path)

	// Cleanup old checkpoints if needed
	if err := m.cleanupOldCheckpoints(); err != nil {
		// Log warning but don't fail the save operation
		fmt.Printf("Warning: failed to cleanup old checkpoints: %v\n", err)
	}

	return nil
}

// SaveBest saves the checkpoint if value improves on the best seen so far.
// It reports whether a save happened.
func (m *Manager) SaveBest(checkpoint *Checkpoint, value float64) (bool, error) {
	if !m.config.SaveBest {
		return false, nil
	}

	if !earlystop.Improved(value, m.bestMetric, 0, m.config.Mode) {
		return false, nil
	}
	m.bestMetric = value

	checkpoint.State.BestMetric = value
	checkpoint.State.Monitor = m.config.Monitor
	checkpoint.Metadata.Description = fmt.Sprintf("Best checkpoint - %s: %.6f", m.config.Monitor, value)

	if err := m.ensureDirectory(); err != nil {
		return false, fmt.Errorf("failed to create checkpoint directory: %v", err)
	}

	if err := m.saver.SaveCheckpoint(checkpoint, m.BestPath()); err != nil {
		return false, fmt.Errorf("failed to save best checkpoint: %v", err)
	}

	return true, nil
}

// SavePeriodic saves the checkpoint on every SaveFrequency-th completed
// epoch. The epoch is zero-based. It reports whether a save happened.
func (m *Manager) SavePeriodic(checkpoint *Checkpoint, epoch int) (bool, error) {
	if m.config.SaveFrequency <= 0 {
		return false, nil
	}

	if (epoch+1)%m.config.SaveFrequency == 0 {
		description := fmt.Sprintf("Periodic checkpoint - Epoch %d", epoch)
		if err := m.SaveCheckpoint(checkpoint, description); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// LoadCheckpoint loads a checkpoint and adopts its best-metric state when
// it tracks the same monitor as this manager
func (m *Manager) LoadCheckpoint(path string) (*Checkpoint, error) {
	checkpoint, err := m.saver.LoadCheckpoint(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %v", err)
	}

	if checkpoint.State.Monitor == m.config.Monitor && !math.IsNaN(checkpoint.State.BestMetric) {
		if earlystop.Improved(checkpoint.State.BestMetric, m.bestMetric, 0, m.config.Mode) {
			m.bestMetric = checkpoint.State.BestMetric
		}
	}

	return checkpoint, nil
}

// BestPath returns where the best checkpoint is written
func (m *Manager) BestPath() string {
	filename := fmt.Sprintf("best_checkpoint.%s", m.getFileExtension())
	return filepath.Join(m.config.SaveDirectory, filename)
}

// BestMetric returns the best monitored value seen by this manager
func (m *Manager) BestMetric() float64 {
	return m.bestMetric
}

// SavedFiles returns the periodic checkpoint files currently tracked
func (m *Manager) SavedFiles() []string {
	files := make([]string, len(m.savedFiles))
	copy(files, m.savedFiles)
	return files
}

// Helper methods

func (m *Manager) generateFilename(epoch int, step int) string {
	pattern := m.config.FilenamePattern
	if pattern == "" {
		pattern = "checkpoint_epoch_%d_step_%d"
	}

	// Generate the base filename using the pattern
	baseFilename := fmt.Sprintf(pattern, epoch, step)

	// Add the file extension
	filename := fmt.Sprintf("%s.%s", baseFilename, m.getFileExtension())

	return filename
}

func (m *Manager) getFileExtension() string {
	switch m.config.Format {
	case FormatJSON:
		return "json"
	default:
		return "json"
	}
}

func (m *Manager) ensureDirectory() error {
	return os.MkdirAll(m.config.SaveDirectory, 0755)
}

func (m *Manager) cleanupOldCheckpoints() error {
	if m.config.MaxCheckpoints <= 0 {
		return nil // No limit
	}

	if len(m.savedFiles) <= m.config.MaxCheckpoints {
		return nil // Under limit
	}

	// Remove oldest checkpoints
	toRemove := len(m.savedFiles) - m.config.MaxCheckpoints
	for i := 0; i < toRemove; i++ {
		if err := os.Remove(m.savedFiles[i]); err != nil {
			return fmt.Errorf("failed to remove old checkpoint %s: %v", m.savedFiles[i], err)
		}
	}

	// Update tracked files
	m.savedFiles = m.savedFiles[toRemove:]

	return nil
}
