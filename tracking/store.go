// Package tracking persists training runs and their per-epoch metrics so
// stopped runs can be inspected and compared after the fact.
package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tsawler/go-earlystop/earlystop"
)

// Run lifecycle states
const (
	StatusRunning      = "running"
	StatusCompleted    = "completed"
	StatusEarlyStopped = "early_stopped"
	StatusFailed       = "failed"
)

// Run is one recorded training run
type Run struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Monitor       string    `json:"monitor"`
	Mode          string    `json:"mode"`
	Patience      int       `json:"patience"`
	MinDelta      float64   `json:"min_delta"`
	Status        string    `json:"status"`
	StoppedEpoch  int       `json:"stopped_epoch"`
	BestValue     float64   `json:"best_value"`
	BestEpoch     int       `json:"best_epoch"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	SchemaVersion int       `json:"schema_version"`
}

// EpochMetrics is the set of metric values recorded for one epoch of a run
type EpochMetrics struct {
	RunID  string             `json:"run_id"`
	Epoch  int                `json:"epoch"`
	Values map[string]float64 `json:"values"`
}

// NewRun creates a running Run with a fresh id, tagged with the stopping
// configuration it trains under
func NewRun(name string, cfg earlystop.Config) Run {
	return Run{
		ID:            uuid.NewString(),
		Name:          name,
		Monitor:       cfg.Monitor,
		Mode:          string(cfg.Mode),
		Patience:      cfg.Patience,
		MinDelta:      cfg.MinDelta,
		Status:        StatusRunning,
		StoppedEpoch:  -1,
		BestEpoch:     -1,
		StartedAt:     time.Now().UTC(),
		SchemaVersion: CurrentSchemaVersion,
	}
}

// Store defines persistence operations for runs and their metrics
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context) ([]Run, error)
	DeleteRun(ctx context.Context, id string) error
	AppendEpochMetrics(ctx context.Context, metrics EpochMetrics) error
	GetEpochMetrics(ctx context.Context, runID string) ([]EpochMetrics, bool, error)
}
