package tracking

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]Run
	metrics     map[string][]EpochMetrics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]Run)
	s.metrics = make(map[string][]EpochMetrics)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Run{}, false, errors.New("store is not initialized")
	}
	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errors.New("store is not initialized")
	}
	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	// Newest first, id as tiebreaker so the order is stable
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	delete(s.runs, id)
	delete(s.metrics, id)
	return nil
}

func (s *MemoryStore) AppendEpochMetrics(_ context.Context, metrics EpochMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	values := make(map[string]float64, len(metrics.Values))
	for name, value := range metrics.Values {
		values[name] = value
	}
	metrics.Values = values
	s.metrics[metrics.RunID] = append(s.metrics[metrics.RunID], metrics)
	return nil
}

func (s *MemoryStore) GetEpochMetrics(_ context.Context, runID string) ([]EpochMetrics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, errors.New("store is not initialized")
	}
	recorded, ok := s.metrics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]EpochMetrics, 0, len(recorded))
	for _, em := range recorded {
		values := make(map[string]float64, len(em.Values))
		for name, value := range em.Values {
			values[name] = value
		}
		em.Values = values
		copied = append(copied, em)
	}
	return copied, true, nil
}
