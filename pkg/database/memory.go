package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dev/bravebird/storefront-e2e/pkg/models"
)

// MemoryStore is a Store kept in process memory. It backs the API when no
// MySQL DSN is configured, and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]models.SuiteRun
	results map[string][]models.ScenarioResult
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]models.SuiteRun),
		results: make(map[string][]models.ScenarioResult),
	}
}

func (m *MemoryStore) CreateRun(_ context.Context, run *models.SuiteRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	cp := *run
	cp.Results = nil
	m.runs[run.ID] = cp
	return nil
}

func (m *MemoryStore) UpdateRun(_ context.Context, run *models.SuiteRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("run %s not found", run.ID)
	}
	cp := *run
	cp.Results = nil
	m.runs[run.ID] = cp
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (*models.SuiteRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	run.Results = append([]models.ScenarioResult(nil), m.results[id]...)
	return &run, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]models.SuiteRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]models.SuiteRun, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		a, b := runs[i].StartedAt, runs[j].StartedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStore) SaveResult(_ context.Context, result *models.ScenarioResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.results[result.RunID]
	for i := range list {
		if list[i].ID == result.ID {
			list[i] = *result
			return nil
		}
	}
	m.results[result.RunID] = append(list, *result)
	return nil
}

func (m *MemoryStore) GetResults(_ context.Context, runID string) ([]models.ScenarioResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ScenarioResult(nil), m.results[runID]...), nil
}

func (m *MemoryStore) Close() error { return nil }
