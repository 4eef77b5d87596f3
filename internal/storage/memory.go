package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// MemoryStore - заглушка RunStore и ResultRepository на картах с мьютексом.
// Используется, когда ни Redis, ни PostgreSQL/SQLite не настроены.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*models.Run
	results map[string]*models.RunResults
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]*models.Run),
		results: make(map[string]*models.RunResults),
	}
}

// ===== RunStore =====

func (m *MemoryStore) SaveRun(ctx context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *run
	m.runs[run.RunID] = &copied
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, models.ErrRunNotFound)
	}
	copied := *run
	return &copied, nil
}

func (m *MemoryStore) UpdateProgress(ctx context.Context, runID string, progress models.RunProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, models.ErrRunNotFound)
	}
	run.Progress = progress
	return nil
}

func (m *MemoryStore) DeleteRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.runs, runID)
	delete(m.results, runID)
	return nil
}

// SetRunTTL в памяти ничего не делает: заглушка живет до конца процесса
func (m *MemoryStore) SetRunTTL(ctx context.Context, runID string, ttlSeconds int) error {
	return nil
}

// ===== ResultRepository =====

func (m *MemoryStore) SaveResults(ctx context.Context, results *models.RunResults) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[results.RunID] = results
	return nil
}

func (m *MemoryStore) GetResults(ctx context.Context, runID string, filter ResultFilter) (*models.RunResults, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.results[runID]
	if !ok {
		return &models.RunResults{RunID: runID}, nil
	}

	filtered := &models.RunResults{RunID: runID}
	for _, rec := range stored.HRV {
		if filter.Match(rec.Participant, string(rec.Method), rec.Segment) {
			filtered.HRV = append(filtered.HRV, rec)
		}
	}
	for _, score := range stored.Quality {
		if filter.Match(score.Participant, score.Method, score.Segment) {
			filtered.Quality = append(filtered.Quality, score)
		}
	}
	for _, index := range stored.Indices {
		if filter.Match(index.Participant, index.Method, "") {
			filtered.Indices = append(filtered.Indices, index)
		}
	}
	for _, score := range stored.Subjective {
		if filter.Match(score.Participant, "", score.Segment) {
			filtered.Subjective = append(filtered.Subjective, score)
		}
	}
	for _, count := range stored.Errors {
		if filter.Match(count.Participant, "", count.Segment) {
			filtered.Errors = append(filtered.Errors, count)
		}
	}
	return filtered, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
