package storage

import (
	"context"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// RunStore хранит состояние активных прогонов анализа (Infrastructure Layer).
// Состояние живое: статус и счетчики прогресса обновляются по ходу прогона
// и истекают по TTL после завершения.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	UpdateProgress(ctx context.Context, runID string, progress models.RunProgress) error
	DeleteRun(ctx context.Context, runID string) error
	SetRunTTL(ctx context.Context, runID string, ttlSeconds int) error
}

// ResultFilter сужает выборку результатов прогона
type ResultFilter struct {
	Participant string
	Method      string
	Segment     string
}

// Match проверяет строку результата на соответствие фильтру
func (f ResultFilter) Match(participant, method, segment string) bool {
	if f.Participant != "" && f.Participant != participant {
		return false
	}
	if f.Method != "" && f.Method != method {
		return false
	}
	if f.Segment != "" && f.Segment != segment {
		return false
	}
	return true
}

// ResultRepository архивирует результаты завершённых прогонов
type ResultRepository interface {
	SaveRun(ctx context.Context, run *models.Run) error
	SaveResults(ctx context.Context, results *models.RunResults) error
	GetResults(ctx context.Context, runID string, filter ResultFilter) (*models.RunResults, error)
	Close() error
}
