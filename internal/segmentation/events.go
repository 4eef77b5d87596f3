package segmentation

import (
	"strings"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

const (
	beginSuffix = "_begin"
	endSuffix   = "_end"
)

// eventIndex содержит уникальные метки журнала в порядке первого появления
// и время первого появления каждой метки
type eventIndex struct {
	labels  []string
	firstTS map[string]int64
}

func newEventIndex(entries []models.EventEntry) *eventIndex {
	index := &eventIndex{
		firstTS: make(map[string]int64),
	}
	for _, entry := range entries {
		if _, seen := index.firstTS[entry.Label]; seen {
			continue
		}
		index.labels = append(index.labels, entry.Label)
		index.firstTS[entry.Label] = entry.TimestampMS
	}
	return index
}

func (i *eventIndex) timestamp(label string) (int64, bool) {
	ts, ok := i.firstTS[label]
	return ts, ok
}

// firstToken возвращает первый фрагмент имени до подчеркивания
func firstToken(name string) string {
	if idx := strings.Index(name, "_"); idx >= 0 {
		return name[:idx]
	}
	return name
}

// conditionFromToken распознает код условия в фрагменте метки
func conditionFromToken(token string) (models.Condition, bool) {
	switch models.Condition(token) {
	case models.ConditionControl, models.ConditionZeroBack, models.ConditionTwoBack:
		return models.Condition(token), true
	}
	return "", false
}
