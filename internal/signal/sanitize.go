package signal

import (
	"math"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// SanitizeSegment возвращает копию сегмента без нечисловых отсчётов.
// Регистраторы изредка пишут NaN при потере контакта электрода, такие
// отсчёты отбрасываются перед очисткой.
func SanitizeSegment(segment *models.Segment) *models.Segment {
	sanitized := &models.Segment{
		Name:    segment.Name,
		BeginMS: segment.BeginMS,
		EndMS:   segment.EndMS,
	}
	for _, sample := range segment.Samples {
		if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
			continue
		}
		sanitized.Samples = append(sanitized.Samples, sample)
	}
	return sanitized
}
