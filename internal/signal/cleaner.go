package signal

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nbacklab/ecg-workload/internal/segmentation"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// CleanedSet содержит очищенные сегменты участника и найденные R-зубцы
// для одного метода очистки
type CleanedSet struct {
	Method   models.CleaningMethod
	Segments *segmentation.SegmentSet
	Peaks    map[string][]int
}

// Cleaner прогоняет коллекции сегментов через DSP обработку
type Cleaner struct {
	proc         Processor
	samplingRate int
}

func NewCleaner(proc Processor, samplingRate int) *Cleaner {
	return &Cleaner{proc: proc, samplingRate: samplingRate}
}

// CleanSegment очищает один сегмент и находит R-зубцы с коррекцией артефактов.
// Неизвестный метод очистки - ошибка вызова; сегмент, опустевший после
// санации, помечается models.ErrShortSegment.
func (c *Cleaner) CleanSegment(ctx context.Context, segment *models.Segment, method models.CleaningMethod) (*models.Segment, []int, error) {
	if _, err := models.ParseCleaningMethod(string(method)); err != nil {
		return nil, nil, err
	}

	sanitized := SanitizeSegment(segment)
	if sanitized.Len() == 0 {
		return nil, nil, fmt.Errorf("segment %s: %w", segment.Name, models.ErrShortSegment)
	}

	cleanedValues, err := c.proc.Clean(ctx, sanitized.Values(), c.samplingRate, method)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to clean segment %s: %w", segment.Name, err)
	}
	if len(cleanedValues) != sanitized.Len() {
		return nil, nil, fmt.Errorf("cleaned signal length %d does not match segment %s length %d",
			len(cleanedValues), segment.Name, sanitized.Len())
	}

	cleaned := &models.Segment{
		Name:    sanitized.Name,
		BeginMS: sanitized.BeginMS,
		EndMS:   sanitized.EndMS,
		Samples: make([]models.Sample, sanitized.Len()),
	}
	for i, sample := range sanitized.Samples {
		cleaned.Samples[i] = models.Sample{
			TimestampMS: sample.TimestampMS,
			Value:       cleanedValues[i],
		}
	}

	peaks, err := c.proc.DetectPeaks(ctx, cleanedValues, c.samplingRate, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to detect peaks in segment %s: %w", segment.Name, err)
	}

	return cleaned, peaks, nil
}

// CleanSet очищает коллекцию сегментов участника каждым из методов.
// Сегменты, опустевшие после санации, пропускаются с записью в журнал;
// остальные ошибки обработки прерывают вызов.
func (c *Cleaner) CleanSet(ctx context.Context, participant string, set *segmentation.SegmentSet, methods []models.CleaningMethod) (map[models.CleaningMethod]*CleanedSet, error) {
	// Неизвестный метод обнаруживается до начала обработки
	for _, method := range methods {
		if _, err := models.ParseCleaningMethod(string(method)); err != nil {
			return nil, err
		}
	}

	result := make(map[models.CleaningMethod]*CleanedSet, len(methods))
	for _, method := range methods {
		cleanedSet := &CleanedSet{
			Method:   method,
			Segments: segmentation.NewSegmentSet(),
			Peaks:    make(map[string][]int),
		}

		for _, name := range set.Names() {
			segment, _ := set.Get(name)
			cleaned, peaks, err := c.CleanSegment(ctx, segment, method)
			if err != nil {
				if errors.Is(err, models.ErrShortSegment) {
					log.Printf("[SIGNAL] Skipping empty segment %s for participant %s", name, participant)
					continue
				}
				return nil, err
			}
			cleanedSet.Segments.Put(cleaned)
			cleanedSet.Peaks[name] = peaks
		}

		result[method] = cleanedSet
	}
	return result, nil
}
