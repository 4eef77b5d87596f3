package hrv

import (
	"context"
	"fmt"
	"log"

	"github.com/nbacklab/ecg-workload/internal/signal"
	"github.com/nbacklab/ecg-workload/internal/stats"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// DefaultSegments перечисляет сегменты анализа ВСР по умолчанию: условия
// целиком и их половинные блоки
func DefaultSegments() []string {
	return []string{"C", "0B", "2B", "C.1", "C.2", "0B.1", "0B.2", "2B.1", "2B.2"}
}

// Extractor строит строки метрик ВСР по очищенным сегментам участника
type Extractor struct {
	rate         signal.RateEstimator
	samplingRate int
	verbose      bool
}

func NewExtractor(rate signal.RateEstimator, samplingRate int, verbose bool) *Extractor {
	return &Extractor{rate: rate, samplingRate: samplingRate, verbose: verbose}
}

// ExtractSegment вычисляет метрики одного сегмента по списку R-зубцов
func (e *Extractor) ExtractSegment(ctx context.Context, participant string, method models.CleaningMethod, segment *models.Segment, peaks []int) (*models.HRVRecord, error) {
	if len(peaks) < 3 {
		return nil, fmt.Errorf("segment %s: not enough peaks for HRV metrics: %d", segment.Name, len(peaks))
	}

	// NN интервалы в миллисекундах по индексам зубцов
	nn := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		nn[i-1] = float64(peaks[i]-peaks[i-1]) * 1000 / float64(e.samplingRate)
	}

	td := ComputeTimeDomain(nn)
	fd := ComputeFrequencyDomain(nn)

	rate, err := e.rate.EstimateRate(ctx, peaks, e.samplingRate, segment.Len())
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", segment.Name, err)
	}

	return &models.HRVRecord{
		Participant: participant,
		Method:      method,
		Segment:     segment.Name,
		MeanHR:      stats.Mean(rate),
		MeanNN:      td.MeanNN,
		SDNN:        td.SDNN,
		RMSSD:       td.RMSSD,
		SDSD:        td.SDSD,
		CVNN:        td.CVNN,
		MedianNN:    td.MedianNN,
		MadNN:       td.MadNN,
		PNN50:       td.PNN50,
		PNN20:       td.PNN20,
		VLF:         fd.VLF,
		LF:          fd.LF,
		HF:          fd.HF,
		LFHF:        fd.LFHF,
		LFn:         fd.LFn,
		HFn:         fd.HFn,
	}, nil
}

// Extract обходит очищенные коллекции участника. Метрики берутся только
// для выбранного метода очистки и только для сегментов интереса; сегменты
// с недостатком зубцов пропускаются с записью в журнал.
func (e *Extractor) Extract(ctx context.Context, participant string, cleaned map[models.CleaningMethod]*signal.CleanedSet, segments []string, chosenMethod models.CleaningMethod) ([]models.HRVRecord, error) {
	cleanedSet, ok := cleaned[chosenMethod]
	if !ok {
		log.Printf("[HRV] No cleaned segments with method %s for participant %s", chosenMethod, participant)
		return nil, nil
	}

	interest := make(map[string]bool, len(segments))
	for _, name := range segments {
		interest[name] = true
	}

	var records []models.HRVRecord
	for _, name := range cleanedSet.Segments.Names() {
		if !interest[name] {
			continue
		}
		if e.verbose {
			log.Printf("[HRV] Extracting HRV metrics of segment %s from participant %s", name, participant)
		}

		segment, _ := cleanedSet.Segments.Get(name)
		record, err := e.ExtractSegment(ctx, participant, chosenMethod, segment, cleanedSet.Peaks[name])
		if err != nil {
			log.Printf("[HRV] Skipping segment %s from participant %s: %v", name, participant, err)
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}
