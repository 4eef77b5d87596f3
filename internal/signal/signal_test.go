package signal

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nbacklab/ecg-workload/internal/segmentation"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// spikeTrain генерирует нулевой сигнал с одиночными пиками через period
func spikeTrain(length, period int, amplitude float64) []float64 {
	signal := make([]float64, length)
	for i := period; i < length; i += period {
		signal[i] = amplitude
	}
	return signal
}

func segmentFromValues(name string, values []float64) *models.Segment {
	segment := &models.Segment{Name: name}
	for i, v := range values {
		segment.Samples = append(segment.Samples, models.Sample{
			TimestampMS: int64(i) * 4,
			Value:       v,
		})
	}
	return segment
}

func TestSanitizeSegment(t *testing.T) {
	segment := &models.Segment{
		Name: "C",
		Samples: []models.Sample{
			{TimestampMS: 0, Value: 1},
			{TimestampMS: 4, Value: math.NaN()},
			{TimestampMS: 8, Value: math.Inf(1)},
			{TimestampMS: 12, Value: 2},
		},
	}

	sanitized := SanitizeSegment(segment)

	if sanitized.Len() != 2 {
		t.Fatalf("expected 2 samples after sanitize, got %d", sanitized.Len())
	}
	if sanitized.Samples[0].TimestampMS != 0 || sanitized.Samples[1].TimestampMS != 12 {
		t.Errorf("sanitize must keep timestamps of finite samples")
	}
	// Исходный сегмент не изменяется
	if segment.Len() != 4 {
		t.Errorf("sanitize must not mutate the source segment")
	}
}

func TestLocalDSP_CleanRejectsUnknownMethod(t *testing.T) {
	dsp := NewLocalDSP()
	_, err := dsp.Clean(context.Background(), []float64{1, 2, 3}, 250, "wavelet")
	if !errors.Is(err, models.ErrUnsupportedMethod) {
		t.Errorf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestLocalDSP_CleanRemovesBaseline(t *testing.T) {
	dsp := NewLocalDSP()

	// Сигнал с постоянным смещением 500
	signal := make([]float64, 1000)
	for i := range signal {
		signal[i] = 500
	}

	cleaned, err := dsp.Clean(context.Background(), signal, 250, models.MethodBiosppy)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if len(cleaned) != len(signal) {
		t.Fatalf("cleaned length %d != source length %d", len(cleaned), len(signal))
	}
	for i, v := range cleaned {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("expected zero after baseline removal at %d, got %f", i, v)
		}
	}
}

func TestLocalDSP_DetectPeaks(t *testing.T) {
	dsp := NewLocalDSP()

	// Пики каждые 250 отсчётов при fs=250 - ровно 60 уд/мин
	signal := spikeTrain(2500, 250, 100)
	peaks, err := dsp.DetectPeaks(context.Background(), signal, 250, false)
	if err != nil {
		t.Fatalf("DetectPeaks failed: %v", err)
	}

	if len(peaks) != 9 {
		t.Fatalf("expected 9 peaks, got %d: %v", len(peaks), peaks)
	}
	for i, peak := range peaks {
		want := (i + 1) * 250
		if peak != want {
			t.Errorf("expected peak at %d, got %d", want, peak)
		}
	}
}

func TestLocalDSP_ArtifactCorrection(t *testing.T) {
	dsp := NewLocalDSP()

	// Два зубца на расстоянии 65 отсчётов (260 мс при fs=250): второй
	// проходит рефрактерный порог детектора, но отбрасывается коррекцией
	signal := make([]float64, 1000)
	signal[100] = 100
	signal[165] = 90
	signal[500] = 100
	signal[900] = 100

	raw, err := dsp.DetectPeaks(context.Background(), signal, 250, false)
	if err != nil {
		t.Fatalf("DetectPeaks failed: %v", err)
	}
	corrected, err := dsp.DetectPeaks(context.Background(), signal, 250, true)
	if err != nil {
		t.Fatalf("DetectPeaks with correction failed: %v", err)
	}

	if len(raw) != 4 {
		t.Fatalf("expected 4 raw peaks, got %d: %v", len(raw), raw)
	}
	if len(corrected) != 3 {
		t.Fatalf("expected 3 corrected peaks, got %d: %v", len(corrected), corrected)
	}
	for _, peak := range corrected {
		if peak == 165 {
			t.Error("artifact peak at 165 must be dropped by correction")
		}
	}
}

func TestLocalDSP_EstimateRate(t *testing.T) {
	dsp := NewLocalDSP()

	peaks := []int{250, 500, 750, 1000}
	rate, err := dsp.EstimateRate(context.Background(), peaks, 250, 1100)
	if err != nil {
		t.Fatalf("EstimateRate failed: %v", err)
	}

	if len(rate) != 1100 {
		t.Fatalf("expected rate series of 1100, got %d", len(rate))
	}
	for i, v := range rate {
		if math.Abs(v-60) > 1e-9 {
			t.Fatalf("expected 60 bpm at %d, got %f", i, v)
		}
	}
}

func TestLocalDSP_EstimateRateNeedsPeaks(t *testing.T) {
	dsp := NewLocalDSP()
	if _, err := dsp.EstimateRate(context.Background(), []int{100}, 250, 1000); err == nil {
		t.Error("expected error with a single peak")
	}
}

func TestLocalDSP_ScoreQuality(t *testing.T) {
	dsp := NewLocalDSP()
	ctx := context.Background()

	// Правдоподобная ЧСС 60 уд/мин
	good := spikeTrain(2500, 250, 100)
	rating, err := dsp.ScoreQuality(ctx, good, 250)
	if err != nil {
		t.Fatalf("ScoreQuality failed: %v", err)
	}
	if rating != QualityExcellent {
		t.Errorf("expected %s for plausible rate, got %s", QualityExcellent, rating)
	}

	// Плоский сигнал без зубцов
	flat := make([]float64, 2500)
	rating, err = dsp.ScoreQuality(ctx, flat, 250)
	if err != nil {
		t.Fatalf("ScoreQuality failed: %v", err)
	}
	if rating != QualityUnacceptable {
		t.Errorf("expected %s for flat signal, got %s", QualityUnacceptable, rating)
	}
}

func TestCleaner_CleanSegment(t *testing.T) {
	cleaner := NewCleaner(NewLocalDSP(), 250)

	segment := segmentFromValues("C", spikeTrain(2500, 250, 100))
	cleaned, peaks, err := cleaner.CleanSegment(context.Background(), segment, models.MethodBiosppy)
	if err != nil {
		t.Fatalf("CleanSegment failed: %v", err)
	}

	if cleaned.Len() != segment.Len() {
		t.Errorf("cleaned segment length %d != source %d", cleaned.Len(), segment.Len())
	}
	if cleaned.Samples[0].TimestampMS != segment.Samples[0].TimestampMS {
		t.Errorf("cleaning must preserve timestamps")
	}
	if len(peaks) == 0 {
		t.Error("expected peaks in cleaned segment")
	}
}

func TestCleaner_UnsupportedMethodFatal(t *testing.T) {
	cleaner := NewCleaner(NewLocalDSP(), 250)
	segment := segmentFromValues("C", spikeTrain(2500, 250, 100))

	_, _, err := cleaner.CleanSegment(context.Background(), segment, "butterworth")
	if !errors.Is(err, models.ErrUnsupportedMethod) {
		t.Errorf("expected ErrUnsupportedMethod, got %v", err)
	}

	set := segmentation.NewSegmentSet()
	set.Put(segment)
	_, err = cleaner.CleanSet(context.Background(), "P01", set, []models.CleaningMethod{"butterworth"})
	if !errors.Is(err, models.ErrUnsupportedMethod) {
		t.Errorf("expected ErrUnsupportedMethod from CleanSet, got %v", err)
	}
}

func TestCleaner_AllNaNSegment(t *testing.T) {
	cleaner := NewCleaner(NewLocalDSP(), 250)

	segment := &models.Segment{Name: "C"}
	for i := 0; i < 100; i++ {
		segment.Samples = append(segment.Samples, models.Sample{TimestampMS: int64(i), Value: math.NaN()})
	}

	_, _, err := cleaner.CleanSegment(context.Background(), segment, models.MethodBiosppy)
	if !errors.Is(err, models.ErrShortSegment) {
		t.Errorf("expected ErrShortSegment, got %v", err)
	}
}

func TestCleaner_CleanSetSkipsEmptySegments(t *testing.T) {
	cleaner := NewCleaner(NewLocalDSP(), 250)

	set := segmentation.NewSegmentSet()
	set.Put(segmentFromValues("C", spikeTrain(2500, 250, 100)))
	empty := &models.Segment{Name: "0B"}
	for i := 0; i < 50; i++ {
		empty.Samples = append(empty.Samples, models.Sample{TimestampMS: int64(i), Value: math.NaN()})
	}
	set.Put(empty)

	result, err := cleaner.CleanSet(context.Background(), "P01", set, []models.CleaningMethod{models.MethodBiosppy, models.MethodNeurokit})
	if err != nil {
		t.Fatalf("CleanSet failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("expected cleaned sets for 2 methods, got %d", len(result))
	}
	for _, method := range []models.CleaningMethod{models.MethodBiosppy, models.MethodNeurokit} {
		cleanedSet, ok := result[method]
		if !ok {
			t.Fatalf("missing cleaned set for method %s", method)
		}
		if _, ok := cleanedSet.Segments.Get("C"); !ok {
			t.Errorf("method %s: expected cleaned segment C", method)
		}
		if _, ok := cleanedSet.Segments.Get("0B"); ok {
			t.Errorf("method %s: empty segment must be skipped", method)
		}
		if len(cleanedSet.Peaks["C"]) == 0 {
			t.Errorf("method %s: expected peaks for segment C", method)
		}
	}
}
