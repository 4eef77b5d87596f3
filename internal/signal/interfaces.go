package signal

import (
	"context"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// SignalCleaner очищает сигнал ЭКГ указанным методом
type SignalCleaner interface {
	Clean(ctx context.Context, signal []float64, samplingRate int, method models.CleaningMethod) ([]float64, error)
}

// PeakDetector находит индексы R-зубцов в очищенном сигнале
type PeakDetector interface {
	DetectPeaks(ctx context.Context, signal []float64, samplingRate int, correctArtifacts bool) ([]int, error)
}

// QualityScorer присваивает сигналу текстовый класс качества
type QualityScorer interface {
	ScoreQuality(ctx context.Context, signal []float64, samplingRate int) (string, error)
}

// RateEstimator строит посэмпловый ряд мгновенной ЧСС по R-зубцам
type RateEstimator interface {
	EstimateRate(ctx context.Context, peaks []int, samplingRate int, length int) ([]float64, error)
}

// Processor объединяет все операции DSP службы. Вся численная обработка
// сигнала живет за этим интерфейсом: снаружи остаются только оркестровка
// и коллекции.
type Processor interface {
	SignalCleaner
	PeakDetector
	QualityScorer
	RateEstimator
}
