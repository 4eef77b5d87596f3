package signal

import (
	"context"
	"fmt"
	"math"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// Классы качества сигнала в нотации zhao2018
const (
	QualityUnacceptable     = "Unacceptable"
	QualityBarelyAcceptable = "Barely acceptable"
	QualityExcellent        = "Excellent"
)

// Физиологические пределы для локальных эвристик
const (
	minRefractoryMS = 250 // минимальный интервал между R-зубцами
	minArtifactMS   = 300 // RR короче этого считается артефактом
)

// LocalDSP реализует упрощенные версии DSP операций. Используется как
// замена внешней службы обработки, когда она не настроена, и как ядро
// автономной заглушки dspstub. Результаты пригодны для прогона конвейера,
// но не для публикации.
type LocalDSP struct{}

func NewLocalDSP() *LocalDSP {
	return &LocalDSP{}
}

// Clean убирает дрейф изолинии вычитанием скользящего среднего.
// Все поддерживаемые методы локально сводятся к этой операции.
func (d *LocalDSP) Clean(ctx context.Context, signal []float64, samplingRate int, method models.CleaningMethod) ([]float64, error) {
	if _, err := models.ParseCleaningMethod(string(method)); err != nil {
		return nil, err
	}
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	// Окно около 0.6 секунды сохраняет QRS комплекс
	window := samplingRate * 3 / 5
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}

	baseline := movingMean(signal, window)
	cleaned := make([]float64, len(signal))
	for i := range signal {
		cleaned[i] = signal[i] - baseline[i]
	}
	return cleaned, nil
}

// DetectPeaks находит локальные максимумы выше порога с рефрактерным периодом
func (d *LocalDSP) DetectPeaks(ctx context.Context, signal []float64, samplingRate int, correctArtifacts bool) ([]int, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	mean, std := meanStd(signal)
	if std == 0 {
		// Сигнал без вариации не содержит зубцов
		return nil, nil
	}
	threshold := mean + 2*std
	refractory := samplingRate * minRefractoryMS / 1000
	if refractory < 1 {
		refractory = 1
	}

	var peaks []int
	lastPeak := -refractory
	for i := 1; i < len(signal)-1; i++ {
		if signal[i] < threshold {
			continue
		}
		if signal[i] < signal[i-1] || signal[i] < signal[i+1] {
			continue
		}
		if i-lastPeak < refractory {
			// В рефрактерном окне оставляем более высокий зубец
			if len(peaks) > 0 && signal[i] > signal[peaks[len(peaks)-1]] {
				peaks[len(peaks)-1] = i
				lastPeak = i
			}
			continue
		}
		peaks = append(peaks, i)
		lastPeak = i
	}

	if correctArtifacts {
		peaks = dropShortIntervals(peaks, samplingRate)
	}
	return peaks, nil
}

// ScoreQuality присваивает класс качества по правдоподобию средней ЧСС
func (d *LocalDSP) ScoreQuality(ctx context.Context, signal []float64, samplingRate int) (string, error) {
	if len(signal) == 0 {
		return QualityUnacceptable, nil
	}

	peaks, err := d.DetectPeaks(ctx, signal, samplingRate, false)
	if err != nil || len(peaks) < 3 {
		return QualityUnacceptable, nil
	}

	spanSamples := peaks[len(peaks)-1] - peaks[0]
	if spanSamples <= 0 {
		return QualityUnacceptable, nil
	}
	bpm := float64(len(peaks)-1) * 60 * float64(samplingRate) / float64(spanSamples)

	switch {
	case bpm >= 40 && bpm <= 180:
		return QualityExcellent, nil
	case bpm >= 30 && bpm <= 220:
		return QualityBarelyAcceptable, nil
	default:
		return QualityUnacceptable, nil
	}
}

// EstimateRate строит посэмпловый ряд мгновенной ЧСС линейной интерполяцией
// между R-зубцами
func (d *LocalDSP) EstimateRate(ctx context.Context, peaks []int, samplingRate int, length int) ([]float64, error) {
	if len(peaks) < 2 {
		return nil, fmt.Errorf("not enough peaks to estimate rate: %d", len(peaks))
	}
	if length <= 0 {
		return nil, fmt.Errorf("invalid signal length: %d", length)
	}

	// Мгновенная ЧСС в позициях зубцов, начиная со второго
	positions := make([]int, 0, len(peaks)-1)
	rates := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		rr := peaks[i] - peaks[i-1]
		if rr <= 0 {
			continue
		}
		positions = append(positions, peaks[i])
		rates = append(rates, 60*float64(samplingRate)/float64(rr))
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("no valid RR intervals")
	}

	rate := make([]float64, length)
	for i := 0; i < length; i++ {
		rate[i] = interpolateAt(positions, rates, i)
	}
	return rate, nil
}

// movingMean возвращает центрированное скользящее среднее с крайними
// значениями по доступному окну
func movingMean(signal []float64, window int) []float64 {
	half := window / 2
	result := make([]float64, len(signal))
	sum := 0.0
	left, right := 0, -1

	for i := range signal {
		wantLeft := i - half
		if wantLeft < 0 {
			wantLeft = 0
		}
		wantRight := i + half
		if wantRight > len(signal)-1 {
			wantRight = len(signal) - 1
		}
		for right < wantRight {
			right++
			sum += signal[right]
		}
		for left < wantLeft {
			sum -= signal[left]
			left++
		}
		result[i] = sum / float64(right-left+1)
	}
	return result
}

func meanStd(signal []float64) (float64, float64) {
	if len(signal) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range signal {
		sum += v
	}
	mean := sum / float64(len(signal))

	variance := 0.0
	for _, v := range signal {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(signal))
	return mean, math.Sqrt(variance)
}

// dropShortIntervals убирает зубцы, образующие нефизиологично короткие RR
func dropShortIntervals(peaks []int, samplingRate int) []int {
	if len(peaks) < 2 {
		return peaks
	}
	minRR := samplingRate * minArtifactMS / 1000
	corrected := peaks[:1]
	for i := 1; i < len(peaks); i++ {
		if peaks[i]-corrected[len(corrected)-1] < minRR {
			continue
		}
		corrected = append(corrected, peaks[i])
	}
	return corrected
}

// interpolateAt линейно интерполирует значение ряда в произвольной позиции
func interpolateAt(positions []int, values []float64, at int) float64 {
	if at <= positions[0] {
		return values[0]
	}
	last := len(positions) - 1
	if at >= positions[last] {
		return values[last]
	}
	for i := 1; i <= last; i++ {
		if at <= positions[i] {
			span := float64(positions[i] - positions[i-1])
			weight := float64(at-positions[i-1]) / span
			return values[i-1] + weight*(values[i]-values[i-1])
		}
	}
	return values[last]
}
