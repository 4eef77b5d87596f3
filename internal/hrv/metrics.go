package hrv

import (
	"math"

	"github.com/nbacklab/ecg-workload/internal/stats"
)

// TimeDomain содержит метрики ВСР временной области в миллисекундах
type TimeDomain struct {
	MeanNN   float64
	SDNN     float64
	RMSSD    float64
	SDSD     float64
	CVNN     float64
	MedianNN float64
	MadNN    float64
	PNN50    float64
	PNN20    float64
}

// FrequencyDomain содержит метрики ВСР частотной области.
// Мощности в мс^2, LFn и HFn нормированы на общую мощность.
type FrequencyDomain struct {
	VLF  float64
	LF   float64
	HF   float64
	LFHF float64
	LFn  float64
	HFn  float64
}

// Границы частотных полос, Гц
const (
	vlfLow  = 0.0033
	vlfHigh = 0.04
	lfHigh  = 0.15
	hfHigh  = 0.4
)

// Частота передискретизации ряда NN интервалов, Гц
const resampleHz = 2.0

// Минимум точек передискретизованного ряда для оценки спектра
const minSpectrumPoints = 16

// ComputeTimeDomain вычисляет метрики временной области по NN интервалам (мс)
func ComputeTimeDomain(nn []float64) TimeDomain {
	if len(nn) == 0 {
		return TimeDomain{}
	}

	diffs := stats.Diff(nn)
	meanNN := stats.Mean(nn)

	td := TimeDomain{
		MeanNN:   meanNN,
		SDNN:     stats.StdDev(nn),
		RMSSD:    stats.RMS(diffs),
		SDSD:     stats.StdDev(diffs),
		MedianNN: stats.Median(nn),
		MadNN:    stats.MAD(nn),
		PNN50:    percentOver(diffs, 50),
		PNN20:    percentOver(diffs, 20),
	}
	if meanNN != 0 {
		td.CVNN = td.SDNN / meanNN
	}
	return td
}

// ComputeFrequencyDomain оценивает спектр ряда NN интервалов периодограммой
// после линейной передискретизации на равномерную сетку
func ComputeFrequencyDomain(nn []float64) FrequencyDomain {
	resampled, dt := resampleNN(nn)
	if len(resampled) < minSpectrumPoints {
		return FrequencyDomain{}
	}

	// Убираем постоянную составляющую
	mean := stats.Mean(resampled)
	centered := make([]float64, len(resampled))
	for i, v := range resampled {
		centered[i] = v - mean
	}

	freqs, power := periodogram(centered, dt)

	fd := FrequencyDomain{
		VLF: bandPower(freqs, power, vlfLow, vlfHigh),
		LF:  bandPower(freqs, power, vlfHigh, lfHigh),
		HF:  bandPower(freqs, power, lfHigh, hfHigh),
	}
	if fd.HF != 0 {
		fd.LFHF = fd.LF / fd.HF
	}
	total := fd.VLF + fd.LF + fd.HF
	if total != 0 {
		fd.LFn = fd.LF / total
		fd.HFn = fd.HF / total
	}
	return fd
}

// percentOver возвращает долю разностей с модулем больше порога, в процентах
func percentOver(diffs []float64, thresholdMS float64) float64 {
	if len(diffs) == 0 {
		return 0
	}
	count := 0
	for _, d := range diffs {
		if math.Abs(d) > thresholdMS {
			count++
		}
	}
	return 100 * float64(count) / float64(len(diffs))
}

// resampleNN переносит неравномерный ряд NN интервалов на равномерную сетку.
// Время i-го интервала - накопленная сумма предыдущих интервалов.
func resampleNN(nn []float64) ([]float64, float64) {
	if len(nn) < 2 {
		return nil, 0
	}

	times := make([]float64, len(nn))
	elapsed := 0.0
	for i, interval := range nn {
		elapsed += interval / 1000
		times[i] = elapsed
	}

	dt := 1.0 / resampleHz
	span := times[len(times)-1] - times[0]
	count := int(span/dt) + 1
	if count < 2 {
		return nil, 0
	}

	resampled := make([]float64, count)
	pos := 0
	for i := 0; i < count; i++ {
		t := times[0] + float64(i)*dt
		for pos < len(times)-2 && times[pos+1] < t {
			pos++
		}
		t0, t1 := times[pos], times[pos+1]
		v0, v1 := nn[pos], nn[pos+1]
		if t1 == t0 {
			resampled[i] = v0
			continue
		}
		weight := (t - t0) / (t1 - t0)
		if weight < 0 {
			weight = 0
		}
		if weight > 1 {
			weight = 1
		}
		resampled[i] = v0 + weight*(v1-v0)
	}
	return resampled, dt
}

// periodogram возвращает одностороннюю оценку спектральной плотности
// мощности прямым дискретным преобразованием Фурье
func periodogram(signal []float64, dt float64) ([]float64, []float64) {
	n := len(signal)
	half := n / 2

	freqs := make([]float64, half)
	power := make([]float64, half)
	for k := 1; k <= half; k++ {
		var re, im float64
		for i, v := range signal {
			angle := 2 * math.Pi * float64(k) * float64(i) / float64(n)
			re += v * math.Cos(angle)
			im -= v * math.Sin(angle)
		}
		freqs[k-1] = float64(k) / (float64(n) * dt)
		power[k-1] = 2 * dt * (re*re + im*im) / float64(n)
	}
	return freqs, power
}

// bandPower интегрирует спектральную плотность в полосе частот
func bandPower(freqs, power []float64, low, high float64) float64 {
	if len(freqs) < 2 {
		return 0
	}
	df := freqs[1] - freqs[0]
	total := 0.0
	for i, f := range freqs {
		if f >= low && f < high {
			total += power[i] * df
		}
	}
	return total
}
