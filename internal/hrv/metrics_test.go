package hrv

import (
	"math"
	"testing"
)

func TestComputeTimeDomain(t *testing.T) {
	nn := []float64{800, 830, 790, 805, 795}

	td := ComputeTimeDomain(nn)

	if td.MeanNN != 804 {
		t.Errorf("expected MeanNN 804, got %f", td.MeanNN)
	}
	if td.MedianNN != 800 {
		t.Errorf("expected MedianNN 800, got %f", td.MedianNN)
	}
	if td.MadNN != 5 {
		t.Errorf("expected MadNN 5, got %f", td.MadNN)
	}
	// Разности: 30, -40, 15, -10
	if td.PNN20 != 50 {
		t.Errorf("expected PNN20 50%%, got %f", td.PNN20)
	}
	if td.PNN50 != 0 {
		t.Errorf("expected PNN50 0%%, got %f", td.PNN50)
	}

	wantRMSSD := math.Sqrt((900.0 + 1600 + 225 + 100) / 4)
	if math.Abs(td.RMSSD-wantRMSSD) > 1e-9 {
		t.Errorf("expected RMSSD %f, got %f", wantRMSSD, td.RMSSD)
	}

	wantSDNN := math.Sqrt(970.0 / 4)
	if math.Abs(td.SDNN-wantSDNN) > 1e-9 {
		t.Errorf("expected SDNN %f, got %f", wantSDNN, td.SDNN)
	}
	if math.Abs(td.CVNN-wantSDNN/804) > 1e-9 {
		t.Errorf("expected CVNN %f, got %f", wantSDNN/804, td.CVNN)
	}
}

func TestComputeTimeDomainSteadyRhythm(t *testing.T) {
	nn := []float64{1000, 1000, 1000, 1000}

	td := ComputeTimeDomain(nn)

	if td.MeanNN != 1000 {
		t.Errorf("expected MeanNN 1000, got %f", td.MeanNN)
	}
	if td.SDNN != 0 || td.RMSSD != 0 || td.SDSD != 0 {
		t.Errorf("steady rhythm must have zero variability, got SDNN=%f RMSSD=%f SDSD=%f", td.SDNN, td.RMSSD, td.SDSD)
	}
}

func TestComputeTimeDomainEmpty(t *testing.T) {
	td := ComputeTimeDomain(nil)
	if td.MeanNN != 0 || td.SDNN != 0 {
		t.Error("empty input must produce zero metrics")
	}
}

// modulatedNN генерирует NN интервалы с синусоидальной модуляцией заданной
// частоты вокруг базового значения 1000 мс
func modulatedNN(count int, freqHz, amplitudeMS float64) []float64 {
	nn := make([]float64, count)
	elapsed := 0.0
	for i := range nn {
		nn[i] = 1000 + amplitudeMS*math.Sin(2*math.Pi*freqHz*elapsed)
		elapsed += nn[i] / 1000
	}
	return nn
}

func TestComputeFrequencyDomainLFModulation(t *testing.T) {
	// Модуляция 0.1 Гц попадает в LF полосу
	nn := modulatedNN(300, 0.1, 50)

	fd := ComputeFrequencyDomain(nn)

	if fd.LF <= 0 {
		t.Fatalf("expected positive LF power, got %f", fd.LF)
	}
	if fd.LF <= fd.HF {
		t.Errorf("LF modulation must dominate: LF=%f HF=%f", fd.LF, fd.HF)
	}
	if fd.LFHF <= 1 {
		t.Errorf("expected LF/HF above 1, got %f", fd.LFHF)
	}
	if fd.LFn <= fd.HFn {
		t.Errorf("expected normalized LF above HF: LFn=%f HFn=%f", fd.LFn, fd.HFn)
	}
}

func TestComputeFrequencyDomainHFModulation(t *testing.T) {
	// Модуляция 0.3 Гц попадает в HF полосу (дыхательная аритмия)
	nn := modulatedNN(300, 0.3, 50)

	fd := ComputeFrequencyDomain(nn)

	if fd.HF <= 0 {
		t.Fatalf("expected positive HF power, got %f", fd.HF)
	}
	if fd.HF <= fd.LF {
		t.Errorf("HF modulation must dominate: LF=%f HF=%f", fd.LF, fd.HF)
	}
}

func TestComputeFrequencyDomainTooShort(t *testing.T) {
	fd := ComputeFrequencyDomain([]float64{800, 800, 800})
	if fd.LF != 0 || fd.HF != 0 || fd.VLF != 0 {
		t.Error("short series must produce zero spectrum")
	}
}
