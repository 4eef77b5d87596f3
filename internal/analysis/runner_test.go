package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nbacklab/ecg-workload/internal/signal"
	"github.com/nbacklab/ecg-workload/internal/storage"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// stubProcessor - детерминированная замена DSP службы
type stubProcessor struct{}

func (p *stubProcessor) Clean(ctx context.Context, sig []float64, samplingRate int, method models.CleaningMethod) ([]float64, error) {
	if _, err := models.ParseCleaningMethod(string(method)); err != nil {
		return nil, err
	}
	cleaned := make([]float64, len(sig))
	copy(cleaned, sig)
	return cleaned, nil
}

func (p *stubProcessor) DetectPeaks(ctx context.Context, sig []float64, samplingRate int, correctArtifacts bool) ([]int, error) {
	// Зубец каждые 200 отсчётов (0.8 с при 250 Гц)
	var peaks []int
	for i := 100; i < len(sig); i += 200 {
		peaks = append(peaks, i)
	}
	return peaks, nil
}

func (p *stubProcessor) ScoreQuality(ctx context.Context, sig []float64, samplingRate int) (string, error) {
	return signal.QualityExcellent, nil
}

func (p *stubProcessor) EstimateRate(ctx context.Context, peaks []int, samplingRate int, length int) ([]float64, error) {
	rate := make([]float64, length)
	for i := range rate {
		rate[i] = 75
	}
	return rate, nil
}

// collectSink накапливает события прогресса
type collectSink struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (s *collectSink) BroadcastProgress(event models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	stages := make([]string, len(s.events))
	for i, event := range s.events {
		stages[i] = event.Stage
	}
	return stages
}

// writeStudyParticipant пишет набор файлов участника: ЭКГ с отсчётами
// каждые 4 мс и журнал с сегментом условия C длиной durationSec секунд
func writeStudyParticipant(t *testing.T, root, id string, durationSec int) {
	t.Helper()

	ecgDir := filepath.Join(root, id, "ECG")
	simuDir := filepath.Join(root, id, "SIMU")
	for _, dir := range []string{ecgDir, simuDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
	}

	var ecg strings.Builder
	ecg.WriteString("Time,EcgWaveform\n")
	count := durationSec * 250
	for i := 0; i < count; i++ {
		ms := i * 4
		fmt.Fprintf(&ecg, "21/03/2024 10:00:%02d.%03d,%d\n", ms/1000, ms%1000, 500+i%30)
	}
	if err := os.WriteFile(filepath.Join(ecgDir, "export_ECG.csv"), []byte(ecg.String()), 0644); err != nil {
		t.Fatalf("failed to write ECG csv: %v", err)
	}

	eventCSV := "datetime;events\n" +
		"2024-03-21 10:00:00.000;C_begin\n" +
		fmt.Sprintf("2024-03-21 10:00:%02d.000;C_end\n", durationSec)
	if err := os.WriteFile(filepath.Join(simuDir, "log_event.csv"), []byte(eventCSV), 0644); err != nil {
		t.Fatalf("failed to write event log: %v", err)
	}

	cogCSV := "items;values\n" +
		"mental_demand_C;60\n" +
		"effort_C;30\n"
	if err := os.WriteFile(filepath.Join(simuDir, "cog_evals.csv"), []byte(cogCSV), 0644); err != nil {
		t.Fatalf("failed to write cog evals: %v", err)
	}
}

func testRun(studyDir string) *models.Run {
	return &models.Run{
		RunID:    "run-test",
		StudyDir: studyDir,
		Config: models.RunConfig{
			SamplingRate:     250,
			Methods:          []models.CleaningMethod{models.MethodBiosppy},
			MinSegmentLength: 1000,
		},
		Status:    models.RunStatusPending,
		CreatedAt: time.Now(),
	}
}

func TestRunStudy_FullPipeline(t *testing.T) {
	root := t.TempDir()
	writeStudyParticipant(t, root, "P01", 20) // 5000 отсчётов, выше минимума

	store := storage.NewMemoryStore()
	sink := &collectSink{}
	runner := NewRunner(&stubProcessor{}, store, store, sink, 2, 0)

	run := testRun(root)
	if err := runner.RunStudy(context.Background(), run); err != nil {
		t.Fatalf("RunStudy failed: %v", err)
	}

	if run.Status != models.RunStatusDone {
		t.Errorf("expected status DONE, got %s", run.Status)
	}

	results, err := store.GetResults(context.Background(), "run-test", storage.ResultFilter{})
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}

	if len(results.HRV) != 1 {
		t.Fatalf("expected 1 HRV record, got %d", len(results.HRV))
	}
	rec := results.HRV[0]
	if rec.Participant != "P01" || rec.Segment != "C" {
		t.Errorf("unexpected HRV record: %+v", rec)
	}
	// Заглушка дает ровный ритм 0.8 с: MeanNN = 800 мс, ЧСС 75
	if rec.MeanNN != 800 {
		t.Errorf("expected MeanNN 800, got %v", rec.MeanNN)
	}
	if rec.MeanHR != 75 {
		t.Errorf("expected MeanHR 75, got %v", rec.MeanHR)
	}

	if len(results.Quality) != 1 || results.Quality[0].Score != 1.0 {
		t.Errorf("unexpected quality scores: %+v", results.Quality)
	}
	if len(results.Subjective) != 1 || results.Subjective[0].TotalWorkload != 45 {
		t.Errorf("unexpected subjective scores: %+v", results.Subjective)
	}

	stages := sink.stages()
	if stages[0] != StageStarted || stages[len(stages)-1] != StageFinished {
		t.Errorf("unexpected stage sequence: %v", stages)
	}
}

func TestRunStudy_MissingParticipantSkipped(t *testing.T) {
	root := t.TempDir()
	writeStudyParticipant(t, root, "P01", 20)

	// Второй участник без журнала событий: пропуск, батч продолжается
	writeStudyParticipant(t, root, "P02", 20)
	if err := os.Remove(filepath.Join(root, "P02", "SIMU", "log_event.csv")); err != nil {
		t.Fatalf("failed to remove event log: %v", err)
	}

	store := storage.NewMemoryStore()
	runner := NewRunner(&stubProcessor{}, store, store, &collectSink{}, 1, 0)

	run := testRun(root)
	if err := runner.RunStudy(context.Background(), run); err != nil {
		t.Fatalf("RunStudy failed: %v", err)
	}

	if run.Progress.Completed != 1 {
		t.Errorf("expected 1 completed participant, got %d", run.Progress.Completed)
	}
	if run.Progress.Skipped != 1 {
		t.Errorf("expected 1 skipped participant, got %d", run.Progress.Skipped)
	}

	results, _ := store.GetResults(context.Background(), "run-test", storage.ResultFilter{})
	for _, rec := range results.HRV {
		if rec.Participant == "P02" {
			t.Errorf("skipped participant must not produce records")
		}
	}
}

func TestRunStudy_EmptyStudyFails(t *testing.T) {
	store := storage.NewMemoryStore()
	runner := NewRunner(&stubProcessor{}, store, store, &collectSink{}, 1, 0)

	run := testRun(t.TempDir())
	if err := runner.RunStudy(context.Background(), run); err == nil {
		t.Fatal("expected error for empty study dir")
	}
	if run.Status != models.RunStatusFailed {
		t.Errorf("expected status FAILED, got %s", run.Status)
	}
}

func TestChosenMethod(t *testing.T) {
	if m := chosenMethod([]models.CleaningMethod{models.MethodNeurokit, models.MethodBiosppy}); m != models.MethodBiosppy {
		t.Errorf("expected biosppy preference, got %s", m)
	}
	if m := chosenMethod([]models.CleaningMethod{models.MethodNeurokit}); m != models.MethodNeurokit {
		t.Errorf("expected first method, got %s", m)
	}
	if m := chosenMethod(nil); m != models.MethodBiosppy {
		t.Errorf("expected default biosppy, got %s", m)
	}
}
