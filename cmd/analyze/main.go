package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nbacklab/ecg-workload/internal/analysis"
	"github.com/nbacklab/ecg-workload/internal/config"
	"github.com/nbacklab/ecg-workload/internal/signal"
	"github.com/nbacklab/ecg-workload/internal/storage"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// analyze прогоняет анализ исследования по локальному каталогу без сервиса.
// Флаги переопределяют переменные окружения.
func main() {
	cfg := config.Load()

	studyDir := flag.String("study", cfg.StudyRoot, "study directory (one subdirectory per participant)")
	methodsFlag := flag.String("methods", cfg.CleaningMethod, "comma-separated cleaning methods")
	samplingRate := flag.Int("rate", cfg.SamplingRate, "sampling rate, Hz")
	minLength := flag.Int("min-length", cfg.MinSegmentLength, "minimum viable segment length, samples")
	verbose := flag.Bool("verbose", cfg.Verbose, "log per-segment diagnostics")
	sqlitePath := flag.String("sqlite", cfg.SQLitePath, "sqlite file for results (empty keeps results in memory)")
	dspURL := flag.String("dsp", cfg.DSPServiceURL, "DSP service URL (empty uses local fallback)")
	workers := flag.Int("workers", cfg.WorkerCount, "participant worker count")
	flag.Parse()

	methods, err := parseMethods(*methodsFlag)
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	var processor signal.Processor
	if *dspURL != "" {
		processor = signal.NewClient(*dspURL, time.Duration(cfg.DSPTimeoutMS)*time.Millisecond)
		log.Printf("[INFO] Using DSP service at %s", *dspURL)
	} else {
		processor = signal.NewLocalDSP()
		log.Printf("[WARN] No DSP service configured, using local fallback")
	}

	memory := storage.NewMemoryStore()
	var repository storage.ResultRepository = memory
	if *sqlitePath != "" {
		lite, err := storage.NewSQLiteRepository(*sqlitePath)
		if err != nil {
			log.Fatalf("[FATAL] Failed to open sqlite store: %v", err)
		}
		defer lite.Close()
		repository = lite
	}

	run := &models.Run{
		RunID:    uuid.New().String(),
		StudyDir: *studyDir,
		Config: models.RunConfig{
			SamplingRate:     *samplingRate,
			Methods:          methods,
			MinSegmentLength: *minLength,
			Verbose:          *verbose,
		},
		Status:    models.RunStatusPending,
		CreatedAt: time.Now(),
	}

	runner := analysis.NewRunner(processor, memory, repository, &analysis.LogSink{}, *workers, 0)

	if err := runner.RunStudy(context.Background(), run); err != nil {
		log.Fatalf("[FATAL] Analysis failed: %v", err)
	}

	results, err := repository.GetResults(context.Background(), run.RunID, storage.ResultFilter{})
	if err != nil {
		log.Fatalf("[FATAL] Failed to read back results: %v", err)
	}

	fmt.Printf("Run %s finished: %d participants completed, %d skipped\n",
		run.RunID, run.Progress.Completed, run.Progress.Skipped)
	fmt.Printf("HRV records: %d, quality scores: %d, subjective scores: %d, error counts: %d\n",
		len(results.HRV), len(results.Quality), len(results.Subjective), len(results.Errors))

	if *sqlitePath != "" {
		fmt.Printf("Results archived to %s\n", *sqlitePath)
	}

	if run.Progress.Completed == 0 {
		os.Exit(1)
	}
}

// parseMethods разбирает список методов очистки из флага
func parseMethods(raw string) ([]models.CleaningMethod, error) {
	var methods []models.CleaningMethod
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		method, err := models.ParseCleaningMethod(part)
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no cleaning methods specified")
	}
	return methods, nil
}
