package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nbacklab/ecg-workload/internal/hrv"
	"github.com/nbacklab/ecg-workload/internal/quality"
	"github.com/nbacklab/ecg-workload/internal/segmentation"
	"github.com/nbacklab/ecg-workload/internal/signal"
	"github.com/nbacklab/ecg-workload/internal/simerrors"
	"github.com/nbacklab/ecg-workload/internal/storage"
	"github.com/nbacklab/ecg-workload/internal/study"
	"github.com/nbacklab/ecg-workload/internal/subjective"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// Стадии прогона, попадающие в события прогресса
const (
	StageStarted     = "started"
	StageParticipant = "participant"
	StageSkipped     = "skipped"
	StageFinished    = "finished"
	StageFailed      = "failed"
)

// ProgressSink получает события хода анализа
type ProgressSink interface {
	BroadcastProgress(event models.ProgressEvent)
}

// LogSink пишет события хода анализа в журнал
type LogSink struct{}

func (s *LogSink) BroadcastProgress(event models.ProgressEvent) {
	log.Printf("[RUN] run=%s stage=%s participant=%s %d/%d %s",
		event.RunID, event.Stage, event.Participant, event.Completed, event.Total, event.Message)
}

// Runner оркеструет полный конвейер анализа исследования: загрузка,
// сегментация, очистка, фильтрация, качество, ВСР, субъективные оценки
// и ошибки пилотирования
type Runner struct {
	processor   signal.Processor
	runStore    storage.RunStore
	repository  storage.ResultRepository
	sink        ProgressSink
	workerCount int
	ttlSeconds  int
}

// NewRunner собирает оркестратор. При nil sink события идут в журнал.
func NewRunner(processor signal.Processor, runStore storage.RunStore, repository storage.ResultRepository, sink ProgressSink, workerCount, ttlSeconds int) *Runner {
	if sink == nil {
		sink = &LogSink{}
	}
	if workerCount < 1 {
		workerCount = 1
	}
	return &Runner{
		processor:   processor,
		runStore:    runStore,
		repository:  repository,
		sink:        sink,
		workerCount: workerCount,
		ttlSeconds:  ttlSeconds,
	}
}

// participantResult собирает результаты одного участника
type participantResult struct {
	participant string
	skipped     bool

	hrv        []models.HRVRecord
	quality    []models.QualityScore
	indices    []models.QualityIndex
	subjective []models.SubjectiveScore
	errors     []models.ErrorCount
}

// RunStudy выполняет прогон анализа по каталогу исследования.
// Участники обрабатываются пулом воркеров; отказ одного участника не
// прерывает остальных. Результаты архивируются по завершении.
func (r *Runner) RunStudy(ctx context.Context, run *models.Run) error {
	loader := study.NewLoader(run.StudyDir)

	participants, err := loader.Participants()
	if err != nil {
		return r.failRun(ctx, run, fmt.Errorf("failed to list participants: %w", err))
	}
	if len(participants) == 0 {
		return r.failRun(ctx, run, fmt.Errorf("no participants in study dir %s", run.StudyDir))
	}

	now := time.Now()
	run.Status = models.RunStatusRunning
	run.StartedAt = &now
	run.Progress = models.RunProgress{TotalParticipants: len(participants)}
	if err := r.runStore.SaveRun(ctx, run); err != nil {
		log.Printf("[RUN] Failed to save run state: %v", err)
	}

	r.sink.BroadcastProgress(models.ProgressEvent{
		RunID:     run.RunID,
		Stage:     StageStarted,
		Total:     len(participants),
		Timestamp: time.Now(),
	})

	jobs := make(chan string)
	resultsChan := make(chan participantResult)

	var wg sync.WaitGroup
	for i := 0; i < r.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for participant := range jobs {
				resultsChan <- r.processParticipant(ctx, loader, run.Config, participant)
			}
		}()
	}

	go func() {
		for _, participant := range participants {
			jobs <- participant
		}
		close(jobs)
		wg.Wait()
		close(resultsChan)
	}()

	results := &models.RunResults{RunID: run.RunID}
	progress := run.Progress
	for res := range resultsChan {
		if res.skipped {
			progress.Skipped++
		} else {
			progress.Completed++
			results.HRV = append(results.HRV, res.hrv...)
			results.Quality = append(results.Quality, res.quality...)
			results.Indices = append(results.Indices, res.indices...)
			results.Subjective = append(results.Subjective, res.subjective...)
			results.Errors = append(results.Errors, res.errors...)
		}
		progress.CurrentStage = res.participant

		if err := r.runStore.UpdateProgress(ctx, run.RunID, progress); err != nil {
			log.Printf("[RUN] Failed to update progress: %v", err)
		}

		stage := StageParticipant
		if res.skipped {
			stage = StageSkipped
		}
		r.sink.BroadcastProgress(models.ProgressEvent{
			RunID:       run.RunID,
			Participant: res.participant,
			Stage:       stage,
			Completed:   progress.Completed,
			Total:       progress.TotalParticipants,
			Timestamp:   time.Now(),
		})
	}

	if err := r.repository.SaveResults(ctx, results); err != nil {
		return r.failRun(ctx, run, fmt.Errorf("failed to archive results: %w", err))
	}

	finished := time.Now()
	run.Status = models.RunStatusDone
	run.FinishedAt = &finished
	run.Progress = progress
	run.Progress.CurrentStage = ""
	if err := r.runStore.SaveRun(ctx, run); err != nil {
		log.Printf("[RUN] Failed to save run state: %v", err)
	}
	if err := r.repository.SaveRun(ctx, run); err != nil {
		log.Printf("[RUN] Failed to archive run metadata: %v", err)
	}
	if r.ttlSeconds > 0 {
		if err := r.runStore.SetRunTTL(ctx, run.RunID, r.ttlSeconds); err != nil {
			log.Printf("[RUN] Failed to set run TTL: %v", err)
		}
	}

	r.sink.BroadcastProgress(models.ProgressEvent{
		RunID:     run.RunID,
		Stage:     StageFinished,
		Completed: progress.Completed,
		Total:     progress.TotalParticipants,
		Timestamp: time.Now(),
	})

	log.Printf("[RUN] Run %s finished: %d completed, %d skipped",
		run.RunID, progress.Completed, progress.Skipped)
	return nil
}

// processParticipant прогоняет конвейер одного участника. Любая ошибка
// уровня участника превращается в пропуск, не прерывая батч.
func (r *Runner) processParticipant(ctx context.Context, loader *study.Loader, cfg models.RunConfig, participant string) participantResult {
	result := participantResult{participant: participant}

	data, err := loader.LoadParticipant(participant)
	if err != nil {
		if errors.Is(err, models.ErrMissingRecording) {
			log.Printf("[RUN] Skipping participant %s: recording files missing", participant)
		} else {
			log.Printf("[RUN] Skipping participant %s: %v", participant, err)
		}
		result.skipped = true
		return result
	}

	// Сегментация по журналу событий
	segments := segmentation.NewSegmenter().Segment(participant, data.ECG, data.Events)

	// Очистка каждым из настроенных методов
	cleaner := signal.NewCleaner(r.processor, cfg.SamplingRate)
	cleaned, err := cleaner.CleanSet(ctx, participant, segments, cfg.Methods)
	if err != nil {
		log.Printf("[RUN] Skipping participant %s: cleaning failed: %v", participant, err)
		result.skipped = true
		return result
	}

	// Сырая и очищенные коллекции фильтруются независимо
	filter := segmentation.NewFilter(cfg.MinSegmentLength, cfg.Verbose)
	filter.FilterRaw(participant, segments)
	for method, cleanedSet := range cleaned {
		filter.FilterCleaned(participant, method, cleanedSet.Segments, cleanedSet.Peaks)
	}

	evaluator := quality.NewEvaluator(r.processor, cfg.SamplingRate, cfg.Verbose)
	scores, indices, err := evaluator.Evaluate(ctx, participant, cleaned, quality.DefaultSegments())
	if err != nil {
		log.Printf("[RUN] Quality evaluation failed for participant %s: %v", participant, err)
	} else {
		result.quality = scores
		result.indices = indices
	}

	extractor := hrv.NewExtractor(r.processor, cfg.SamplingRate, cfg.Verbose)
	method := chosenMethod(cfg.Methods)
	records, err := extractor.Extract(ctx, participant, cleaned, hrv.DefaultSegments(), method)
	if err != nil {
		log.Printf("[RUN] HRV extraction failed for participant %s: %v", participant, err)
	} else {
		result.hrv = records
	}

	result.subjective = subjective.Extract(participant, data.CogEvals)
	if data.ErrorGrid != nil {
		result.errors = simerrors.Extract(participant, data.ErrorGrid)
	}

	return result
}

// failRun переводит прогон в состояние отказа и возвращает исходную ошибку
func (r *Runner) failRun(ctx context.Context, run *models.Run, cause error) error {
	finished := time.Now()
	run.Status = models.RunStatusFailed
	run.FinishedAt = &finished
	run.Error = cause.Error()
	if err := r.runStore.SaveRun(ctx, run); err != nil {
		log.Printf("[RUN] Failed to save run state: %v", err)
	}

	r.sink.BroadcastProgress(models.ProgressEvent{
		RunID:     run.RunID,
		Stage:     StageFailed,
		Message:   cause.Error(),
		Timestamp: time.Now(),
	})
	return cause
}

// chosenMethod возвращает метод очистки для метрик ВСР: biosppy, когда он
// в списке, иначе первый настроенный
func chosenMethod(methods []models.CleaningMethod) models.CleaningMethod {
	for _, method := range methods {
		if method == models.MethodBiosppy {
			return method
		}
	}
	if len(methods) > 0 {
		return methods[0]
	}
	return models.MethodBiosppy
}
