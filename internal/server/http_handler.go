package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nbacklab/ecg-workload/internal/analysis"
	"github.com/nbacklab/ecg-workload/internal/config"
	"github.com/nbacklab/ecg-workload/internal/storage"
	"github.com/nbacklab/ecg-workload/internal/study"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// HTTPHandler обрабатывает HTTP запросы управления прогонами анализа
// (Presentation Layer)
type HTTPHandler struct {
	cfg        *config.Config
	runStore   storage.RunStore
	repository storage.ResultRepository
	runner     *analysis.Runner
}

// NewHTTPHandler создает новый HTTP обработчик
func NewHTTPHandler(cfg *config.Config, runStore storage.RunStore, repository storage.ResultRepository, runner *analysis.Runner) *HTTPHandler {
	return &HTTPHandler{
		cfg:        cfg,
		runStore:   runStore,
		repository: repository,
		runner:     runner,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/studies/upload", h.UploadStudy).Methods("POST")
	api.HandleFunc("/runs/{run_id}/start", h.StartRun).Methods("POST")
	api.HandleFunc("/runs/{run_id}", h.GetRun).Methods("GET")
	api.HandleFunc("/runs/{run_id}/results", h.GetResults).Methods("GET")

	router.HandleFunc("/health", h.Health).Methods("GET")
}

// UploadStudy регистрирует прогон анализа
// @Summary Загрузить данные исследования
// @Description Принимает CSV файлы одного участника (multipart) или путь к каталогу исследования на сервере и регистрирует прогон анализа
// @Tags Analysis
// @Accept multipart/form-data
// @Produce json
// @Param participant_id formData string false "ID участника (для multipart загрузки)"
// @Param ecg_file formData file false "CSV файл с сигналом ЭКГ"
// @Param log_event_file formData file false "CSV журнал событий симулятора"
// @Param cog_evals_file formData file false "CSV ответы NASA-TLX"
// @Param error_grid_file formData file false "CSV таблица наблюдения ошибок"
// @Param study_dir formData string false "Каталог исследования на сервере (альтернатива файлам)"
// @Success 201 {object} models.UploadResponse "Прогон зарегистрирован"
// @Failure 400 {object} models.ErrorResponse "Неверный запрос"
// @Failure 500 {object} models.ErrorResponse "Ошибка регистрации"
// @Router /api/v1/studies/upload [post]
func (h *HTTPHandler) UploadStudy(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil { // 64MB max memory
		respondError(w, http.StatusBadRequest, "Failed to parse form: "+err.Error())
		return
	}

	runID := uuid.New().String()

	studyDir := r.FormValue("study_dir")
	if studyDir != "" {
		// Каталог уже лежит на сервере: регистрируем его как есть
		studyDir = filepath.Join(h.cfg.StudyRoot, filepath.Clean("/"+studyDir))
	} else {
		dir, err := h.saveUploadedParticipant(r, runID)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		studyDir = dir
	}

	participants, err := study.NewLoader(studyDir).Participants()
	if err != nil || len(participants) == 0 {
		respondError(w, http.StatusBadRequest, "Study directory is empty or unreadable")
		return
	}

	run := &models.Run{
		RunID:    runID,
		StudyDir: studyDir,
		Config: models.RunConfig{
			SamplingRate:     h.cfg.SamplingRate,
			Methods:          []models.CleaningMethod{models.CleaningMethod(h.cfg.CleaningMethod)},
			MinSegmentLength: h.cfg.MinSegmentLength,
			Verbose:          h.cfg.Verbose,
		},
		Status:    models.RunStatusPending,
		CreatedAt: time.Now(),
	}

	if err := h.runStore.SaveRun(r.Context(), run); err != nil {
		log.Printf("[ERROR] Failed to save run: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to register run")
		return
	}

	log.Printf("[INFO] Registered run %s for study %s (%d participants)", runID, studyDir, len(participants))

	respondJSON(w, http.StatusCreated, models.UploadResponse{
		RunID:        runID,
		Status:       string(models.RunStatusPending),
		Participants: participants,
	})
}

// saveUploadedParticipant раскладывает multipart файлы участника в структуру
// каталогов исследования
func (h *HTTPHandler) saveUploadedParticipant(r *http.Request, runID string) (string, error) {
	participant := r.FormValue("participant_id")
	if participant == "" {
		return "", fmt.Errorf("participant_id or study_dir is required")
	}

	studyDir := filepath.Join(h.cfg.UploadDir, runID)
	folder := filepath.Join(studyDir, participant)

	files := []struct {
		field    string
		dest     string
		required bool
	}{
		{"ecg_file", filepath.Join(folder, "ECG", "upload_ECG.csv"), true},
		{"log_event_file", filepath.Join(folder, "SIMU", "log_event.csv"), true},
		{"cog_evals_file", filepath.Join(folder, "SIMU", "cog_evals.csv"), true},
		{"error_grid_file", filepath.Join(folder, fmt.Sprintf("Tableau_suivi_erreur_%s.csv", participant)), false},
	}

	for _, f := range files {
		file, _, err := r.FormFile(f.field)
		if err != nil {
			if f.required {
				return "", fmt.Errorf("failed to get %s: %w", f.field, err)
			}
			continue
		}

		if err := saveFormFile(file, f.dest); err != nil {
			file.Close()
			return "", err
		}
		file.Close()
	}

	return studyDir, nil
}

func saveFormFile(src multipart.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// StartRun запускает анализ
// @Summary Запустить прогон анализа
// @Description Запускает зарегистрированный прогон; параметры тела переопределяют конфигурацию по умолчанию
// @Tags Analysis
// @Accept json
// @Produce json
// @Param run_id path string true "ID прогона"
// @Param config body models.RunConfig false "Переопределения конфигурации"
// @Success 202 {object} models.StartResponse "Прогон запущен"
// @Failure 404 {object} models.ErrorResponse "Прогон не найден"
// @Failure 409 {object} models.ErrorResponse "Прогон уже запущен"
// @Router /api/v1/runs/{run_id}/start [post]
func (h *HTTPHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	run, err := h.runStore.GetRun(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if run.Status == models.RunStatusRunning {
		respondError(w, http.StatusConflict, "Run is already in progress")
		return
	}

	var overrides models.RunConfig
	if err := json.NewDecoder(r.Body).Decode(&overrides); err == nil {
		applyOverrides(&run.Config, overrides)
	}

	// Проверяем методы до запуска, чтобы вернуть ошибку синхронно
	for _, method := range run.Config.Methods {
		if _, err := models.ParseCleaningMethod(string(method)); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	go func() {
		if err := h.runner.RunStudy(context.Background(), run); err != nil {
			log.Printf("[ERROR] Run %s failed: %v", runID, err)
		}
	}()

	respondJSON(w, http.StatusAccepted, models.StartResponse{
		RunID:  runID,
		Status: models.RunStatusRunning,
	})
}

// applyOverrides накладывает ненулевые поля запроса на конфигурацию прогона
func applyOverrides(cfg *models.RunConfig, overrides models.RunConfig) {
	if overrides.SamplingRate > 0 {
		cfg.SamplingRate = overrides.SamplingRate
	}
	if len(overrides.Methods) > 0 {
		cfg.Methods = overrides.Methods
	}
	if overrides.MinSegmentLength > 0 {
		cfg.MinSegmentLength = overrides.MinSegmentLength
	}
	if overrides.Verbose {
		cfg.Verbose = true
	}
}

// GetRun возвращает статус прогона
// @Summary Статус прогона
// @Description Возвращает состояние и счетчики прогресса прогона
// @Tags Analysis
// @Produce json
// @Param run_id path string true "ID прогона"
// @Success 200 {object} models.Run "Состояние прогона"
// @Failure 404 {object} models.ErrorResponse "Прогон не найден"
// @Router /api/v1/runs/{run_id} [get]
func (h *HTTPHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	run, err := h.runStore.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		log.Printf("[ERROR] Failed to get run %s: %v", runID, err)
		respondError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// GetResults возвращает результаты прогона
// @Summary Результаты прогона
// @Description Возвращает метрики ВСР, оценки качества, субъективные оценки и счетчики ошибок с фильтрами по участнику, методу и сегменту
// @Tags Analysis
// @Produce json
// @Param run_id path string true "ID прогона"
// @Param participant query string false "Фильтр по участнику"
// @Param method query string false "Фильтр по методу очистки"
// @Param segment query string false "Фильтр по сегменту"
// @Success 200 {object} models.RunResults "Результаты"
// @Failure 404 {object} models.ErrorResponse "Прогон не найден"
// @Router /api/v1/runs/{run_id}/results [get]
func (h *HTTPHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	if _, err := h.runStore.GetRun(r.Context(), runID); err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		// Хранилище прогонов недоступно, но архив может ответить сам
		log.Printf("[WARN] Run store unavailable for run %s, serving archived results: %v", runID, err)
	}

	filter := storage.ResultFilter{
		Participant: r.URL.Query().Get("participant"),
		Method:      r.URL.Query().Get("method"),
		Segment:     r.URL.Query().Get("segment"),
	}

	results, err := h.repository.GetResults(r.Context(), runID, filter)
	if err != nil {
		log.Printf("[ERROR] Failed to get results for run %s: %v", runID, err)
		respondError(w, http.StatusInternalServerError, "Failed to get results")
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// Health проверка живости
// @Summary Liveness проба
// @Tags Service
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// EnableCORS оборачивает обработчик CORS заголовками
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ===== Утилиты =====

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}
