package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/nbacklab/ecg-workload/internal/analysis"
	"github.com/nbacklab/ecg-workload/internal/config"
	"github.com/nbacklab/ecg-workload/internal/signal"
	"github.com/nbacklab/ecg-workload/internal/storage"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// newTestHandler собирает обработчик на хранилище в памяти и локальном DSP
func newTestHandler(t *testing.T) (*HTTPHandler, *storage.MemoryStore, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		SamplingRate:     250,
		CleaningMethod:   "biosppy",
		MinSegmentLength: 1000,
		StudyRoot:        t.TempDir(),
		UploadDir:        t.TempDir(),
		WorkerCount:      1,
	}

	store := storage.NewMemoryStore()
	runner := analysis.NewRunner(signal.NewLocalDSP(), store, store, &analysis.LogSink{}, 1, 0)
	return NewHTTPHandler(cfg, store, store, runner), store, cfg
}

func newRouter(h *HTTPHandler) *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

// writeParticipantDir создает минимальный набор файлов участника
func writeParticipantDir(t *testing.T, root, id string) {
	t.Helper()

	ecgDir := filepath.Join(root, id, "ECG")
	simuDir := filepath.Join(root, id, "SIMU")
	for _, dir := range []string{ecgDir, simuDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
	}

	files := map[string]string{
		filepath.Join(ecgDir, "rec_ECG.csv"):       "Time,EcgWaveform\n21/03/2024 10:00:00.000,512\n",
		filepath.Join(simuDir, "log_event.csv"):    "datetime;events\n2024-03-21 10:00:00.000;C_begin\n",
		filepath.Join(simuDir, "cog_evals.csv"):    "items;values\neffort_C;10\n",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

func uploadStudyDir(t *testing.T, router *mux.Router, dir string) models.UploadResponse {
	t.Helper()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("study_dir", dir); err != nil {
		t.Fatalf("failed to write form field: %v", err)
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/studies/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestUploadStudy_RegistersRun(t *testing.T) {
	handler, store, cfg := newTestHandler(t)
	router := newRouter(handler)

	writeParticipantDir(t, filepath.Join(cfg.StudyRoot, "study1"), "P01")
	writeParticipantDir(t, filepath.Join(cfg.StudyRoot, "study1"), "P02")

	resp := uploadStudyDir(t, router, "study1")

	if resp.RunID == "" {
		t.Fatal("expected run_id in response")
	}
	if len(resp.Participants) != 2 {
		t.Errorf("expected 2 participants, got %v", resp.Participants)
	}

	run, err := store.GetRun(context.Background(), resp.RunID)
	if err != nil {
		t.Fatalf("run must be stored: %v", err)
	}
	if run.Status != models.RunStatusPending {
		t.Errorf("expected PENDING status, got %s", run.Status)
	}
	if run.Config.MinSegmentLength != 1000 {
		t.Errorf("expected default config, got %+v", run.Config)
	}
}

func TestUploadStudy_EmptyDirRejected(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	router := newRouter(handler)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	form.WriteField("study_dir", "nothing-here")
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/studies/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	router := newRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStartRun_UnknownMethodRejected(t *testing.T) {
	handler, _, cfg := newTestHandler(t)
	router := newRouter(handler)

	writeParticipantDir(t, filepath.Join(cfg.StudyRoot, "study2"), "P01")
	resp := uploadStudyDir(t, router, "study2")

	body := strings.NewReader(`{"methods": ["foo"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/"+resp.RunID+"/start", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported method, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetResults_FilterByParticipant(t *testing.T) {
	handler, store, _ := newTestHandler(t)
	router := newRouter(handler)

	run := &models.Run{RunID: "run-r", Status: models.RunStatusDone, CreatedAt: time.Now()}
	if err := store.SaveRun(context.Background(), run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	store.SaveResults(context.Background(), &models.RunResults{
		RunID: "run-r",
		HRV: []models.HRVRecord{
			{Participant: "P01", Method: models.MethodBiosppy, Segment: "C"},
			{Participant: "P02", Method: models.MethodBiosppy, Segment: "C"},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-r/results?participant=P02", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var results models.RunResults
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}
	if len(results.HRV) != 1 || results.HRV[0].Participant != "P02" {
		t.Errorf("unexpected filtered results: %+v", results.HRV)
	}
}

// downRunStore имитирует недоступное хранилище прогонов
type downRunStore struct{}

func (s *downRunStore) SaveRun(ctx context.Context, run *models.Run) error { return nil }
func (s *downRunStore) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	return nil, fmt.Errorf("connection refused")
}
func (s *downRunStore) UpdateProgress(ctx context.Context, runID string, progress models.RunProgress) error {
	return nil
}
func (s *downRunStore) DeleteRun(ctx context.Context, runID string) error          { return nil }
func (s *downRunStore) SetRunTTL(ctx context.Context, runID string, ttl int) error { return nil }

func TestGetResults_ArchiveServesWhenRunStoreDown(t *testing.T) {
	cfg := &config.Config{
		SamplingRate:     250,
		CleaningMethod:   "biosppy",
		MinSegmentLength: 1000,
		WorkerCount:      1,
	}

	runStore := &downRunStore{}
	repository := storage.NewMemoryStore()
	repository.SaveResults(context.Background(), &models.RunResults{
		RunID: "run-d",
		HRV: []models.HRVRecord{
			{Participant: "P01", Method: models.MethodBiosppy, Segment: "C"},
		},
	})

	runner := analysis.NewRunner(signal.NewLocalDSP(), runStore, repository, &analysis.LogSink{}, 1, 0)
	router := newRouter(NewHTTPHandler(cfg, runStore, repository, runner))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-d/results", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Отказ хранилища прогонов не блокирует чтение архива
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from archive, got %d: %s", rec.Code, rec.Body.String())
	}

	var results models.RunResults
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}
	if len(results.HRV) != 1 || results.HRV[0].Participant != "P01" {
		t.Errorf("unexpected archived results: %+v", results.HRV)
	}
}

func TestHealth(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	router := newRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
