package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dsp "github.com/nbacklab/ecg-workload/internal/signal"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// dspstub поднимает автономную DSP службу на локальных эвристиках.
// Служба отвечает на тот же HTTP интерфейс, что и внешний Python стек,
// и используется для разработки и интеграционных проверок.
func main() {
	port := os.Getenv("DSP_STUB_PORT")
	if port == "" {
		port = "8090"
	}

	local := dsp.NewLocalDSP()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/clean", func(w http.ResponseWriter, r *http.Request) {
		var req dsp.CleanRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		cleaned, err := local.Clean(r.Context(), req.Signal, req.SamplingRate, models.CleaningMethod(req.Method))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, dsp.CleanResponse{Signal: cleaned})
	})

	mux.HandleFunc("/api/v1/peaks", func(w http.ResponseWriter, r *http.Request) {
		var req dsp.PeaksRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		peaks, err := local.DetectPeaks(r.Context(), req.Signal, req.SamplingRate, req.CorrectArtifacts)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, dsp.PeaksResponse{Peaks: peaks})
	})

	mux.HandleFunc("/api/v1/quality", func(w http.ResponseWriter, r *http.Request) {
		var req dsp.QualityRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		rating, err := local.ScoreQuality(r.Context(), req.Signal, req.SamplingRate)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, dsp.QualityResponse{Rating: rating})
	})

	mux.HandleFunc("/api/v1/rate", func(w http.ResponseWriter, r *http.Request) {
		var req dsp.RateRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		rate, err := local.EstimateRate(r.Context(), req.Peaks, req.SamplingRate, req.Length)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, dsp.RateResponse{Rate: rate})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("[INFO] DSP stub listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[FATAL] DSP stub failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("[INFO] Shutting down DSP stub...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[WARN] Forced shutdown: %v", err)
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
