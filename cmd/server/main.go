package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nbacklab/ecg-workload/internal/analysis"
	"github.com/nbacklab/ecg-workload/internal/config"
	"github.com/nbacklab/ecg-workload/internal/health"
	"github.com/nbacklab/ecg-workload/internal/server"
	dsp "github.com/nbacklab/ecg-workload/internal/signal"
	"github.com/nbacklab/ecg-workload/internal/storage"
	"github.com/nbacklab/ecg-workload/internal/ws"

	_ "github.com/nbacklab/ecg-workload/docs" // Swagger docs
)

// @title ECG Workload Analysis API
// @version 1.0
// @description API для загрузки и анализа записей ЭКГ исследования ментальной нагрузки (протокол n-back).
// @description
// @description ## Описание
// @description Сервис сегментирует непрерывную запись ЭКГ по журналу событий эксперимента,
// @description очищает сегменты через внешнюю DSP службу, вычисляет метрики ВСР и индексы качества
// @description и архивирует результаты вместе с субъективными оценками NASA-TLX и ошибками пилотирования.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http

func main() {
	log.Printf("[INFO] Starting ECG workload analysis server...")

	cfg := config.Load()
	log.Printf("[INFO] Configuration loaded: http_port=%s sampling_rate=%d method=%s min_segment_length=%d",
		cfg.HTTPPort, cfg.SamplingRate, cfg.CleaningMethod, cfg.MinSegmentLength)

	healthServer := health.NewServer()

	// Состояние прогонов: Redis, при недоступности - хранилище в памяти
	memory := storage.NewMemoryStore()
	var runStore storage.RunStore = memory

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("[WARN] Redis unavailable (%v), run state kept in memory", err)
		healthServer.SetNotServingStatus(health.ComponentRunStore)
	} else {
		log.Printf("[INFO] Connected to Redis at %s", cfg.RedisAddr)
		runStore = storage.NewRedisStore(redisClient)
		healthServer.SetServingStatus(health.ComponentRunStore)
		defer redisClient.Close()
	}
	cancelPing()

	// Архив результатов: PostgreSQL, затем SQLite, затем память
	var repository storage.ResultRepository = memory
	if pg, err := storage.NewPostgresRepositoryFromDSN(cfg.PostgresDSN); err != nil {
		log.Printf("[WARN] PostgreSQL unavailable (%v)", err)
		if cfg.SQLitePath != "" {
			lite, liteErr := storage.NewSQLiteRepository(cfg.SQLitePath)
			if liteErr != nil {
				log.Printf("[WARN] SQLite unavailable (%v), results kept in memory", liteErr)
				healthServer.SetNotServingStatus(health.ComponentArchive)
			} else {
				repository = lite
				healthServer.SetServingStatus(health.ComponentArchive)
				defer lite.Close()
			}
		} else {
			log.Printf("[WARN] Results kept in memory")
			healthServer.SetNotServingStatus(health.ComponentArchive)
		}
	} else {
		log.Printf("[INFO] Connected to PostgreSQL")
		repository = pg
		healthServer.SetServingStatus(health.ComponentArchive)
		defer pg.Close()
	}

	// DSP коллаборатор: внешняя служба или локальная замена
	var processor dsp.Processor
	if cfg.DSPServiceURL != "" {
		processor = dsp.NewClient(cfg.DSPServiceURL, time.Duration(cfg.DSPTimeoutMS)*time.Millisecond)
		log.Printf("[INFO] Using DSP service at %s", cfg.DSPServiceURL)
		healthServer.SetServingStatus(health.ComponentDSP)
	} else {
		processor = dsp.NewLocalDSP()
		log.Printf("[WARN] DSP_SERVICE_URL not set, using local DSP fallback")
		healthServer.SetNotServingStatus(health.ComponentDSP)
	}

	hub := ws.NewHub()
	go hub.Run()

	runner := analysis.NewRunner(processor, runStore, repository, hub, cfg.WorkerCount, cfg.RunTTLSeconds)
	httpHandler := server.NewHTTPHandler(cfg, runStore, repository, runner)

	router := mux.NewRouter()
	httpHandler.RegisterRoutes(router)
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      server.EnableCORS(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health для оркестрации, когда настроен порт
	var grpcServer *grpc.Server
	if cfg.GRPCHealthPort != "" {
		grpcServer = grpc.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus(health.ComponentAPI)

		address := fmt.Sprintf(":%s", cfg.GRPCHealthPort)
		listener, err := net.Listen("tcp", address)
		if err != nil {
			log.Fatalf("[FATAL] Failed to listen on %s: %v", address, err)
		}
		go func() {
			log.Printf("[INFO] gRPC health server listening on %s", address)
			if err := grpcServer.Serve(listener); err != nil {
				log.Printf("[ERROR] gRPC health server error: %v", err)
			}
		}()
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("[INFO] HTTP server listening on :%s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrChan:
		log.Printf("[ERROR] Server error: %v", err)

	case sig := <-shutdownChan:
		log.Printf("[INFO] Received signal %v, starting graceful shutdown...", sig)

		if grpcServer != nil {
			healthServer.SetNotServingStatus(health.ComponentAPI)
			grpcServer.GracefulStop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] Graceful shutdown timeout, forcing stop: %v", err)
		}

		log.Printf("[INFO] Graceful shutdown completed")
	}

	log.Printf("[INFO] Server stopped")
}
