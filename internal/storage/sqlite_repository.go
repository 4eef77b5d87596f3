package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// SQLiteRepository реализует ResultRepository поверх локального файла SQLite.
// Используется в CLI режиме, когда PostgreSQL не настроен: схема и запросы
// общие с PostgresRepository.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository открывает (или создает) локальный файл архива
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL улучшает параллельное чтение при записи прогона
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createResultTables(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[STORE] SQLite result store initialized: %s", path)
	return &SQLiteRepository{db: db}, nil
}

// Close закрывает файл БД
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// SaveRun сохраняет или обновляет метаданные прогона
func (r *SQLiteRepository) SaveRun(ctx context.Context, run *models.Run) error {
	return saveRun(ctx, r.db, run)
}

// SaveResults архивирует все результаты прогона одной транзакцией
func (r *SQLiteRepository) SaveResults(ctx context.Context, results *models.RunResults) error {
	return saveResults(ctx, r.db, results)
}

// GetResults выбирает результаты прогона с учетом фильтра
func (r *SQLiteRepository) GetResults(ctx context.Context, runID string, filter ResultFilter) (*models.RunResults, error) {
	return queryResults(ctx, r.db, runID, filter)
}
