package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// PostgresRepository реализует ResultRepository для PostgreSQL
// (Infrastructure Layer)
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepositoryFromDSN создает репозиторий из строки подключения
func NewPostgresRepositoryFromDSN(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройки пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	repo := &PostgresRepository{db: db}
	if err := repo.createTables(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Close закрывает соединение с БД
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) createTables(ctx context.Context) error {
	return createResultTables(ctx, r.db)
}

// createResultTables создает схему архива результатов. DDL и запросы общие
// для PostgreSQL и SQLite: обе СУБД принимают плейсхолдеры $n и
// ON CONFLICT ... DO UPDATE.
func createResultTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			study_dir TEXT NOT NULL,
			status TEXT NOT NULL,
			config JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS hrv_records (
			run_id TEXT NOT NULL,
			participant TEXT NOT NULL,
			method TEXT NOT NULL,
			segment TEXT NOT NULL,
			mean_hr DOUBLE PRECISION, mean_nn DOUBLE PRECISION,
			sdnn DOUBLE PRECISION, rmssd DOUBLE PRECISION,
			sdsd DOUBLE PRECISION, cvnn DOUBLE PRECISION,
			median_nn DOUBLE PRECISION, mad_nn DOUBLE PRECISION,
			pnn50 DOUBLE PRECISION, pnn20 DOUBLE PRECISION,
			vlf DOUBLE PRECISION, lf DOUBLE PRECISION, hf DOUBLE PRECISION,
			lf_hf DOUBLE PRECISION, lf_n DOUBLE PRECISION, hf_n DOUBLE PRECISION,
			PRIMARY KEY (run_id, participant, method, segment)
		)`,
		`CREATE TABLE IF NOT EXISTS quality_scores (
			run_id TEXT NOT NULL,
			participant TEXT NOT NULL,
			method TEXT NOT NULL,
			segment TEXT NOT NULL,
			rating TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, participant, method, segment)
		)`,
		`CREATE TABLE IF NOT EXISTS quality_indices (
			run_id TEXT NOT NULL,
			participant TEXT NOT NULL,
			method TEXT NOT NULL,
			quality_index DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, participant, method)
		)`,
		`CREATE TABLE IF NOT EXISTS subjective_scores (
			run_id TEXT NOT NULL,
			participant TEXT NOT NULL,
			segment TEXT NOT NULL,
			mental_demand DOUBLE PRECISION, physical_demand DOUBLE PRECISION,
			temporal_demand DOUBLE PRECISION, own_performance DOUBLE PRECISION,
			effort DOUBLE PRECISION, frustration_level DOUBLE PRECISION,
			total_workload DOUBLE PRECISION,
			PRIMARY KEY (run_id, participant, segment)
		)`,
		`CREATE TABLE IF NOT EXISTS error_counts (
			run_id TEXT NOT NULL,
			participant TEXT NOT NULL,
			segment TEXT NOT NULL,
			by_type JSONB NOT NULL,
			total INTEGER NOT NULL,
			PRIMARY KEY (run_id, participant, segment)
		)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// SaveRun сохраняет или обновляет метаданные прогона
func (r *PostgresRepository) SaveRun(ctx context.Context, run *models.Run) error {
	return saveRun(ctx, r.db, run)
}

func saveRun(ctx context.Context, db *sql.DB, run *models.Run) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
		INSERT INTO runs (run_id, study_dir, status, config, created_at, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			error = EXCLUDED.error
	`

	_, err = db.ExecContext(ctx, query,
		run.RunID,
		run.StudyDir,
		run.Status,
		configJSON,
		run.CreatedAt,
		run.StartedAt,
		run.FinishedAt,
		run.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// SaveResults архивирует все результаты прогона одной транзакцией
func (r *PostgresRepository) SaveResults(ctx context.Context, results *models.RunResults) error {
	return saveResults(ctx, r.db, results)
}

func saveResults(ctx context.Context, db *sql.DB, results *models.RunResults) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveHRVRecords(ctx, tx, results.RunID, results.HRV); err != nil {
		return err
	}
	if err := saveQualityScores(ctx, tx, results.RunID, results.Quality); err != nil {
		return err
	}
	if err := saveQualityIndices(ctx, tx, results.RunID, results.Indices); err != nil {
		return err
	}
	if err := saveSubjectiveScores(ctx, tx, results.RunID, results.Subjective); err != nil {
		return err
	}
	if err := saveErrorCounts(ctx, tx, results.RunID, results.Errors); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func saveHRVRecords(ctx context.Context, tx *sql.Tx, runID string, records []models.HRVRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO hrv_records (
			run_id, participant, method, segment,
			mean_hr, mean_nn, sdnn, rmssd, sdsd, cvnn, median_nn, mad_nn,
			pnn50, pnn20, vlf, lf, hf, lf_hf, lf_n, hf_n
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (run_id, participant, method, segment) DO UPDATE SET
			mean_hr = EXCLUDED.mean_hr, mean_nn = EXCLUDED.mean_nn,
			sdnn = EXCLUDED.sdnn, rmssd = EXCLUDED.rmssd,
			sdsd = EXCLUDED.sdsd, cvnn = EXCLUDED.cvnn,
			median_nn = EXCLUDED.median_nn, mad_nn = EXCLUDED.mad_nn,
			pnn50 = EXCLUDED.pnn50, pnn20 = EXCLUDED.pnn20,
			vlf = EXCLUDED.vlf, lf = EXCLUDED.lf, hf = EXCLUDED.hf,
			lf_hf = EXCLUDED.lf_hf, lf_n = EXCLUDED.lf_n, hf_n = EXCLUDED.hf_n
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			runID, rec.Participant, rec.Method, rec.Segment,
			rec.MeanHR, rec.MeanNN, rec.SDNN, rec.RMSSD, rec.SDSD, rec.CVNN,
			rec.MedianNN, rec.MadNN, rec.PNN50, rec.PNN20,
			rec.VLF, rec.LF, rec.HF, rec.LFHF, rec.LFn, rec.HFn,
		)
		if err != nil {
			return fmt.Errorf("failed to insert hrv record: %w", err)
		}
	}
	return nil
}

func saveQualityScores(ctx context.Context, tx *sql.Tx, runID string, scores []models.QualityScore) error {
	if len(scores) == 0 {
		return nil
	}

	query := `
		INSERT INTO quality_scores (run_id, participant, method, segment, rating, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, participant, method, segment) DO UPDATE SET
			rating = EXCLUDED.rating, score = EXCLUDED.score
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, score := range scores {
		if _, err := stmt.ExecContext(ctx, runID, score.Participant, score.Method, score.Segment, score.Rating, score.Score); err != nil {
			return fmt.Errorf("failed to insert quality score: %w", err)
		}
	}
	return nil
}

func saveQualityIndices(ctx context.Context, tx *sql.Tx, runID string, indices []models.QualityIndex) error {
	if len(indices) == 0 {
		return nil
	}

	query := `
		INSERT INTO quality_indices (run_id, participant, method, quality_index)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, participant, method) DO UPDATE SET
			quality_index = EXCLUDED.quality_index
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, index := range indices {
		if _, err := stmt.ExecContext(ctx, runID, index.Participant, index.Method, index.Index); err != nil {
			return fmt.Errorf("failed to insert quality index: %w", err)
		}
	}
	return nil
}

func saveSubjectiveScores(ctx context.Context, tx *sql.Tx, runID string, scores []models.SubjectiveScore) error {
	if len(scores) == 0 {
		return nil
	}

	query := `
		INSERT INTO subjective_scores (
			run_id, participant, segment,
			mental_demand, physical_demand, temporal_demand,
			own_performance, effort, frustration_level, total_workload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, participant, segment) DO UPDATE SET
			mental_demand = EXCLUDED.mental_demand,
			physical_demand = EXCLUDED.physical_demand,
			temporal_demand = EXCLUDED.temporal_demand,
			own_performance = EXCLUDED.own_performance,
			effort = EXCLUDED.effort,
			frustration_level = EXCLUDED.frustration_level,
			total_workload = EXCLUDED.total_workload
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, score := range scores {
		_, err := stmt.ExecContext(ctx,
			runID, score.Participant, score.Segment,
			score.MentalDemand, score.PhysicalDemand, score.TemporalDemand,
			score.OwnPerformance, score.Effort, score.FrustrationLevel, score.TotalWorkload,
		)
		if err != nil {
			return fmt.Errorf("failed to insert subjective score: %w", err)
		}
	}
	return nil
}

func saveErrorCounts(ctx context.Context, tx *sql.Tx, runID string, counts []models.ErrorCount) error {
	if len(counts) == 0 {
		return nil
	}

	query := `
		INSERT INTO error_counts (run_id, participant, segment, by_type, total)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, participant, segment) DO UPDATE SET
			by_type = EXCLUDED.by_type, total = EXCLUDED.total
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, count := range counts {
		byTypeJSON, err := json.Marshal(count.ByType)
		if err != nil {
			return fmt.Errorf("failed to marshal error types: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, count.Participant, count.Segment, byTypeJSON, count.Total); err != nil {
			return fmt.Errorf("failed to insert error count: %w", err)
		}
	}
	return nil
}

// GetResults выбирает результаты прогона с учетом фильтра
func (r *PostgresRepository) GetResults(ctx context.Context, runID string, filter ResultFilter) (*models.RunResults, error) {
	return queryResults(ctx, r.db, runID, filter)
}

func queryResults(ctx context.Context, db *sql.DB, runID string, filter ResultFilter) (*models.RunResults, error) {
	results := &models.RunResults{RunID: runID}

	hrvQuery := `
		SELECT participant, method, segment,
			mean_hr, mean_nn, sdnn, rmssd, sdsd, cvnn, median_nn, mad_nn,
			pnn50, pnn20, vlf, lf, hf, lf_hf, lf_n, hf_n
		FROM hrv_records
		WHERE run_id = $1
		ORDER BY participant, method, segment
	`
	rows, err := db.QueryContext(ctx, hrvQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hrv records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.HRVRecord
		err := rows.Scan(
			&rec.Participant, &rec.Method, &rec.Segment,
			&rec.MeanHR, &rec.MeanNN, &rec.SDNN, &rec.RMSSD, &rec.SDSD, &rec.CVNN,
			&rec.MedianNN, &rec.MadNN, &rec.PNN50, &rec.PNN20,
			&rec.VLF, &rec.LF, &rec.HF, &rec.LFHF, &rec.LFn, &rec.HFn,
		)
		if err != nil {
			continue // Пропускаем поврежденные записи
		}
		if filter.Match(rec.Participant, string(rec.Method), rec.Segment) {
			results.HRV = append(results.HRV, rec)
		}
	}

	qualityQuery := `
		SELECT participant, method, segment, rating, score
		FROM quality_scores
		WHERE run_id = $1
		ORDER BY participant, method, segment
	`
	qRows, err := db.QueryContext(ctx, qualityQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quality scores: %w", err)
	}
	defer qRows.Close()

	for qRows.Next() {
		var score models.QualityScore
		if err := qRows.Scan(&score.Participant, &score.Method, &score.Segment, &score.Rating, &score.Score); err != nil {
			continue
		}
		if filter.Match(score.Participant, score.Method, score.Segment) {
			results.Quality = append(results.Quality, score)
		}
	}

	indexQuery := `
		SELECT participant, method, quality_index
		FROM quality_indices
		WHERE run_id = $1
		ORDER BY participant, method
	`
	iRows, err := db.QueryContext(ctx, indexQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quality indices: %w", err)
	}
	defer iRows.Close()

	for iRows.Next() {
		var index models.QualityIndex
		if err := iRows.Scan(&index.Participant, &index.Method, &index.Index); err != nil {
			continue
		}
		if filter.Match(index.Participant, index.Method, "") {
			results.Indices = append(results.Indices, index)
		}
	}

	subjQuery := `
		SELECT participant, segment,
			mental_demand, physical_demand, temporal_demand,
			own_performance, effort, frustration_level, total_workload
		FROM subjective_scores
		WHERE run_id = $1
		ORDER BY participant, segment
	`
	sRows, err := db.QueryContext(ctx, subjQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subjective scores: %w", err)
	}
	defer sRows.Close()

	for sRows.Next() {
		var score models.SubjectiveScore
		err := sRows.Scan(
			&score.Participant, &score.Segment,
			&score.MentalDemand, &score.PhysicalDemand, &score.TemporalDemand,
			&score.OwnPerformance, &score.Effort, &score.FrustrationLevel, &score.TotalWorkload,
		)
		if err != nil {
			continue
		}
		if filter.Match(score.Participant, "", score.Segment) {
			results.Subjective = append(results.Subjective, score)
		}
	}

	errorQuery := `
		SELECT participant, segment, by_type, total
		FROM error_counts
		WHERE run_id = $1
		ORDER BY participant, segment
	`
	eRows, err := db.QueryContext(ctx, errorQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get error counts: %w", err)
	}
	defer eRows.Close()

	for eRows.Next() {
		var count models.ErrorCount
		var byTypeJSON []byte
		if err := eRows.Scan(&count.Participant, &count.Segment, &byTypeJSON, &count.Total); err != nil {
			continue
		}
		if err := json.Unmarshal(byTypeJSON, &count.ByType); err != nil {
			continue
		}
		if filter.Match(count.Participant, "", count.Segment) {
			results.Errors = append(results.Errors, count)
		}
	}

	return results, nil
}
