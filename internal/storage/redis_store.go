package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// RedisStore реализует RunStore для Redis (Infrastructure Layer)
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore создает новый экземпляр RedisStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// ===== Ключи Redis =====

func runKey(runID string) string {
	return fmt.Sprintf("run:%s:metadata", runID)
}

func progressKey(runID string) string {
	return fmt.Sprintf("run:%s:progress", runID)
}

// ===== Состояние прогонов =====

func (r *RedisStore) SaveRun(ctx context.Context, run *models.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return r.client.Set(ctx, runKey(run.RunID), data, 0).Err()
}

func (r *RedisStore) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	data, err := r.client.Get(ctx, runKey(runID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("run %s: %w", runID, models.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run models.Run
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	// Счетчики прогресса лежат отдельным hash и могут быть свежее метаданных
	if progress, err := r.getProgress(ctx, runID); err == nil {
		run.Progress = *progress
	}

	return &run, nil
}

// UpdateProgress обновляет счетчики прогресса без перезаписи метаданных.
// Hash позволяет обновлять отдельные поля на каждом шаге прогона.
func (r *RedisStore) UpdateProgress(ctx context.Context, runID string, progress models.RunProgress) error {
	fields := map[string]interface{}{
		"total_participants": progress.TotalParticipants,
		"completed":          progress.Completed,
		"skipped":            progress.Skipped,
		"current_stage":      progress.CurrentStage,
	}

	return r.client.HSet(ctx, progressKey(runID), fields).Err()
}

func (r *RedisStore) getProgress(ctx context.Context, runID string) (*models.RunProgress, error) {
	data, err := r.client.HGetAll(ctx, progressKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("progress not found for run: %s", runID)
	}

	progress := &models.RunProgress{}
	if val, ok := data["total_participants"]; ok {
		progress.TotalParticipants, _ = strconv.Atoi(val)
	}
	if val, ok := data["completed"]; ok {
		progress.Completed, _ = strconv.Atoi(val)
	}
	if val, ok := data["skipped"]; ok {
		progress.Skipped, _ = strconv.Atoi(val)
	}
	progress.CurrentStage = data["current_stage"]

	return progress, nil
}

func (r *RedisStore) DeleteRun(ctx context.Context, runID string) error {
	// Удаляем все ключи, связанные с прогоном
	pattern := fmt.Sprintf("run:%s:*", runID)

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	pipe := r.client.Pipeline()

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) SetRunTTL(ctx context.Context, runID string, ttlSeconds int) error {
	pattern := fmt.Sprintf("run:%s:*", runID)
	duration := time.Duration(ttlSeconds) * time.Second

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	pipe := r.client.Pipeline()

	for iter.Next(ctx) {
		pipe.Expire(ctx, iter.Val(), duration)
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	_, err := pipe.Exec(ctx)
	return err
}
