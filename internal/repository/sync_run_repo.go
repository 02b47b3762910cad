package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"venue-booking-backend/internal/models"
)

type SyncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *SyncRunRepository) Finish(ctx context.Context, run *models.SyncRun, status string, finishedAt time.Time) error {
	run.Status = status
	run.FinishedAt = &finishedAt
	run.DurationMs = finishedAt.Sub(run.StartedAt).Milliseconds()
	return r.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"processed":   run.Processed,
			"updated":     run.Updated,
			"skipped":     run.Skipped,
			"unmatched":   run.Unmatched,
			"failed":      run.Failed,
			"status":      status,
			"finished_at": finishedAt,
			"duration_ms": run.DurationMs,
		}).Error
}

func (r *SyncRunRepository) ListRecent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.SyncRun
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
