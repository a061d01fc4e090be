package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/astralstream/mediaexport/internal/models"
)

// exportJobRepo implements ExportJobRepository using GORM.
type exportJobRepo struct {
	db *gorm.DB
}

// NewExportJobRepository creates a new ExportJobRepository.
func NewExportJobRepository(db *gorm.DB) ExportJobRepository {
	return &exportJobRepo{db: db}
}

// Create stores a new job record.
func (r *exportJobRepo) Create(ctx context.Context, job *models.ExportJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("creating export job: %w", err)
	}
	return nil
}

// Update saves changes to an existing job record.
func (r *exportJobRepo) Update(ctx context.Context, job *models.ExportJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("updating export job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID. Returns nil without error when no row exists.
func (r *exportJobRepo) GetByID(ctx context.Context, id models.ULID) (*models.ExportJob, error) {
	var job models.ExportJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting export job by ID: %w", err)
	}
	return &job, nil
}

// GetAll retrieves all jobs, most recent first.
func (r *exportJobRepo) GetAll(ctx context.Context) ([]*models.ExportJob, error) {
	var jobs []*models.ExportJob
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("getting all export jobs: %w", err)
	}
	return jobs, nil
}

// GetByState retrieves jobs by state, most recent first.
func (r *exportJobRepo) GetByState(ctx context.Context, state models.ExportJobState) ([]*models.ExportJob, error) {
	var jobs []*models.ExportJob
	if err := r.db.WithContext(ctx).Where("state = ?", state).Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("getting export jobs by state: %w", err)
	}
	return jobs, nil
}

// DeleteOlderThan removes terminal jobs created before the cutoff.
func (r *exportJobRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ? AND state IN ?", cutoff, []models.ExportJobState{
			models.ExportJobCompleted, models.ExportJobFailed, models.ExportJobCancelled,
		}).
		Delete(&models.ExportJob{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting old export jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
