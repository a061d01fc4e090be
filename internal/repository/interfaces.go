// Package repository provides data access for mediaexport entities.
package repository

import (
	"context"
	"time"

	"github.com/astralstream/mediaexport/internal/models"
)

// ExportJobRepository persists export job history.
type ExportJobRepository interface {
	// Create stores a new job record.
	Create(ctx context.Context, job *models.ExportJob) error
	// Update saves changes to an existing job record.
	Update(ctx context.Context, job *models.ExportJob) error
	// GetByID returns a job by ID, or nil if it does not exist.
	GetByID(ctx context.Context, id models.ULID) (*models.ExportJob, error)
	// GetAll returns all jobs, most recent first.
	GetAll(ctx context.Context) ([]*models.ExportJob, error)
	// GetByState returns jobs in the given state, most recent first.
	GetByState(ctx context.Context, state models.ExportJobState) ([]*models.ExportJob, error)
	// DeleteOlderThan removes terminal jobs created before the cutoff and
	// returns how many rows were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
