package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/astralstream/mediaexport/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.ExportJob{}))
	return db
}

func newTestJob(state models.ExportJobState) *models.ExportJob {
	return &models.ExportJob{
		SourcePath:   "/videos/source.mp4",
		OutputPath:   "/exports/out.mp4",
		Format:       "mp4",
		Quality:      "high",
		IncludeAudio: true,
		State:        state,
		StartedAt:    time.Now(),
	}
}

func TestExportJobRepo_CreateAndGet(t *testing.T) {
	repo := NewExportJobRepository(setupTestDB(t))
	ctx := context.Background()

	job := newTestJob(models.ExportJobRunning)
	require.NoError(t, repo.Create(ctx, job))
	assert.False(t, job.ID.IsZero())

	found, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, job.SourcePath, found.SourcePath)
	assert.Equal(t, models.ExportJobRunning, found.State)
}

func TestExportJobRepo_GetByIDMissing(t *testing.T) {
	repo := NewExportJobRepository(setupTestDB(t))

	found, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestExportJobRepo_Update(t *testing.T) {
	repo := NewExportJobRepository(setupTestDB(t))
	ctx := context.Background()

	job := newTestJob(models.ExportJobRunning)
	require.NoError(t, repo.Create(ctx, job))

	now := time.Now()
	job.State = models.ExportJobCompleted
	job.Progress = 1
	job.BytesWritten = 1024
	job.FinishedAt = &now
	require.NoError(t, repo.Update(ctx, job))

	found, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportJobCompleted, found.State)
	assert.Equal(t, int64(1024), found.BytesWritten)
	assert.NotNil(t, found.FinishedAt)
}

func TestExportJobRepo_GetAllAndByState(t *testing.T) {
	repo := NewExportJobRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestJob(models.ExportJobRunning)))
	require.NoError(t, repo.Create(ctx, newTestJob(models.ExportJobCompleted)))
	require.NoError(t, repo.Create(ctx, newTestJob(models.ExportJobCompleted)))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	completed, err := repo.GetByState(ctx, models.ExportJobCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	running, err := repo.GetByState(ctx, models.ExportJobRunning)
	require.NoError(t, err)
	assert.Len(t, running, 1)
}

func TestExportJobRepo_DeleteOlderThan(t *testing.T) {
	repo := NewExportJobRepository(setupTestDB(t))
	ctx := context.Background()

	old := newTestJob(models.ExportJobCompleted)
	require.NoError(t, repo.Create(ctx, old))
	recent := newTestJob(models.ExportJobCompleted)
	require.NoError(t, repo.Create(ctx, recent))
	active := newTestJob(models.ExportJobRunning)
	require.NoError(t, repo.Create(ctx, active))

	// Make one terminal job old enough to prune.
	db := setupField(t, repo)
	require.NoError(t, db.Model(old).Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

// setupField exposes the repo's underlying gorm handle for test fixups.
func setupField(t *testing.T, repo ExportJobRepository) *gorm.DB {
	t.Helper()
	r, ok := repo.(*exportJobRepo)
	require.True(t, ok)
	return r.db
}
