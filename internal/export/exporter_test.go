package export

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/astralstream/mediaexport/internal/container"
	"github.com/astralstream/mediaexport/internal/models"
	"github.com/astralstream/mediaexport/internal/repository"
	"github.com/astralstream/mediaexport/internal/service/progress"
)

func testRepo(t *testing.T) repository.ExportJobRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ExportJob{}))
	return repository.NewExportJobRepository(db)
}

func TestExportFullLength(t *testing.T) {
	source := makeFixture(t, true, true)
	output := filepath.Join(t.TempDir(), "out.mp4")

	exporter := New(Config{})
	result, err := exporter.Export(context.Background(), DefaultOptions(source, output), nil)
	require.NoError(t, err)

	assert.Equal(t, output, result.OutputPath)
	assert.Equal(t, int64(1_000_000), result.DurationMicros)
	assert.Greater(t, result.BytesWritten, int64(0))

	r, err := container.OpenReader(output)
	require.NoError(t, err)
	defer r.Close()

	tracks := r.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, fixtureVideoSamples, tracks[0].SampleCount())
	assert.Equal(t, fixtureAudioSamples, tracks[1].SampleCount())
}

func TestExportTrimmed(t *testing.T) {
	source := makeFixture(t, true, true)
	output := filepath.Join(t.TempDir(), "out.mp4")

	opts := DefaultOptions(source, output)
	opts.TrimStartMicros = 210_000
	opts.TrimEndMicros = 610_000

	var final float64
	exporter := New(Config{})
	result, err := exporter.Export(context.Background(), opts, func(f float64) { final = f })
	require.NoError(t, err)
	assert.Equal(t, int64(400_000), result.DurationMicros)
	assert.Equal(t, 1.0, final)

	r, err := container.OpenReader(output)
	require.NoError(t, err)
	defer r.Close()

	// Video: the sync seek lands at 200ms, samples before 210ms are
	// skipped, so the copy starts at 240ms rebased to 30ms.
	video, err := r.Track(1)
	require.NoError(t, err)
	assert.Equal(t, 10, video.SampleCount())

	require.NoError(t, r.SelectTrack(1))
	first, err := r.NextSample()
	require.NoError(t, err)
	assert.Equal(t, int64(30_000), first.TimeMicros)

	// Audio: every frame is a sync sample, so the first copied frame is the
	// first at or after 210ms.
	audio, err := r.Track(2)
	require.NoError(t, err)
	assert.Equal(t, 20, audio.SampleCount())

	require.NoError(t, r.SelectTrack(2))
	first, err = r.NextSample()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), first.TimeMicros)
}

func TestExportPlanHonorsTargets(t *testing.T) {
	source := makeFixture(t, true, false)
	output := filepath.Join(t.TempDir(), "out.mp4")

	opts := DefaultOptions(source, output)
	opts.TargetWidth = 320
	opts.TargetHeight = 180
	opts.TargetBitrate = 1_000_000
	opts.TargetFrameRate = 60

	exporter := New(Config{})
	result, err := exporter.Export(context.Background(), opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 320, result.Plan.Width)
	assert.Equal(t, 180, result.Plan.Height)
	assert.Equal(t, 1_000_000, result.Plan.Bitrate)
	assert.Equal(t, 60.0, result.Plan.FrameRate)
}

func TestExportVideoOnly(t *testing.T) {
	source := makeFixture(t, true, true)
	output := filepath.Join(t.TempDir(), "out.mp4")

	opts := DefaultOptions(source, output)
	opts.IncludeAudio = false

	exporter := New(Config{})
	_, err := exporter.Export(context.Background(), opts, nil)
	require.NoError(t, err)

	r, err := container.OpenReader(output)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, r.Tracks(), 1)
}

func TestExportNoVideoTrack(t *testing.T) {
	source := makeFixture(t, false, true)
	output := filepath.Join(t.TempDir(), "out.mp4")

	exporter := New(Config{})
	_, err := exporter.Export(context.Background(), DefaultOptions(source, output), nil)
	assert.ErrorIs(t, err, ErrNoVideoTrack)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportInvalidRange(t *testing.T) {
	source := makeFixture(t, true, false)
	output := filepath.Join(t.TempDir(), "out.mp4")

	opts := DefaultOptions(source, output)
	opts.TrimStartMicros = 500_000
	opts.TrimEndMicros = 100_000

	exporter := New(Config{})
	_, err := exporter.Export(context.Background(), opts, nil)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))

	// A start beyond the source duration resolves to an empty range.
	opts = DefaultOptions(source, output)
	opts.TrimStartMicros = 5_000_000

	_, err = exporter.Export(context.Background(), opts, nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestExportSourceOpenFailed(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.mp4")

	exporter := New(Config{})
	_, err := exporter.Export(context.Background(), DefaultOptions(filepath.Join(t.TempDir(), "missing.mp4"), output), nil)
	assert.ErrorIs(t, err, ErrSourceOpenFailed)
}

func TestExportSingleFlight(t *testing.T) {
	source := makeFixture(t, true, false)
	dir := t.TempDir()

	exporter := New(Config{})

	var once sync.Once
	started := make(chan struct{})
	block := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = exporter.Export(context.Background(),
			DefaultOptions(source, filepath.Join(dir, "a.mp4")),
			func(float64) {
				once.Do(func() { close(started) })
				<-block
			})
	}()

	<-started
	assert.True(t, exporter.Active())

	_, err := exporter.Export(context.Background(),
		DefaultOptions(source, filepath.Join(dir, "b.mp4")), nil)
	assert.ErrorIs(t, err, ErrExportInProgress)

	close(block)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, exporter.Active())

	// A new export succeeds once the first finished.
	_, err = exporter.Export(context.Background(),
		DefaultOptions(source, filepath.Join(dir, "c.mp4")), nil)
	require.NoError(t, err)
}

func TestExportCancellation(t *testing.T) {
	source := makeFixture(t, true, false)
	output := filepath.Join(t.TempDir(), "out.mp4")

	exporter := New(Config{})

	var once sync.Once
	started := make(chan struct{})
	block := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var exportErr error
	go func() {
		defer wg.Done()
		_, exportErr = exporter.Export(context.Background(),
			DefaultOptions(source, output),
			func(float64) {
				once.Do(func() { close(started) })
				<-block
			})
	}()

	<-started
	exporter.Cancel()
	close(block)
	wg.Wait()

	assert.ErrorIs(t, exportErr, ErrExportCancelled)

	// The partial output was removed.
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
	assert.False(t, exporter.Active())
}

func TestExportRecordsHistory(t *testing.T) {
	source := makeFixture(t, true, true)
	output := filepath.Join(t.TempDir(), "out.mp4")
	repo := testRepo(t)

	exporter := New(Config{Jobs: repo})
	result, err := exporter.Export(context.Background(), DefaultOptions(source, output), nil)
	require.NoError(t, err)

	jobs, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job := jobs[0]
	assert.Equal(t, models.ExportJobCompleted, job.State)
	assert.Equal(t, source, job.SourcePath)
	assert.Equal(t, output, job.OutputPath)
	assert.Equal(t, result.BytesWritten, job.BytesWritten)
	assert.Equal(t, 1.0, job.Progress)
	assert.NotNil(t, job.FinishedAt)
}

func TestExportRecordsFailure(t *testing.T) {
	source := makeFixture(t, false, true)
	output := filepath.Join(t.TempDir(), "out.mp4")
	repo := testRepo(t)

	exporter := New(Config{Jobs: repo})
	_, err := exporter.Export(context.Background(), DefaultOptions(source, output), nil)
	require.ErrorIs(t, err, ErrNoVideoTrack)

	jobs, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ExportJobFailed, jobs[0].State)
	assert.Contains(t, jobs[0].Error, "no video track")
}

func TestExportPublishesProgress(t *testing.T) {
	source := makeFixture(t, true, true)
	output := filepath.Join(t.TempDir(), "out.mp4")
	service := progress.NewService(nil)

	id, events := service.Subscribe(256)
	defer service.Unsubscribe(id)

	exporter := New(Config{Progress: service})
	_, err := exporter.Export(context.Background(), DefaultOptions(source, output), nil)
	require.NoError(t, err)

	var sawCompleted bool
	deadline := time.After(time.Second)
	for !sawCompleted {
		select {
		case e := <-events:
			if e.EventType == progress.EventTypeCompleted {
				sawCompleted = true
				assert.Equal(t, 1.0, e.Operation.Progress)
				assert.Equal(t, output, e.Operation.OwnerKey)
			}
		case <-deadline:
			t.Fatal("timed out waiting for completion event")
		}
	}

	ops := service.ListOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, progress.StateCompleted, ops[0].State)
}

func TestResolveRange(t *testing.T) {
	start, end, err := resolveRange(Options{TrimStartMicros: UnsetMicros, TrimEndMicros: UnsetMicros}, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(1_000_000), end)

	// End clamps to the track duration.
	_, end, err = resolveRange(Options{TrimStartMicros: UnsetMicros, TrimEndMicros: 5_000_000}, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), end)

	_, _, err = resolveRange(Options{TrimStartMicros: 2_000_000, TrimEndMicros: UnsetMicros}, 1_000_000)
	assert.ErrorIs(t, err, ErrInvalidRange)
}
