package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/astralstream/mediaexport/internal/container"
	"github.com/astralstream/mediaexport/internal/models"
	"github.com/astralstream/mediaexport/internal/observability"
	"github.com/astralstream/mediaexport/internal/repository"
	"github.com/astralstream/mediaexport/internal/service/progress"
)

// Progress weights for the two copy stages. Video dominates the work, so a
// video+audio export maps video to the first 70% and audio to the rest. A
// video-only export uses the full range.
const (
	videoStageWeight = 0.7
	audioStageWeight = 0.3
)

// Config wires an Exporter's collaborators. Progress and Jobs are optional;
// a nil Progress disables event broadcast, a nil Jobs disables history.
type Config struct {
	Logger          *slog.Logger
	Progress        *progress.Service
	Jobs            repository.ExportJobRepository
	FragmentSamples int
	// KeepPartialOnError leaves the partial output file in place after a
	// failed run instead of deleting it.
	KeepPartialOnError bool
}

// Result describes a completed export.
type Result struct {
	// OutputPath is the written file.
	OutputPath string `json:"output_path"`
	// BytesWritten is the final output size in bytes.
	BytesWritten int64 `json:"bytes_written"`
	// DurationMicros is the trimmed output duration in microseconds.
	DurationMicros int64 `json:"duration_micros"`
	// Plan is the resolved output configuration.
	Plan OutputPlan `json:"plan"`
	// JobID is the history record ID, empty when history is disabled.
	JobID string `json:"job_id,omitempty"`
}

// Exporter runs trim-and-copy exports. At most one export runs at a time per
// Exporter; a second Export call while one is active fails with
// ErrExportInProgress. Cancel aborts the active run cooperatively at the
// next sample boundary.
type Exporter struct {
	logger *slog.Logger
	cfg    Config

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
}

// New creates an exporter.
func New(cfg Config) *Exporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		logger: observability.WithComponent(logger, "exporter"),
		cfg:    cfg,
	}
}

// Active reports whether an export is currently running.
func (e *Exporter) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Cancel requests cancellation of the active export, if any. The export
// worker observes it between samples, removes the partial output, and
// returns ErrExportCancelled.
func (e *Exporter) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Export runs one export to completion. onProgress, when non-nil, receives
// the overall fraction in [0,1] from the worker goroutine.
func (e *Exporter) Export(ctx context.Context, opts Options, onProgress progress.Func) (result *Result, err error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return nil, ErrExportInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.active = true
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.active = false
		e.cancel = nil
		e.mu.Unlock()
	}()

	logger := e.logger.With(
		"source", opts.SourcePath,
		"output", opts.OutputPath,
		"quality", opts.Quality)
	defer observability.TimedOperation(runCtx, logger, "export", &err)()

	job := e.createJob(runCtx, opts)
	manager := e.startOperation(opts)

	result, err = e.run(runCtx, opts, manager, onProgress)
	e.finishJob(opts, job, result, err)
	e.finishOperation(manager, err)
	return result, err
}

// run performs the export body. Cleanup of the partial output on failure
// happens here so callers only ever see a complete file or none.
func (e *Exporter) run(ctx context.Context, opts Options, manager *progress.OperationManager, onProgress progress.Func) (*Result, error) {
	if dir := filepath.Dir(opts.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOutputPathInvalid, err)
		}
	}

	reader, err := container.OpenReader(opts.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceOpenFailed, opts.SourcePath, err)
	}
	defer reader.Close()

	descs := describeTracks(reader)
	video, ok := firstTrack(descs, MediaTypeVideo)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoVideoTrack, opts.SourcePath)
	}
	audio, hasAudio := firstTrack(descs, MediaTypeAudio)
	hasAudio = hasAudio && opts.IncludeAudio

	startMicros, endMicros, err := resolveRange(opts, video.DurationMicros)
	if err != nil {
		return nil, err
	}

	plan := PlanOutputFormat(video, opts)
	e.logger.Debug("output planned",
		"width", plan.Width,
		"height", plan.Height,
		"bitrate", plan.Bitrate,
		"frame_rate", plan.FrameRate,
		"include_audio", hasAudio)

	writer, err := container.NewWriter(opts.OutputPath, opts.FragmentSamples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputPathInvalid, err)
	}

	result, err := e.copyTracks(ctx, reader, writer, copyJob{
		video:       video,
		audio:       audio,
		hasAudio:    hasAudio,
		startMicros: startMicros,
		endMicros:   endMicros,
		plan:        plan,
		manager:     manager,
		onProgress:  onProgress,
	})
	if err != nil {
		writer.Release()
		e.removePartial(opts.OutputPath)
		return nil, err
	}
	return result, nil
}

// copyJob carries the resolved inputs of one copy run.
type copyJob struct {
	video       TrackDescriptor
	audio       TrackDescriptor
	hasAudio    bool
	startMicros int64
	endMicros   int64
	plan        OutputPlan
	manager     *progress.OperationManager
	onProgress  progress.Func
}

// copyTracks registers the output tracks and copies video then audio.
func (e *Exporter) copyTracks(ctx context.Context, reader *container.Reader, writer *container.Writer, job copyJob) (*Result, error) {
	srcVideo, err := reader.Track(job.video.TrackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSampleReadFailed, err)
	}
	outVideoID, err := writer.AddTrack(container.TrackConfig{
		Codec:     srcVideo.Codec,
		TimeScale: srcVideo.TimeScale,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerWriteFailed, err)
	}

	outAudioID := 0
	if job.hasAudio {
		srcAudio, err := reader.Track(job.audio.TrackID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSampleReadFailed, err)
		}
		outAudioID, err = writer.AddTrack(container.TrackConfig{
			Codec:     srcAudio.Codec,
			TimeScale: srcAudio.TimeScale,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContainerWriteFailed, err)
		}
	}

	if err := writer.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerWriteFailed, err)
	}

	videoWeight := 1.0
	if job.hasAudio {
		videoWeight = videoStageWeight
	}

	if err := reader.SelectTrack(job.video.TrackID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSampleReadFailed, err)
	}
	videoStage := job.stageUpdater(0, "copying video samples")
	err = copyRange(ctx, reader, writer, outVideoID, job.startMicros, job.endMicros, func(fraction float64) {
		if videoStage != nil {
			videoStage.SetProgress(fraction, "")
		}
		if job.onProgress != nil {
			job.onProgress(fraction * videoWeight)
		}
	})
	if err != nil {
		return nil, err
	}
	if videoStage != nil {
		videoStage.Done()
	}

	if job.hasAudio {
		if err := reader.SelectTrack(job.audio.TrackID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSampleReadFailed, err)
		}
		// The audio range ends where the audio track ends when it is shorter
		// than the requested range.
		audioEnd := job.endMicros
		if job.audio.DurationMicros > 0 && job.audio.DurationMicros < audioEnd {
			audioEnd = job.audio.DurationMicros
		}
		audioStage := job.stageUpdater(1, "copying audio samples")
		err = copyRange(ctx, reader, writer, outAudioID, job.startMicros, audioEnd, func(fraction float64) {
			if audioStage != nil {
				audioStage.SetProgress(fraction, "")
			}
			if job.onProgress != nil {
				job.onProgress(videoStageWeight + fraction*audioStageWeight)
			}
		})
		if err != nil {
			return nil, err
		}
		if audioStage != nil {
			audioStage.Done()
		}
	}

	if err := writer.Finalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerWriteFailed, err)
	}
	if job.onProgress != nil {
		job.onProgress(1)
	}

	return &Result{
		OutputPath:     writer.Path(),
		BytesWritten:   writer.BytesWritten(),
		DurationMicros: job.endMicros - job.startMicros,
		Plan:           job.plan,
	}, nil
}

// stageUpdater starts the stage at index when an operation is being tracked.
func (j copyJob) stageUpdater(index int, message string) *progress.StageUpdater {
	if j.manager == nil {
		return nil
	}
	return j.manager.StartStage(index, message)
}

// resolveRange turns sentinel trim boundaries into concrete microseconds
// against the video track duration.
func resolveRange(opts Options, durationMicros int64) (int64, int64, error) {
	start := opts.TrimStartMicros
	if start == UnsetMicros {
		start = 0
	}
	end := opts.TrimEndMicros
	if end == UnsetMicros || end > durationMicros {
		end = durationMicros
	}
	if end <= start {
		return 0, 0, fmt.Errorf("%w: resolved start %d is not before end %d", ErrInvalidRange, start, end)
	}
	return start, end, nil
}

// removePartial deletes an incomplete output file unless configured to keep it.
func (e *Exporter) removePartial(path string) {
	if e.cfg.KeepPartialOnError {
		e.logger.Warn("keeping partial output after failure", "output", path)
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("failed to remove partial output", "output", path, "error", err)
	}
}

// createJob records a running history entry when history is enabled.
func (e *Exporter) createJob(ctx context.Context, opts Options) *models.ExportJob {
	if e.cfg.Jobs == nil {
		return nil
	}
	now := time.Now()
	job := &models.ExportJob{
		SourcePath:      opts.SourcePath,
		OutputPath:      opts.OutputPath,
		Format:          string(opts.Format),
		Quality:         string(opts.Quality),
		TrimStartMicros: opts.TrimStartMicros,
		TrimEndMicros:   opts.TrimEndMicros,
		IncludeAudio:    opts.IncludeAudio,
		State:           models.ExportJobRunning,
		StartedAt:       now,
	}
	if err := e.cfg.Jobs.Create(ctx, job); err != nil {
		e.logger.Warn("failed to record export job", "error", err)
		return nil
	}
	return job
}

// finishJob updates the history entry with the terminal state.
func (e *Exporter) finishJob(opts Options, job *models.ExportJob, result *Result, runErr error) {
	if job == nil || e.cfg.Jobs == nil {
		return
	}
	now := time.Now()
	job.FinishedAt = &now
	switch {
	case runErr == nil:
		job.State = models.ExportJobCompleted
		job.Progress = 1
		if result != nil {
			job.BytesWritten = result.BytesWritten
		}
	case errors.Is(runErr, ErrExportCancelled):
		job.State = models.ExportJobCancelled
	default:
		job.State = models.ExportJobFailed
		job.Error = runErr.Error()
	}
	// History updates happen on the worker's way out; a cancelled run context
	// must not block them.
	if err := e.cfg.Jobs.Update(context.Background(), job); err != nil {
		e.logger.Warn("failed to update export job", "job_id", job.ID.String(), "error", err)
	}
}

// startOperation registers a progress operation when tracking is enabled.
func (e *Exporter) startOperation(opts Options) *progress.OperationManager {
	if e.cfg.Progress == nil {
		return nil
	}

	stages := []progress.StageInfo{
		{ID: "video", Name: "Video", Weight: videoStageWeight},
		{ID: "audio", Name: "Audio", Weight: audioStageWeight},
	}
	if !opts.IncludeAudio {
		stages = []progress.StageInfo{{ID: "video", Name: "Video", Weight: 1}}
	}

	manager, err := e.cfg.Progress.StartOperation(progress.OpVideoExport, opts.OutputPath, stages)
	if err != nil {
		e.logger.Warn("failed to start progress operation", "error", err)
		return nil
	}
	return manager
}

// finishOperation moves the progress operation to its terminal state.
func (e *Exporter) finishOperation(manager *progress.OperationManager, runErr error) {
	if manager == nil {
		return
	}
	switch {
	case runErr == nil:
		manager.Complete("export completed")
	case errors.Is(runErr, ErrExportCancelled):
		manager.Cancel()
	default:
		manager.Fail(runErr)
	}
}
