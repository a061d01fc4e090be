package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/astralstream/mediaexport/internal/models"
	"github.com/astralstream/mediaexport/internal/repository"
)

// JobsHandler serves export history.
type JobsHandler struct {
	jobs repository.ExportJobRepository
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(jobs repository.ExportJobRepository) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// JobResponse represents an export job in API responses.
type JobResponse struct {
	ID              string     `json:"id"`
	SourcePath      string     `json:"source_path"`
	OutputPath      string     `json:"output_path"`
	Format          string     `json:"format"`
	Quality         string     `json:"quality"`
	TrimStartMicros int64      `json:"trim_start_micros"`
	TrimEndMicros   int64      `json:"trim_end_micros"`
	IncludeAudio    bool       `json:"include_audio"`
	State           string     `json:"state"`
	Progress        float64    `json:"progress"`
	Error           string     `json:"error,omitempty"`
	BytesWritten    int64      `json:"bytes_written"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// jobFromModel converts a job record to its API shape.
func jobFromModel(job *models.ExportJob) JobResponse {
	return JobResponse{
		ID:              job.ID.String(),
		SourcePath:      job.SourcePath,
		OutputPath:      job.OutputPath,
		Format:          job.Format,
		Quality:         job.Quality,
		TrimStartMicros: job.TrimStartMicros,
		TrimEndMicros:   job.TrimEndMicros,
		IncludeAudio:    job.IncludeAudio,
		State:           string(job.State),
		Progress:        job.Progress,
		Error:           job.Error,
		BytesWritten:    job.BytesWritten,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
	}
}

// ListJobsInput is the input for listing jobs.
type ListJobsInput struct {
	State string `query:"state" doc:"Filter by job state"`
}

// ListJobsBody is the response body for listing jobs.
type ListJobsBody struct {
	Jobs []JobResponse `json:"jobs"`
}

// ListJobsOutput is the output for listing jobs.
type ListJobsOutput struct {
	Body ListJobsBody
}

// GetJobInput is the input for getting a single job.
type GetJobInput struct {
	JobID string `path:"job_id" doc:"Job ID"`
}

// GetJobOutput is the output for getting a single job.
type GetJobOutput struct {
	Body JobResponse
}

// Register registers the job routes with the API.
func (h *JobsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listJobs",
		Method:      "GET",
		Path:        "/api/v1/jobs",
		Summary:     "List export jobs",
		Description: "Returns recorded export jobs, most recent first",
		Tags:        []string{"Jobs"},
	}, h.ListJobs)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/v1/jobs/{job_id}",
		Summary:     "Get export job",
		Tags:        []string{"Jobs"},
	}, h.GetJob)
}

// ListJobs returns the export history, optionally filtered by state.
func (h *JobsHandler) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	var (
		jobs []*models.ExportJob
		err  error
	)
	if input.State != "" {
		jobs, err = h.jobs.GetByState(ctx, models.ExportJobState(input.State))
	} else {
		jobs, err = h.jobs.GetAll(ctx)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list jobs", err)
	}

	output := &ListJobsOutput{Body: ListJobsBody{Jobs: make([]JobResponse, 0, len(jobs))}}
	for _, job := range jobs {
		output.Body.Jobs = append(output.Body.Jobs, jobFromModel(job))
	}
	return output, nil
}

// GetJob returns a single job by ID.
func (h *JobsHandler) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	id, err := models.ParseULID(input.JobID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid job ID")
	}
	job, err := h.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load job", err)
	}
	if job == nil {
		return nil, huma.Error404NotFound("job not found")
	}
	out := &GetJobOutput{Body: jobFromModel(job)}
	return out, nil
}
