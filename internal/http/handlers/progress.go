package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/astralstream/mediaexport/internal/service/progress"
)

// ProgressHandler serves progress operations and the SSE event stream.
type ProgressHandler struct {
	service           *progress.Service
	heartbeatInterval time.Duration
}

// NewProgressHandler creates a progress handler.
func NewProgressHandler(service *progress.Service) *ProgressHandler {
	return &ProgressHandler{
		service:           service,
		heartbeatInterval: 30 * time.Second,
	}
}

// SetHeartbeatInterval sets the SSE heartbeat interval (for testing).
func (h *ProgressHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// ProgressResponse represents a progress operation in API responses.
type ProgressResponse struct {
	ID                string          `json:"id"`
	OperationType     string          `json:"operation_type"`
	OwnerKey          string          `json:"owner_key"`
	State             string          `json:"state"`
	OverallPercentage float64         `json:"overall_percentage"`
	Message           string          `json:"message,omitempty"`
	Error             string          `json:"error,omitempty"`
	Stages            []StageResponse `json:"stages,omitempty"`
	CurrentStage      string          `json:"current_stage,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	LastUpdate        time.Time       `json:"last_update"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// StageResponse represents a stage in API responses.
type StageResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	State      string  `json:"state"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message,omitempty"`
}

// progressFromService converts a service snapshot to its API shape.
func progressFromService(op *progress.Operation) ProgressResponse {
	currentStage := ""
	if stage := op.CurrentStage(); stage != nil {
		currentStage = stage.ID
	}

	resp := ProgressResponse{
		ID:                op.OperationID,
		OperationType:     string(op.OperationType),
		OwnerKey:          op.OwnerKey,
		State:             string(op.State),
		OverallPercentage: op.Progress * 100,
		Message:           op.Message,
		Error:             op.Error,
		CurrentStage:      currentStage,
		StartedAt:         op.StartedAt,
		LastUpdate:        op.UpdatedAt,
		CompletedAt:       op.CompletedAt,
	}
	for _, s := range op.Stages {
		resp.Stages = append(resp.Stages, StageResponse{
			ID:         s.ID,
			Name:       s.Name,
			State:      string(s.State),
			Percentage: s.Progress * 100,
			Message:    s.Message,
		})
	}
	return resp
}

// ListOperationsInput is the input for listing operations.
type ListOperationsInput struct {
	ActiveOnly bool `query:"active_only" doc:"Only return active operations"`
}

// ListOperationsBody is the response body for listing operations.
type ListOperationsBody struct {
	Operations []ProgressResponse `json:"operations"`
}

// ListOperationsOutput is the output for listing operations.
type ListOperationsOutput struct {
	Body ListOperationsBody
}

// GetOperationInput is the input for getting a single operation.
type GetOperationInput struct {
	OperationID string `path:"operation_id" doc:"Operation ID"`
}

// GetOperationOutput is the output for getting a single operation.
type GetOperationOutput struct {
	Body ProgressResponse
}

// Register registers the progress routes with the API.
func (h *ProgressHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listOperations",
		Method:      "GET",
		Path:        "/api/v1/progress",
		Summary:     "List operations",
		Description: "Returns current and recent export operations",
		Tags:        []string{"Progress"},
	}, h.ListOperations)

	huma.Register(api, huma.Operation{
		OperationID: "getOperation",
		Method:      "GET",
		Path:        "/api/v1/progress/{operation_id}",
		Summary:     "Get operation",
		Tags:        []string{"Progress"},
	}, h.GetOperation)
}

// RegisterSSE registers the SSE endpoint on a chi router. Separate from
// Register because the OpenAPI layer does not stream.
func (h *ProgressHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/v1/events", h.handleSSEEvents)
}

// ListOperations returns current progress operations.
func (h *ProgressHandler) ListOperations(ctx context.Context, input *ListOperationsInput) (*ListOperationsOutput, error) {
	operations := h.service.ListOperations()

	output := &ListOperationsOutput{
		Body: ListOperationsBody{Operations: make([]ProgressResponse, 0, len(operations))},
	}
	for _, op := range operations {
		if input.ActiveOnly && !op.State.IsActive() {
			continue
		}
		output.Body.Operations = append(output.Body.Operations, progressFromService(op))
	}
	return output, nil
}

// GetOperation returns details for a specific operation.
func (h *ProgressHandler) GetOperation(ctx context.Context, input *GetOperationInput) (*GetOperationOutput, error) {
	op, ok := h.service.GetOperation(input.OperationID)
	if !ok {
		return nil, huma.Error404NotFound("operation not found")
	}
	return &GetOperationOutput{Body: progressFromService(op)}, nil
}

// handleSSEEvents streams progress events as server-sent events.
func (h *ProgressHandler) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subID, events := h.service.Subscribe(64)
	defer h.service.Unsubscribe(subID)

	rc := http.NewResponseController(w)

	// Initial snapshot so late subscribers see in-flight operations.
	for _, op := range h.service.ListOperations() {
		if !op.State.IsActive() {
			continue
		}
		if err := writeSSE(w, rc, progress.EventTypeProgress, progressFromService(op)); err != nil {
			return
		}
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, rc, event.EventType, progressFromService(event.Operation)); err != nil {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// writeSSE writes one event frame and flushes it to the client.
func writeSSE(w http.ResponseWriter, rc *http.ResponseController, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	return rc.Flush()
}
