// Package handlers implements the API operations for the export server.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/astralstream/mediaexport/internal/version"
)

// HealthHandler serves liveness and version information.
type HealthHandler struct{}

// NewHealthHandler creates a health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HealthBody is the health response body.
type HealthBody struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version" example:"1.0.0"`
	Commit  string `json:"commit,omitempty"`
}

// HealthOutput is the output for the health endpoint.
type HealthOutput struct {
	Body HealthBody
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns liveness and build information.
func (h *HealthHandler) GetHealth(ctx context.Context, input *struct{}) (*HealthOutput, error) {
	info := version.GetInfo()
	return &HealthOutput{
		Body: HealthBody{
			Status:  "ok",
			Version: info.Version,
			Commit:  info.Commit,
		},
	}, nil
}
