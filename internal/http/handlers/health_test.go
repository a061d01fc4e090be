package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralstream/mediaexport/internal/http/handlers"
)

func TestHealthHandler(t *testing.T) {
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("Test API", "1.0.0"))
	handlers.NewHealthHandler().Register(api)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.HealthOutput
	err := json.NewDecoder(rec.Body).Decode(&resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Body.Status)
	assert.NotEmpty(t, resp.Body.Version)
}
