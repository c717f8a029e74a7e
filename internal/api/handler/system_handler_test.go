package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	specpkg "github.com/adorable-dev/adorable/api"
	"github.com/adorable-dev/adorable/internal/api/handler"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(_ context.Context) error { return p.err }

func TestHealthHandler_Healthy(t *testing.T) {
	t.Parallel()

	h := handler.NewHealthHandler(stubPinger{}, "1.2.3")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := parseBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, true, body["database"].(map[string]interface{})["connected"])
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	t.Parallel()

	h := handler.NewHealthHandler(stubPinger{err: errors.New("connection refused")}, "1.2.3")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := parseBody(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["database"].(map[string]interface{})["connected"])
}

func TestOpenAPIHandler_ReturnsJSON(t *testing.T) {
	t.Parallel()

	yamlSpec := []byte(`openapi: "3.1.0"
info:
  title: Test API
  version: "1.0.0"
paths: {}
`)
	h := handler.NewOpenAPIHandler(yamlSpec)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result), "response should be valid JSON")
	assert.Equal(t, "3.1.0", result["openapi"])
	assert.Equal(t, "Test API", result["info"].(map[string]interface{})["title"])
	assert.Contains(t, result, "paths")
}

func TestOpenAPIHandler_InvalidYAML(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler([]byte("openapi: [unterminated"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOpenAPIHandler_EmbeddedSpecConverts(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler(specpkg.OpenAPISpec)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	paths := result["paths"].(map[string]interface{})
	assert.Contains(t, paths, "/webhooks/github")
	assert.Contains(t, paths, "/api/teams/{teamId}/transfer-ownership")
}
