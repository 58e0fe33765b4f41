package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/handler"
	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus struct{}

func (staticStatus) Status() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{Backend: config.BackendConfig{Port: "0", CorsAllowedOrigins: "*"}}
	log := logger.NewNopLogger()
	hub := websocket.NewHub(log)
	return New(cfg, handler.NewBackendHandler(hub, staticStatus{}, log), log)
}

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 0.0, body["clients"])
}

func TestSystemStatus(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest("GET", "/api/system/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest("GET", "/ws/console-1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, false, body["success"])
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest("GET", "/nope", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
