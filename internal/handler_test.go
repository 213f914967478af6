package internal_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-match-orchestration/internal"
)

// newTestHandler 架起 HTTP 處理器（協調器與 Hub 實體接線）
func newTestHandler(t *testing.T) (http.Handler, *internal.Coordinator) {
	t.Helper()
	logger := testLogger()
	hub := internal.NewHub(logger)
	coordinator := internal.NewCoordinator(hub, logger)
	hub.SetSink(coordinator)
	t.Cleanup(func() {
		coordinator.Stop()
		hub.Stop()
	})

	return internal.NewHandler(coordinator, hub, logger).Routes(), coordinator
}

// TestHandler_Health 測試健康檢查端點
func TestHandler_Health(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "time")
}

// TestHandler_Stats 測試統計端點反映協調器狀態
func TestHandler_Stats(t *testing.T) {
	handler, coordinator := newTestHandler(t)

	// 一場進行中的對局 + 一位排隊中的玩家
	coordinator.HandleFindGame("conn_a", 2)
	coordinator.HandleFindGame("conn_b", 2)
	coordinator.HandleFindGame("conn_c", 2)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["total_sessions"])
	assert.Contains(t, body, "queue_lengths")
	assert.Contains(t, body, "connections")
}

// TestHandler_MethodNotAllowed 測試路由只收 GET
func TestHandler_MethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
