package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vidsqueeze/vidsqueeze/internal/middleware"
	"github.com/vidsqueeze/vidsqueeze/internal/transcoder"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// MockController is a mock implementation of batchController
type MockController struct {
	mock.Mock
}

func (m *MockController) Start(ctx context.Context, files []string, outputDir string, settings models.CompressionSettings, suffix string) (string, error) {
	args := m.Called(ctx, files, outputDir, settings, suffix)
	return args.String(0), args.Error(1)
}

func (m *MockController) Cancel() { m.Called() }
func (m *MockController) Pause()  { m.Called() }
func (m *MockController) Resume() { m.Called() }

func (m *MockController) Running() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockController) Status() transcoder.Status {
	args := m.Called()
	return args.Get(0).(transcoder.Status)
}

func newTestServer(ctrl batchController) *Server {
	gin.SetMode(gin.TestMode)
	return &Server{
		ctrl:          ctrl,
		hub:           newHub(zerolog.Nop()),
		metricsSink:   newMetricsSink(),
		log:           zerolog.Nop(),
		baseCtx:       context.Background(),
		defaultSuffix: "_compressed",
	}
}

func postJSON(t *testing.T, router *gin.Engine, url string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", url, &buf)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func writeVideoFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))
	return path
}

func TestStartBatchHandler_Success(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	dir := t.TempDir()
	files := []string{
		writeVideoFile(t, dir, "a.mp4"),
		writeVideoFile(t, dir, "b.mov"),
	}

	mockCtrl.On("Start", mock.Anything, files, dir, models.DefaultSettings(), "_compressed").
		Return("batch-123", nil)

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"files":      files,
		"output_dir": dir,
	})

	assert.Equal(t, http.StatusAccepted, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "batch-123", response["batch_id"])
	assert.Equal(t, float64(2), response["total_files"])
	assert.Equal(t, dir, response["output_dir"])

	mockCtrl.AssertExpectations(t)
}

func TestStartBatchHandler_CustomSettings(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	dir := t.TempDir()
	file := writeVideoFile(t, dir, "clip.mkv")

	want := models.DefaultSettings()
	want.Quality = models.QualityHigh
	want.Codec = models.CodecH265

	mockCtrl.On("Start", mock.Anything, []string{file}, dir, want, "_small").
		Return("batch-456", nil)

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"files":      []string{file},
		"output_dir": dir,
		"suffix":     "_small",
		"settings":   want,
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockCtrl.AssertExpectations(t)
}

func TestStartBatchHandler_MissingFiles(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"output_dir": t.TempDir(),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockCtrl.AssertNotCalled(t, "Start")
}

func TestStartBatchHandler_UnsupportedFile(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	dir := t.TempDir()
	file := writeVideoFile(t, dir, "notes.txt")

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"files": []string{file},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported file type")
	mockCtrl.AssertNotCalled(t, "Start")
}

func TestStartBatchHandler_FileNotFound(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"files": []string{filepath.Join(t.TempDir(), "missing.mp4")},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file not found")
	mockCtrl.AssertNotCalled(t, "Start")
}

func TestStartBatchHandler_AlreadyRunning(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	dir := t.TempDir()
	file := writeVideoFile(t, dir, "a.mp4")

	mockCtrl.On("Start", mock.Anything, []string{file}, "", models.DefaultSettings(), "_compressed").
		Return("", transcoder.ErrBatchRunning)

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"files": []string{file},
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already running")
	mockCtrl.AssertExpectations(t)
}

func TestStartBatchHandler_InvalidSettings(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	dir := t.TempDir()
	file := writeVideoFile(t, dir, "a.mp4")

	bad := models.DefaultSettings()
	bad.Mode = models.ModeRatio
	bad.Ratio = 2

	mockCtrl.On("Start", mock.Anything, []string{file}, "", bad, "_compressed").
		Return("", bad.Validate())

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"files":    []string{file},
		"settings": bad,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ratio")
	mockCtrl.AssertExpectations(t)
}

func TestCurrentBatchHandler(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	mockCtrl.On("Status").Return(transcoder.Status{
		BatchID:      "batch-789",
		Running:      true,
		CurrentIndex: 1,
		TotalFiles:   3,
		CurrentFile:  "b.mp4",
		Progress:     42.5,
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/batches/current", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status transcoder.Status
	err := json.Unmarshal(w.Body.Bytes(), &status)
	assert.NoError(t, err)
	assert.Equal(t, "batch-789", status.BatchID)
	assert.True(t, status.Running)
	assert.Equal(t, 3, status.TotalFiles)
	assert.InDelta(t, 42.5, status.Progress, 0.001)
}

func TestCancelBatchHandler(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	mockCtrl.On("Running").Return(true)
	mockCtrl.On("Cancel").Return()

	w := postJSON(t, router, "/api/v1/batches/current/cancel", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockCtrl.AssertExpectations(t)
}

func TestCancelBatchHandler_NoBatch(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	mockCtrl.On("Running").Return(false)

	w := postJSON(t, router, "/api/v1/batches/current/cancel", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "no batch is running")
	mockCtrl.AssertNotCalled(t, "Cancel")
}

func TestPauseResumeHandlers(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	mockCtrl.On("Running").Return(true)
	mockCtrl.On("Pause").Return()
	mockCtrl.On("Resume").Return()

	w := postJSON(t, router, "/api/v1/batches/current/pause", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/api/v1/batches/current/resume", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	mockCtrl.AssertExpectations(t)
}

func TestPauseHandler_NoBatch(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	mockCtrl.On("Running").Return(false)

	w := postJSON(t, router, "/api/v1/batches/current/pause", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockCtrl.AssertNotCalled(t, "Pause")
}

func TestHistoryHandlers_NotEnabled(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	router := server.routes()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/history", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/history/batch-123", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestAPIKeyProtectedRoutes(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)
	server.apiKey = "secret"
	router := server.routes()

	mockCtrl.On("Status").Return(transcoder.Status{})

	// API routes reject requests without the key
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/batches/current", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// and accept requests that carry it
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/batches/current", nil)
	req.Header.Set(middleware.HeaderAPIKey, "secret")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// /health stays open for probes
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
}

func TestHealthCheckHandler(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)

	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-tool")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	server.ffmpegPath = tool
	server.ffprobePath = tool
	router := server.routes()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHealthCheckHandler_MissingTool(t *testing.T) {
	mockCtrl := new(MockController)
	server := newTestServer(mockCtrl)

	server.ffmpegPath = filepath.Join(t.TempDir(), "no-such-ffmpeg")
	server.ffprobePath = server.ffmpegPath
	router := server.routes()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}
