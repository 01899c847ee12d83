package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vidsqueeze/vidsqueeze/internal/history"
	"github.com/vidsqueeze/vidsqueeze/internal/metrics"
	"github.com/vidsqueeze/vidsqueeze/internal/middleware"
	"github.com/vidsqueeze/vidsqueeze/internal/probe"
	"github.com/vidsqueeze/vidsqueeze/internal/transcoder"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// batchController is the slice of the sequencer the HTTP layer needs.
type batchController interface {
	Start(ctx context.Context, files []string, outputDir string, settings models.CompressionSettings, suffix string) (string, error)
	Cancel()
	Pause()
	Resume()
	Running() bool
	Status() transcoder.Status
}

// Server carries the daemon's HTTP handlers and their dependencies. repo is
// nil when batch history is disabled.
type Server struct {
	ctrl        batchController
	hub         *hub
	repo        *history.Repository
	metricsSink *metricsSink
	log         zerolog.Logger

	// baseCtx owns running batches; request contexts end too early.
	baseCtx       context.Context
	defaultOutDir string
	defaultSuffix string
	ffmpegPath    string
	ffprobePath   string

	apiKey  string
	limiter *middleware.RateLimiter
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger(s.log), gin.Recovery())

	router.GET("/health", s.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(s.apiKey))
	if s.limiter != nil {
		v1.Use(middleware.RateLimit(s.limiter))
	}
	{
		v1.POST("/batches", s.startBatch)
		v1.GET("/batches/current", s.currentBatch)
		v1.POST("/batches/current/cancel", s.cancelBatch)
		v1.POST("/batches/current/pause", s.pauseBatch)
		v1.POST("/batches/current/resume", s.resumeBatch)

		v1.GET("/events", s.streamEvents)

		v1.GET("/history", s.listHistory)
		v1.GET("/history/:id", s.getHistory)
	}

	return router
}

type startBatchRequest struct {
	Files     []string                    `json:"files" binding:"required"`
	OutputDir string                      `json:"output_dir"`
	Suffix    string                      `json:"suffix"`
	Settings  *models.CompressionSettings `json:"settings"`
}

func (s *Server) startBatch(c *gin.Context) {
	var req startBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings := models.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = s.defaultOutDir
	}
	suffix := req.Suffix
	if suffix == "" {
		suffix = s.defaultSuffix
	}

	for _, file := range req.Files {
		if !probe.IsSupported(file) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported file type: %s", file)})
			return
		}
		if _, err := os.Stat(file); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file not found: %s", file)})
			return
		}
	}

	id, err := s.ctrl.Start(s.baseCtx, req.Files, outputDir, settings, suffix)
	if err != nil {
		switch {
		case errors.Is(err, transcoder.ErrBatchRunning):
			c.JSON(http.StatusConflict, gin.H{"error": "a batch is already running"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	if s.metricsSink != nil {
		s.metricsSink.SetBatch(settings)
	}
	metrics.RecordBatchStarted(len(req.Files))

	c.JSON(http.StatusAccepted, gin.H{
		"batch_id":    id,
		"total_files": len(req.Files),
		"output_dir":  outputDir,
	})
}

func (s *Server) currentBatch(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) cancelBatch(c *gin.Context) {
	if !s.ctrl.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "no batch is running"})
		return
	}
	s.ctrl.Cancel()
	c.JSON(http.StatusAccepted, gin.H{"message": "batch cancelling"})
}

func (s *Server) pauseBatch(c *gin.Context) {
	if !s.ctrl.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "no batch is running"})
		return
	}
	s.ctrl.Pause()
	c.JSON(http.StatusOK, gin.H{"message": "batch paused"})
}

func (s *Server) resumeBatch(c *gin.Context) {
	if !s.ctrl.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "no batch is running"})
		return
	}
	s.ctrl.Resume()
	c.JSON(http.StatusOK, gin.H{"message": "batch resumed"})
}

// streamEvents serves the batch event stream over SSE. Each event's type is
// the SSE event name and its JSON encoding is the payload.
func (s *Server) streamEvents(c *gin.Context) {
	ch, cancel := s.hub.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-ch:
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) listHistory(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "batch history is not enabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records, err := s.repo.RecentBatches(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": records})
}

func (s *Server) getHistory(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "batch history is not enabled"})
		return
	}

	rec, files, err := s.repo.GetBatch(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch": rec, "files": files})
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]bool{
		"ffmpeg":  probe.CheckTool(ctx, s.ffmpegPath),
		"ffprobe": probe.CheckTool(ctx, s.ffprobePath),
	}
	if s.repo != nil {
		checks["database"] = s.repo.Health(ctx) == nil
	}

	for _, ok := range checks {
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": checks})
}
