package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/transcript-diarizer/internal/asr"
	"github.com/skypro1111/transcript-diarizer/internal/audio"
	"github.com/skypro1111/transcript-diarizer/internal/config"
	"github.com/skypro1111/transcript-diarizer/internal/diarize"
	"github.com/skypro1111/transcript-diarizer/internal/export"
	"github.com/skypro1111/transcript-diarizer/internal/job"
	"github.com/skypro1111/transcript-diarizer/internal/metrics"
	"github.com/skypro1111/transcript-diarizer/internal/pipeline"
)

const (
	serviceName    = "transcript-diarizer"
	serviceVersion = "1.0.0"

	// multipart parts beyond this size are spooled to disk
	multipartMemory = 32 << 20
)

// Runner processes one upload synchronously
type Runner interface {
	Run(ctx context.Context, in pipeline.Input, progress func(float64)) (*diarize.Transcription, error)
}

// StatsProvider reports recognition client statistics
type StatsProvider interface {
	GetStats() asr.ClientStats
}

// HTTPServer provides the transcription API and monitoring endpoints
type HTTPServer struct {
	server  *http.Server
	handler http.Handler
	logger  *slog.Logger
	config  *config.Config
	runner  Runner
	jobs    *job.Manager
	stats   StatsProvider
	metrics *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. stats and m may be nil.
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, runner Runner, jobs *job.Manager,
	stats StatsProvider, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		runner:    runner,
		jobs:      jobs,
		stats:     stats,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.Server.Address, appConfig.Server.Port),
		Handler:      mux,
		ReadTimeout:  appConfig.Server.GetReadTimeoutDuration(),
		WriteTimeout: appConfig.Server.GetWriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed handler, for embedding or tests
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Monitoring endpoints
	mux.HandleFunc("GET /health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("GET /config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("GET /stats", h.withMetrics("/stats", h.handleStats))

	// Synchronous transcription
	mux.HandleFunc("POST /v1/transcriptions", h.withMetrics("/v1/transcriptions", h.handleTranscribe))

	// Asynchronous jobs
	mux.HandleFunc("POST /v1/jobs", h.withMetrics("/v1/jobs", h.handleSubmitJob))
	mux.HandleFunc("GET /v1/jobs", h.withMetrics("/v1/jobs", h.handleListJobs))
	mux.HandleFunc("GET /v1/jobs/{id}", h.withMetrics("/v1/jobs/{id}", h.handleGetJob))
	mux.HandleFunc("DELETE /v1/jobs/{id}", h.withMetrics("/v1/jobs/{id}", h.handleDeleteJob))
	mux.HandleFunc("GET /v1/jobs/{id}/ws", h.withMetrics("/v1/jobs/{id}/ws", h.handleJobWebSocket))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("GET /{$}", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the metrics wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts := h.jobs.Counts()

	components := map[string]interface{}{
		"jobs": map[string]interface{}{
			"status":    "running",
			"queued":    counts[job.StatusQueued],
			"running":   counts[job.StatusRunning],
			"completed": counts[job.StatusCompleted],
			"failed":    counts[job.StatusFailed],
		},
	}

	if h.stats != nil {
		asrStats := h.stats.GetStats()
		components["asr"] = map[string]interface{}{
			"status":          "running",
			"endpoint":        h.config.ASR.Endpoint,
			"total_requests":  asrStats.TotalRequests,
			"success_rate":    asrStats.SuccessRate,
			"active_requests": asrStats.ActiveRequests,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": components,
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"port":          h.config.Server.Port,
			"address":       h.config.Server.Address,
			"max_upload_mb": h.config.Server.MaxUploadMB,
			"read_timeout":  h.config.Server.ReadTimeout,
			"write_timeout": h.config.Server.WriteTimeout,
		},
		"audio": map[string]interface{}{
			"window_seconds":       h.config.Audio.WindowSeconds,
			"max_duration_seconds": h.config.Audio.MaxDurationSeconds,
		},
		"features": map[string]interface{}{
			"speaker_strategy": h.config.Features.SpeakerStrategy,
			"language":         h.config.Features.Language,
		},
		"asr": map[string]interface{}{
			"endpoint":         h.config.ASR.Endpoint,
			"timeout":          h.config.ASR.Timeout,
			"max_retries":      h.config.ASR.MaxRetries,
			"max_concurrent":   h.config.ASR.MaxConcurrent,
			"retry_backoff_ms": h.config.ASR.RetryBackoff,
			"model":            h.config.ASR.Model,
			"chunk_length_s":   h.config.ASR.ChunkLength,
			"stride_length_s":  h.config.ASR.StrideLength,
			// API key is intentionally omitted
		},
		"jobs": map[string]interface{}{
			"max_concurrent":   h.config.Jobs.MaxConcurrent,
			"max_queued":       h.config.Jobs.MaxQueued,
			"timeout":          h.config.Jobs.Timeout,
			"retention":        h.config.Jobs.Retention,
			"cleanup_interval": h.config.Jobs.CleanupInterval,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"jobs":      h.jobs.Counts(),
	}

	if h.stats != nil {
		stats["asr"] = h.stats.GetStats()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleTranscribe implements POST /v1/transcriptions
func (h *HTTPServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	upload, status, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	format, err := export.ParseFormat(upload.format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transcription, err := h.runner.Run(r.Context(), pipeline.Input{
		Name:     upload.name,
		Data:     upload.data,
		Language: upload.language,
	}, nil)
	if err != nil {
		h.logger.Warn("Transcription failed",
			slog.String("name", upload.name),
			slog.String("error", err.Error()),
		)
		writeError(w, statusForError(err), err.Error())
		return
	}

	h.writeTranscription(w, format, upload.name, transcription)
}

// handleSubmitJob implements POST /v1/jobs
func (h *HTTPServer) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	upload, status, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	submitted, err := h.jobs.Submit(upload.name, upload.data)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, job.ErrTooManyJobs) {
			status = http.StatusTooManyRequests
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Location", "/v1/jobs/"+submitted.ID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":     submitted.ID,
		"status": submitted.Status(),
		"links": map[string]string{
			"self":     "/v1/jobs/" + submitted.ID,
			"progress": "/v1/jobs/" + submitted.ID + "/ws",
		},
	})
}

// handleListJobs implements GET /v1/jobs
func (h *HTTPServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	infos := h.jobs.List()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_jobs": len(infos),
		"timestamp":  time.Now().UTC(),
		"jobs":       infos,
	})
}

// handleGetJob implements GET /v1/jobs/{id}; ?format=text|markdown exports a finished result
func (h *HTTPServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	found, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	info := found.Info()

	formatName := r.URL.Query().Get("format")
	if formatName == "" {
		writeJSON(w, http.StatusOK, info)
		return
	}

	format, err := export.ParseFormat(formatName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if info.Status != job.StatusCompleted || info.Result == nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s", info.Status))
		return
	}

	h.writeTranscription(w, format, info.Name, info.Result)
}

// handleDeleteJob implements DELETE /v1/jobs/{id}
func (h *HTTPServer) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Remove(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	apiDoc := map[string]interface{}{
		"service": "Transcript Diarization Service",
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET /":                   "API documentation",
			"GET /health":             "Service health check",
			"GET /config":             "Get service configuration",
			"GET /stats":              "Get service statistics",
			"GET /metrics":            "Prometheus metrics",
			"POST /v1/transcriptions": "Transcribe and diarize an upload (multipart 'file', optional 'language', 'format')",
			"POST /v1/jobs":           "Submit an upload for asynchronous processing",
			"GET /v1/jobs":            "List jobs",
			"GET /v1/jobs/{id}":       "Get job status and result (optional ?format=text|markdown)",
			"DELETE /v1/jobs/{id}":    "Cancel and remove a job",
			"GET /v1/jobs/{id}/ws":    "Websocket stream of job progress",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

// uploadedFile is a decoded multipart request
type uploadedFile struct {
	name     string
	data     []byte
	language string
	format   string
}

// readUpload reads the multipart "file" field within the configured size limit
func (h *HTTPServer) readUpload(w http.ResponseWriter, r *http.Request) (*uploadedFile, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxUploadBytes())

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d MB", h.config.Server.MaxUploadMB)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("missing 'file' field: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err)
	}

	if len(data) == 0 {
		return nil, http.StatusBadRequest, fmt.Errorf("uploaded file is empty")
	}

	return &uploadedFile{
		name:     header.Filename,
		data:     data,
		language: r.FormValue("language"),
		format:   r.FormValue("format"),
	}, http.StatusOK, nil
}

func (h *HTTPServer) writeTranscription(w http.ResponseWriter, format export.Format, name string, t *diarize.Transcription) {
	w.Header().Set("Content-Type", format.ContentType())
	if format != export.FormatJSON {
		filename := fmt.Sprintf("transcription_%d%s", time.Now().Unix(), format.Extension())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}

	if err := export.Write(w, format, export.Metadata{Source: name, Model: h.config.ASR.Model}, t); err != nil {
		h.logger.Warn("Failed to write response", slog.String("error", err.Error()))
	}
}

// statusForError maps processing failures to HTTP status codes
func statusForError(err error) int {
	var statusErr *asr.StatusError

	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, pipeline.ErrTooLong):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
