package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the diarization service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Job metrics
	JobsCreated   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	ActiveJobs    prometheus.Gauge
	JobDuration   prometheus.Histogram

	// ASR metrics
	ASRRequests  prometheus.Counter
	ASRSuccesses prometheus.Counter
	ASRFailures  prometheus.Counter
	ASRRetries   prometheus.Counter
	ASRDuration  prometheus.Histogram

	// Diarization metrics
	AudioDuration    prometheus.Histogram
	FramesAnalyzed   prometheus.Counter
	RawSegments      prometheus.Counter
	MergedSegments   prometheus.Counter
	SpeakersDetected prometheus.Histogram
	AnalysisDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Job metrics
		JobsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_jobs_created_total",
			Help: "Total number of transcription jobs submitted",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_jobs_completed_total",
			Help: "Total number of transcription jobs completed successfully",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_jobs_failed_total",
			Help: "Total number of transcription jobs that failed",
		}),
		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "diarizer_active_jobs",
			Help: "Current number of queued or running jobs",
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarizer_job_duration_seconds",
			Help:    "Wall-clock duration of transcription jobs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17 minutes
		}),

		// ASR metrics
		ASRRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_asr_requests_total",
			Help: "Total number of requests sent to the ASR service",
		}),
		ASRSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_asr_successes_total",
			Help: "Total number of successful ASR requests",
		}),
		ASRFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_asr_failures_total",
			Help: "Total number of failed ASR requests",
		}),
		ASRRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_asr_retries_total",
			Help: "Total number of ASR request retries",
		}),
		ASRDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarizer_asr_duration_seconds",
			Help:    "Duration of ASR requests including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3 minutes
		}),

		// Diarization metrics
		AudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarizer_audio_duration_seconds",
			Help:    "Duration of analyzed audio clips",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		FramesAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_frames_analyzed_total",
			Help: "Total number of 10ms feature frames computed",
		}),
		RawSegments: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_raw_segments_total",
			Help: "Total number of segments built before merging",
		}),
		MergedSegments: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarizer_merged_segments_total",
			Help: "Total number of segments returned after merging",
		}),
		SpeakersDetected: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarizer_speakers_per_transcript",
			Help:    "Number of distinct speaker labels per transcript",
			Buckets: prometheus.LinearBuckets(1, 1, 5),
		}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarizer_analysis_duration_seconds",
			Help:    "Time spent extracting features and building segments",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diarizer_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diarizer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diarizer_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordJobCreated increments the jobs created counter
func (m *Metrics) RecordJobCreated() {
	if m == nil {
		return
	}
	m.JobsCreated.Inc()
}

// RecordJobFinished records a finished job and its duration
func (m *Metrics) RecordJobFinished(success bool, durationSeconds float64) {
	if m == nil {
		return
	}
	if success {
		m.JobsCompleted.Inc()
	} else {
		m.JobsFailed.Inc()
	}
	m.JobDuration.Observe(durationSeconds)
}

// SetActiveJobs sets the current number of unfinished jobs
func (m *Metrics) SetActiveJobs(count int) {
	if m == nil {
		return
	}
	m.ActiveJobs.Set(float64(count))
}

// RecordASRRequest increments the ASR requests counter
func (m *Metrics) RecordASRRequest() {
	if m == nil {
		return
	}
	m.ASRRequests.Inc()
}

// RecordASRSuccess records a successful ASR request
func (m *Metrics) RecordASRSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.ASRSuccesses.Inc()
	m.ASRDuration.Observe(durationSeconds)
}

// RecordASRFailure records a failed ASR request
func (m *Metrics) RecordASRFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.ASRFailures.Inc()
	m.ASRDuration.Observe(durationSeconds)
}

// RecordASRRetry increments the retry counter
func (m *Metrics) RecordASRRetry() {
	if m == nil {
		return
	}
	m.ASRRetries.Inc()
}

// RecordAnalysis records one diarization pass
func (m *Metrics) RecordAnalysis(audioSeconds float64, frames, rawSegments, mergedSegments, speakers int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.AudioDuration.Observe(audioSeconds)
	m.FramesAnalyzed.Add(float64(frames))
	m.RawSegments.Add(float64(rawSegments))
	m.MergedSegments.Add(float64(mergedSegments))
	m.SpeakersDetected.Observe(float64(speakers))
	m.AnalysisDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
