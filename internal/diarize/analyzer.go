package diarize

import (
	"log/slog"
	"time"

	"github.com/skypro1111/transcript-diarizer/internal/asr"
	"github.com/skypro1111/transcript-diarizer/internal/features"
	"github.com/skypro1111/transcript-diarizer/internal/metrics"
)

// Analyzer runs feature extraction, segment building and merging over one clip
type Analyzer struct {
	strategy Strategy
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewAnalyzer creates an analyzer. A nil strategy selects ParityStrategy; m may be nil.
func NewAnalyzer(logger *slog.Logger, strategy Strategy, m *metrics.Metrics) *Analyzer {
	if strategy == nil {
		strategy = ParityStrategy{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		strategy: strategy,
		logger:   logger,
		metrics:  m,
	}
}

// Analyze diarizes a transcript against the mono samples it was produced from
func (a *Analyzer) Analyze(samples []float32, sampleRate int, result *asr.Result, language string) *Transcription {
	startTime := time.Now()

	duration := 0.0
	if sampleRate > 0 {
		duration = float64(len(samples)) / float64(sampleRate)
	}

	series := features.Extract(samples, sampleRate)
	raw := Build(result, duration, series, a.strategy)
	segments := Merge(raw)

	transcription := &Transcription{
		Segments: segments,
		Duration: duration,
		Language: language,
	}

	elapsed := time.Since(startTime)
	speakers := len(transcription.Speakers())
	a.metrics.RecordAnalysis(duration, series.Len(), len(raw), len(segments), speakers, elapsed.Seconds())

	a.logger.Debug("Diarization completed",
		slog.Float64("duration_sec", duration),
		slog.Int("frames", series.Len()),
		slog.Float64("voiced_ratio", series.VoicedRatio()),
		slog.Int("raw_segments", len(raw)),
		slog.Int("merged_segments", len(segments)),
		slog.Int("speakers", speakers),
		slog.Duration("elapsed", elapsed),
	)

	return transcription
}
