package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/transcript-diarizer/internal/asr"
	"github.com/skypro1111/transcript-diarizer/internal/audio"
	"github.com/skypro1111/transcript-diarizer/internal/diarize"
)

// ErrTooLong is returned for clips longer than Options.MaxDuration
var ErrTooLong = errors.New("audio exceeds maximum duration")

// DefaultLanguage is reported when neither the request nor the options name one
const DefaultLanguage = "en"

// Progress checkpoints, in percent
const (
	ProgressStarted     = 0.0
	ProgressDecoded     = 20.0
	ProgressTranscribed = 80.0
	ProgressDone        = 100.0
)

// Options controls how recordings are processed
type Options struct {
	WindowSeconds float64 // 0 sends the whole clip in one request
	MaxDuration   float64 // seconds, 0 = unlimited
	Language      string
}

// Input is one recording to process
type Input struct {
	Name     string
	Data     []byte
	Language string // overrides Options.Language when set
}

// Pipeline orchestrates decode, ASR and diarization
type Pipeline struct {
	transcriber asr.Transcriber
	analyzer    *diarize.Analyzer
	options     Options
	logger      *slog.Logger
}

// New creates a pipeline
func New(transcriber asr.Transcriber, analyzer *diarize.Analyzer, options Options, logger *slog.Logger) (*Pipeline, error) {
	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}

	if analyzer == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}

	if options.WindowSeconds < 0 {
		return nil, fmt.Errorf("window seconds cannot be negative, got %f", options.WindowSeconds)
	}

	if options.MaxDuration < 0 {
		return nil, fmt.Errorf("max duration cannot be negative, got %f", options.MaxDuration)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		transcriber: transcriber,
		analyzer:    analyzer,
		options:     options,
		logger:      logger,
	}, nil
}

// Run decodes the input, transcribes it and diarizes the transcript. progress
// receives percentages in [0, 100] and may be nil.
func (p *Pipeline) Run(ctx context.Context, in Input, progress func(float64)) (*diarize.Transcription, error) {
	report(progress, ProgressStarted)

	pcm, err := audio.Decode(in.Name, in.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", in.Name, err)
	}

	return p.RunPCM(ctx, in.Name, pcm, in.Language, progress)
}

// RunPCM is Run for already decoded audio
func (p *Pipeline) RunPCM(ctx context.Context, name string, pcm *audio.PCM, language string, progress func(float64)) (*diarize.Transcription, error) {
	startTime := time.Now()
	duration := pcm.Duration()

	if p.options.MaxDuration > 0 && duration > p.options.MaxDuration {
		return nil, fmt.Errorf("%w: %.1fs > %.1fs", ErrTooLong, duration, p.options.MaxDuration)
	}

	language = p.language(language)
	report(progress, ProgressDecoded)

	p.logger.Debug("Audio decoded",
		slog.String("name", name),
		slog.Int("sample_rate", pcm.SampleRate),
		slog.Int("samples", len(pcm.Samples)),
		slog.Float64("duration_sec", duration),
	)

	result, err := p.transcribe(ctx, name, pcm, language, progress)
	if err != nil {
		return nil, err
	}
	report(progress, ProgressTranscribed)

	transcription := p.analyzer.Analyze(pcm.Samples, pcm.SampleRate, result, language)
	report(progress, ProgressDone)

	p.logger.Info("Recording processed",
		slog.String("name", name),
		slog.Float64("duration_sec", duration),
		slog.Int("chunks", len(result.Chunks)),
		slog.Int("segments", len(transcription.Segments)),
		slog.Duration("elapsed", time.Since(startTime)),
	)

	return transcription, nil
}

// transcribe sends the clip to the recognizer, one request per window when
// windowing is enabled and the clip is longer than a window.
func (p *Pipeline) transcribe(ctx context.Context, name string, pcm *audio.PCM, language string, progress func(float64)) (*asr.Result, error) {
	windows := audio.Split(pcm.Samples, pcm.SampleRate, p.options.WindowSeconds)
	if len(windows) == 0 {
		// nothing to recognize; diarization falls back to a single empty segment
		p.logger.Debug("Recording has no audio samples", slog.String("name", name))
		return &asr.Result{}, nil
	}

	if len(windows) == 1 {
		return p.transcribeWindow(ctx, name, windows[0], pcm.SampleRate, language, func(fraction float64) {
			report(progress, asrProgress(fraction))
		})
	}

	merged := &asr.Result{}
	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.transcribeWindow(ctx, name, window, pcm.SampleRate, language, func(fraction float64) {
			report(progress, asrProgress((float64(i)+fraction)/float64(len(windows))))
		})
		if err != nil {
			return nil, fmt.Errorf("window %d/%d at %.1fs: %w", i+1, len(windows), window.Offset, err)
		}

		merged.Append(result, window.Offset, window.Duration(pcm.SampleRate))
	}

	p.logger.Debug("Windowed transcription completed",
		slog.String("name", name),
		slog.Int("windows", len(windows)),
		slog.Int("chunks", len(merged.Chunks)),
	)

	return merged, nil
}

func (p *Pipeline) transcribeWindow(ctx context.Context, name string, window audio.Window, sampleRate int, language string, progress func(float64)) (*asr.Result, error) {
	wavData, err := audio.EncodeWAV(window.Samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %w", err)
	}

	request := &asr.Request{
		RequestID:  uuid.NewString(),
		Filename:   name,
		Audio:      wavData,
		SampleRate: sampleRate,
		Duration:   window.Duration(sampleRate),
		Language:   language,
	}

	result, err := p.transcriber.Transcribe(ctx, request, progress)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	if result == nil {
		result = &asr.Result{}
	}
	return result, nil
}

func (p *Pipeline) language(requested string) string {
	if requested != "" {
		return requested
	}
	if p.options.Language != "" {
		return p.options.Language
	}
	return DefaultLanguage
}

// asrProgress maps an ASR fraction in [0, 1] onto the decoded..transcribed range
func asrProgress(fraction float64) float64 {
	return ProgressDecoded + fraction*(ProgressTranscribed-ProgressDecoded)
}

func report(progress func(float64), percent float64) {
	if progress != nil {
		progress(percent)
	}
}
