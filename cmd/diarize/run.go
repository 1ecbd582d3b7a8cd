package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skypro1111/transcript-diarizer/internal/asr"
	"github.com/skypro1111/transcript-diarizer/internal/audio"
	"github.com/skypro1111/transcript-diarizer/internal/diarize"
	"github.com/skypro1111/transcript-diarizer/internal/export"
	"github.com/skypro1111/transcript-diarizer/internal/pipeline"
)

type runOptions struct {
	asrJSON     string
	asrEndpoint string
	format      string
	window      float64
	strategy    string
	language    string
	output      string
	title       string
	progress    bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <audio-file>",
		Short: "Transcribe and diarize an audio file",
		Long: "Decode an audio file, obtain a transcript (from --asr-json or the ASR service) " +
			"and label each segment with a speaker.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiarize(cmd, global, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.asrJSON, "asr-json", "", "Use a saved ASR result instead of calling the service")
	flags.StringVar(&opts.asrEndpoint, "asr-endpoint", "", "ASR service endpoint (overrides config)")
	flags.StringVarP(&opts.format, "format", "f", "json", "Output format (json, text, markdown)")
	flags.Float64Var(&opts.window, "window", -1, "Send audio to ASR in windows of this many seconds (0 = whole clip, default from config)")
	flags.StringVar(&opts.strategy, "strategy", "", "Speaker strategy (parity, band_sum; default from config)")
	flags.StringVar(&opts.language, "language", "", "Language code sent to ASR and reported in the result")
	flags.StringVarP(&opts.output, "output", "o", "", "Write output to this file instead of stdout")
	flags.StringVar(&opts.title, "title", "", "Document title for markdown output")
	flags.BoolVar(&opts.progress, "progress", false, "Log progress percentages")

	return cmd
}

func runDiarize(cmd *cobra.Command, global *globalOptions, opts *runOptions, audioPath string) error {
	cfg := global.config
	logger := global.logger

	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	strategyName := cfg.Features.SpeakerStrategy
	if opts.strategy != "" {
		strategyName = opts.strategy
	}
	strategy, err := diarize.StrategyByName(strategyName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	name := filepath.Base(audioPath)
	pcm, err := audio.Decode(name, data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}

	logger.Info("Audio decoded",
		slog.String("name", name),
		slog.Int("sample_rate", pcm.SampleRate),
		slog.Float64("duration_sec", pcm.Duration()),
	)

	analyzer := diarize.NewAnalyzer(logger, strategy, nil)

	var transcription *diarize.Transcription
	if opts.asrJSON != "" {
		result, err := asr.LoadResult(opts.asrJSON)
		if err != nil {
			return err
		}

		language := opts.language
		if language == "" {
			language = cfg.Features.Language
		}
		transcription = analyzer.Analyze(pcm.Samples, pcm.SampleRate, result, language)
	} else {
		transcription, err = transcribeLive(cmd, global, opts, analyzer, name, pcm)
		if err != nil {
			return err
		}
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.output != "" {
		file, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	meta := export.Metadata{Title: opts.title, Source: name, Model: cfg.ASR.Model}
	if err := export.Write(out, format, meta, transcription); err != nil {
		return err
	}
	if format == export.FormatText {
		fmt.Fprintln(out)
	}

	logger.Info("Diarization finished",
		slog.Int("segments", len(transcription.Segments)),
		slog.Int("speakers", len(transcription.Speakers())),
	)

	return nil
}

// transcribeLive runs the decoded clip through the ASR service
func transcribeLive(cmd *cobra.Command, global *globalOptions, opts *runOptions, analyzer *diarize.Analyzer,
	name string, pcm *audio.PCM) (*diarize.Transcription, error) {

	cfg := global.config
	logger := global.logger

	endpoint := cfg.ASR.Endpoint
	if opts.asrEndpoint != "" {
		endpoint = opts.asrEndpoint
	}

	window := cfg.Audio.WindowSeconds
	if opts.window >= 0 {
		window = opts.window
	}

	client, err := asr.NewClient(asr.Config{
		Endpoint:      endpoint,
		APIKey:        cfg.ASR.APIKey,
		Timeout:       cfg.ASR.GetTimeoutDuration(),
		MaxRetries:    cfg.ASR.MaxRetries,
		MaxConcurrent: 1,
		RetryBackoff:  cfg.ASR.GetRetryBackoffDuration(),
		Model:         cfg.ASR.Model,
		Language:      cfg.Features.Language,
		ChunkLength:   cfg.ASR.ChunkLength,
		StrideLength:  cfg.ASR.StrideLength,
	}, nil)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	pipe, err := pipeline.New(client, analyzer, pipeline.Options{
		WindowSeconds: window,
		MaxDuration:   cfg.Audio.MaxDurationSeconds,
		Language:      cfg.Features.Language,
	}, logger)
	if err != nil {
		return nil, err
	}

	var progress func(float64)
	if opts.progress {
		progress = func(percent float64) {
			logger.Info("Progress", slog.Float64("percent", percent))
		}
	}

	return pipe.RunPCM(cmd.Context(), name, pcm, opts.language, progress)
}
