package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/skypro1111/transcript-diarizer/internal/audio"
	"github.com/skypro1111/transcript-diarizer/internal/features"
)

// featureSummary describes the per-frame features of one recording
type featureSummary struct {
	Name         string  `json:"name"`
	SampleRate   int     `json:"sample_rate"`
	Duration     float64 `json:"duration_seconds"`
	Frames       int     `json:"frames"`
	VoicedRatio  float64 `json:"voiced_ratio"`
	PitchedRatio float64 `json:"pitched_ratio"`
	MeanPitch    float64 `json:"mean_pitch_hz"` // over pitched frames
	MeanEnergy   float64 `json:"mean_energy"`
	PeakEnergy   float64 `json:"peak_energy"`

	Series *features.Series `json:"series,omitempty"`
}

func newFeaturesCmd(global *globalOptions) *cobra.Command {
	var withSeries bool

	cmd := &cobra.Command{
		Use:   "features <audio-file>",
		Short: "Print the voice activity, pitch and energy features of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read audio: %w", err)
			}

			name := filepath.Base(args[0])
			pcm, err := audio.Decode(name, data)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", name, err)
			}

			series := features.Extract(pcm.Samples, pcm.SampleRate)
			summary := summarize(name, pcm, series)
			if withSeries {
				summary.Series = &series
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(summary)
		},
	}

	cmd.Flags().BoolVar(&withSeries, "series", false, "Include the full per-frame series")

	return cmd
}

func summarize(name string, pcm *audio.PCM, series features.Series) featureSummary {
	summary := featureSummary{
		Name:        name,
		SampleRate:  pcm.SampleRate,
		Duration:    pcm.Duration(),
		Frames:      series.Len(),
		VoicedRatio: series.VoicedRatio(),
	}

	if len(series.Energy) > 0 {
		summary.MeanEnergy = stat.Mean(series.Energy, nil)
		summary.PeakEnergy = floats.Max(series.Energy)
	}

	var pitched []float64
	for _, p := range series.Pitch {
		if p > 0 {
			pitched = append(pitched, p)
		}
	}
	if len(pitched) > 0 {
		summary.MeanPitch = stat.Mean(pitched, nil)
		summary.PitchedRatio = float64(len(pitched)) / float64(len(series.Pitch))
	}

	return summary
}
