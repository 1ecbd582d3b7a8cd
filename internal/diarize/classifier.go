package diarize

import (
	"fmt"
	"math"

	"github.com/skypro1111/transcript-diarizer/internal/features"
)

// Band boundaries for pitch (Hz) and energy (RMS)
const (
	lowPitchHz  = 130.0
	highPitchHz = 160.0

	lowEnergy  = 0.05
	highEnergy = 0.15
)

// Bands holds the quantized pitch and energy of a time range, each in 0..2
type Bands struct {
	Pitch  int `json:"pitch"`
	Energy int `json:"energy"`
}

// Sum returns the combined band value in 0..4
func (b Bands) Sum() int {
	return b.Pitch + b.Energy
}

// Strategy maps quantized bands to a 0-based speaker index
type Strategy interface {
	Speaker(b Bands) int
}

// ParityStrategy splits speakers by the parity of the band sum, yielding at most two speakers
type ParityStrategy struct{}

// Speaker implements Strategy
func (ParityStrategy) Speaker(b Bands) int {
	return b.Sum() % 2
}

// BandSumStrategy uses the band sum directly, yielding up to five speakers
type BandSumStrategy struct{}

// Speaker implements Strategy
func (BandSumStrategy) Speaker(b Bands) int {
	return b.Sum()
}

// StrategyByName resolves a configured strategy name
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "", "parity":
		return ParityStrategy{}, nil
	case "band_sum":
		return BandSumStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown speaker strategy %q (expected parity or band_sum)", name)
	}
}

// Classify returns the speaker index for [start, end) seconds using the parity strategy
func Classify(start, end float64, pitch, energy []float64) int {
	return ParityStrategy{}.Speaker(ClassifyBands(start, end, pitch, energy))
}

// ClassifyBands averages pitch and energy over [start, end) seconds and quantizes both.
// Unvoiced frames (pitch 0) are excluded from the pitch average. Frame indices
// saturate at the bounds of each series.
func ClassifyBands(start, end float64, pitch, energy []float64) Bands {
	startFrame := frameIndex(start)
	endFrame := frameIndex(end)

	var voiced []float64
	for _, p := range window(pitch, startFrame, endFrame) {
		if p > 0 {
			voiced = append(voiced, p)
		}
	}

	avgPitch := mean(voiced)
	avgEnergy := mean(window(energy, startFrame, endFrame))

	return Bands{
		Pitch:  pitchBand(avgPitch),
		Energy: energyBand(avgEnergy),
	}
}

func frameIndex(seconds float64) int {
	return int(math.Floor(seconds * features.FrameRate))
}

// window returns series[from:to] clamped to the series bounds
func window(series []float64, from, to int) []float64 {
	if from < 0 {
		from = 0
	}
	if to > len(series) {
		to = len(series)
	}
	if from >= to {
		return nil
	}
	return series[from:to]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	// in-order sum keeps band boundaries exact for repeated values
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func pitchBand(hz float64) int {
	switch {
	case hz < lowPitchHz:
		return 0
	case hz < highPitchHz:
		return 1
	default:
		return 2
	}
}

func energyBand(rms float64) int {
	switch {
	case rms < lowEnergy:
		return 0
	case rms < highEnergy:
		return 1
	default:
		return 2
	}
}
