package diarize

import (
	"testing"
)

func constantSeries(value float64, frames int) []float64 {
	series := make([]float64, frames)
	for i := range series {
		series[i] = value
	}
	return series
}

func TestClassifyBands(t *testing.T) {
	tests := []struct {
		name     string
		pitch    float64
		energy   float64
		expected Bands
	}{
		{name: "silence", pitch: 0, energy: 0, expected: Bands{Pitch: 0, Energy: 0}},
		{name: "low pitch loud", pitch: 110, energy: 0.2, expected: Bands{Pitch: 0, Energy: 2}},
		{name: "mid pitch mid energy", pitch: 145, energy: 0.1, expected: Bands{Pitch: 1, Energy: 1}},
		{name: "high pitch quiet", pitch: 220, energy: 0.01, expected: Bands{Pitch: 2, Energy: 0}},
		{name: "pitch boundary", pitch: 130, energy: 0.05, expected: Bands{Pitch: 1, Energy: 1}},
		{name: "upper boundaries", pitch: 160, energy: 0.15, expected: Bands{Pitch: 2, Energy: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyBands(0, 1, constantSeries(tt.pitch, 100), constantSeries(tt.energy, 100))
			if got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestClassifyBandBoundaryAveraging(t *testing.T) {
	// 100 frames of 0.15 sum to slightly above 15 when added in order
	for _, frames := range []int{1, 100} {
		bands := ClassifyBands(0, float64(frames)/100, constantSeries(160, frames), constantSeries(0.15, frames))
		if bands != (Bands{Pitch: 2, Energy: 2}) {
			t.Errorf("%d frames: expected {Pitch:2 Energy:2}, got %+v", frames, bands)
		}
	}

	values := []float64{0.1, 0.2, 0.3}
	expected := (values[0] + values[1] + values[2]) / 3
	if got := mean(values); got != expected {
		t.Errorf("Expected in-order mean %v, got %v", expected, got)
	}
}

func TestClassifyExcludesUnvoicedFrames(t *testing.T) {
	pitch := make([]float64, 100)
	for i := 0; i < 100; i += 4 {
		pitch[i] = 200
	}
	energy := constantSeries(0.01, 100)

	bands := ClassifyBands(0, 1, pitch, energy)
	if bands.Pitch != 2 {
		t.Errorf("Expected high pitch band from voiced frames only, got %d", bands.Pitch)
	}
}

func TestClassifyRangeBeyondSeries(t *testing.T) {
	pitch := constantSeries(200, 50)
	energy := constantSeries(0.2, 50)

	// Entirely past the end of the series: both averages default to 0
	if got := ClassifyBands(10, 12, pitch, energy); got != (Bands{}) {
		t.Errorf("Expected zero bands past the series, got %+v", got)
	}

	// Partially overlapping: only in-range frames contribute
	if got := ClassifyBands(0.25, 20, pitch, energy); got != (Bands{Pitch: 2, Energy: 2}) {
		t.Errorf("Expected clamped window bands, got %+v", got)
	}

	// Empty range
	if got := ClassifyBands(0.2, 0.2, pitch, energy); got != (Bands{}) {
		t.Errorf("Expected zero bands for empty range, got %+v", got)
	}

	// Empty series
	if got := Classify(0, 5, nil, nil); got != 0 {
		t.Errorf("Expected speaker 0 for empty series, got %d", got)
	}
}

func TestClassifyFrameIndexFloors(t *testing.T) {
	pitch := make([]float64, 10)
	energy := make([]float64, 10)
	// only frame 1 is loud
	energy[1] = 0.3

	// 0.019s floors to frame 1, 0.029s floors to frame 2
	if got := ClassifyBands(0.019, 0.029, pitch, energy); got.Energy != 2 {
		t.Errorf("Expected frame 1 to be selected, got %+v", got)
	}
	if got := ClassifyBands(0.02, 0.03, pitch, energy); got.Energy != 0 {
		t.Errorf("Expected frame 2 to be selected, got %+v", got)
	}
}

func TestStrategies(t *testing.T) {
	tests := []struct {
		bands  Bands
		parity int
		sum    int
	}{
		{bands: Bands{0, 0}, parity: 0, sum: 0},
		{bands: Bands{1, 0}, parity: 1, sum: 1},
		{bands: Bands{1, 1}, parity: 0, sum: 2},
		{bands: Bands{2, 1}, parity: 1, sum: 3},
		{bands: Bands{2, 2}, parity: 0, sum: 4},
	}

	for _, tt := range tests {
		if got := (ParityStrategy{}).Speaker(tt.bands); got != tt.parity {
			t.Errorf("Parity %+v: expected %d, got %d", tt.bands, tt.parity, got)
		}
		if got := (BandSumStrategy{}).Speaker(tt.bands); got != tt.sum {
			t.Errorf("BandSum %+v: expected %d, got %d", tt.bands, tt.sum, got)
		}
	}
}

func TestStrategyByName(t *testing.T) {
	for _, name := range []string{"", "parity"} {
		strategy, err := StrategyByName(name)
		if err != nil {
			t.Fatalf("StrategyByName(%q) failed: %v", name, err)
		}
		if _, ok := strategy.(ParityStrategy); !ok {
			t.Errorf("StrategyByName(%q): expected ParityStrategy, got %T", name, strategy)
		}
	}

	strategy, err := StrategyByName("band_sum")
	if err != nil {
		t.Fatalf("StrategyByName(band_sum) failed: %v", err)
	}
	if _, ok := strategy.(BandSumStrategy); !ok {
		t.Errorf("Expected BandSumStrategy, got %T", strategy)
	}

	if _, err := StrategyByName("kmeans"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}
