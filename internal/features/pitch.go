package features

import "math"

// Pitch estimation bounds
const (
	// PitchSilenceThreshold is the RMS level below which no pitch is estimated
	PitchSilenceThreshold = 0.01

	// Lag search covers periods of roughly 50-500 Hz
	maxSearchHz = 500
	minSearchHz = 50

	// Accepted fundamental range for speech, both bounds exclusive
	MinPitchHz = 50.0
	MaxPitchHz = 400.0
)

// EstimatePitch returns the fundamental frequency of a frame in Hz using
// autocorrelation, or 0 when the frame is too quiet or no plausible pitch is found.
func EstimatePitch(frame []float32, sampleRate int) float64 {
	if RMS(frame) < PitchSilenceThreshold {
		return 0
	}

	minLag := sampleRate / maxSearchHz
	maxLag := sampleRate / minSearchHz

	var maxValue float64
	bestLag := 0

	for lag := minLag; lag < maxLag; lag++ {
		var sum float64
		for i := 0; i < len(frame)-lag; i++ {
			sum += math.Abs(float64(frame[i]) * float64(frame[i+lag]))
		}
		// strict comparison keeps the earliest lag on ties
		if sum > maxValue {
			maxValue = sum
			bestLag = lag
		}
	}

	if bestLag == 0 {
		return 0
	}

	pitch := float64(sampleRate) / float64(bestLag)
	if pitch > MinPitchHz && pitch < MaxPitchHz {
		return pitch
	}
	return 0
}

// PitchContour estimates the pitch of each frame using a PitchWindow-sample window
func PitchContour(samples []float32, sampleRate int) []float64 {
	pitches := make([]float64, 0, FrameCount(len(samples), sampleRate))
	forEachFrame(samples, sampleRate, PitchWindow, func(frame []float32) {
		pitches = append(pitches, EstimatePitch(frame, sampleRate))
	})
	return pitches
}
