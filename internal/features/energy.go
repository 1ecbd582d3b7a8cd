package features

import "math"

// RMS returns the root-mean-square amplitude of a frame. An empty frame has zero energy.
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range frame {
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// VoiceActivity flags each frame whose RMS energy exceeds VADThreshold
func VoiceActivity(samples []float32, sampleRate int) []bool {
	vad := make([]bool, 0, FrameCount(len(samples), sampleRate))
	forEachFrame(samples, sampleRate, VADWindow, func(frame []float32) {
		vad = append(vad, RMS(frame) > VADThreshold)
	})
	return vad
}

// EnergyEnvelope returns the RMS energy of each frame
func EnergyEnvelope(samples []float32, sampleRate int) []float64 {
	energy := make([]float64, 0, FrameCount(len(samples), sampleRate))
	forEachFrame(samples, sampleRate, EnergyWindow, func(frame []float32) {
		energy = append(energy, RMS(frame))
	})
	return energy
}
