package features

// FrameRate is the number of analysis frames per second shared by every series.
const FrameRate = 100

// Analysis window sizes in samples
const (
	VADWindow    = 512
	EnergyWindow = 512
	PitchWindow  = 2048
)

// VADThreshold is the RMS level above which a frame counts as voice activity
const VADThreshold = 0.02

// Series holds the per-frame features of one audio clip.
// Frame i of every slice corresponds to time i / FrameRate seconds.
type Series struct {
	VAD       []bool    `json:"vad"`
	Pitch     []float64 `json:"pitch"`  // Hz, 0 = unvoiced or unknown
	Energy    []float64 `json:"energy"` // RMS amplitude
	FrameRate int       `json:"frame_rate"`
}

// HopSize returns the sample offset between consecutive frame starts
func HopSize(sampleRate int) int {
	return sampleRate / FrameRate
}

// FrameCount returns the number of frames produced for numSamples samples
func FrameCount(numSamples, sampleRate int) int {
	hop := HopSize(sampleRate)
	if hop <= 0 || numSamples <= 0 {
		return 0
	}
	return (numSamples + hop - 1) / hop
}

// Extract computes all three feature series for the given samples.
// Each series is an independent pass over the audio.
func Extract(samples []float32, sampleRate int) Series {
	return Series{
		VAD:       VoiceActivity(samples, sampleRate),
		Pitch:     PitchContour(samples, sampleRate),
		Energy:    EnergyEnvelope(samples, sampleRate),
		FrameRate: FrameRate,
	}
}

// Len returns the number of frames in the series
func (s Series) Len() int {
	return len(s.Energy)
}

// Seconds converts a frame index to a time offset in seconds
func (s Series) Seconds(frame int) float64 {
	return float64(frame) / FrameRate
}

// VoicedRatio returns the share of frames flagged as voice activity
func (s Series) VoicedRatio() float64 {
	if len(s.VAD) == 0 {
		return 0
	}

	voiced := 0
	for _, v := range s.VAD {
		if v {
			voiced++
		}
	}
	return float64(voiced) / float64(len(s.VAD))
}

// forEachFrame walks the signal in hop-sized steps and hands fn a window of at
// most window samples. The trailing frames are shorter than the window.
func forEachFrame(samples []float32, sampleRate, window int, fn func(frame []float32)) {
	hop := HopSize(sampleRate)
	if hop <= 0 {
		return
	}

	for start := 0; start < len(samples); start += hop {
		end := start + window
		if end > len(samples) {
			end = len(samples)
		}
		fn(samples[start:end])
	}
}
