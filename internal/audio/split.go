package audio

// DefaultWindowSeconds is the window length used when slicing long recordings
const DefaultWindowSeconds = 30.0

// Window is a slice of a longer clip
type Window struct {
	Samples []float32
	Offset  float64 // start time within the clip, seconds
}

// Duration returns the window length in seconds
func (w Window) Duration(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(sampleRate)
}

// Split cuts samples into consecutive windows of windowSeconds. The last window
// holds the remainder. A non-positive window yields the whole clip as one window.
// Windows share memory with samples.
func Split(samples []float32, sampleRate int, windowSeconds float64) []Window {
	if len(samples) == 0 {
		return nil
	}

	size := int(windowSeconds * float64(sampleRate))
	if sampleRate <= 0 || size <= 0 || size >= len(samples) {
		return []Window{{Samples: samples}}
	}

	windows := make([]Window, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		windows = append(windows, Window{
			Samples: samples[start:end],
			Offset:  float64(start) / float64(sampleRate),
		})
	}

	return windows
}
