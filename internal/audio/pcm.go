package audio

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when uploaded data is neither WAV nor MP3
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// PCM holds mono samples in [-1, 1]
type PCM struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds
func (p *PCM) Duration() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// Decode detects the container from the data (falling back to the file
// extension) and returns the first channel as float PCM.
func Decode(name string, data []byte) (*PCM, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("audio data is empty")
	}

	switch detectFormat(name, data) {
	case "wav":
		return DecodeWAV(data)
	case "mp3":
		return DecodeMP3(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

func detectFormat(name string, data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG frame sync
		return "mp3"
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		return "wav"
	case ".mp3":
		return "mp3"
	}
	return ""
}
