package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes MP3 data and returns the left channel as float PCM.
// go-mp3 always produces interleaved 16-bit stereo.
func DecodeMP3(data []byte) (*PCM, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create MP3 decoder: %v", ErrUnsupportedFormat, err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	// 2 bytes per sample * 2 channels
	numSamples := len(raw) / 4
	if numSamples == 0 {
		return nil, fmt.Errorf("MP3 contains no audio frames")
	}

	samples := make([]float32, numSamples)
	for i := range samples {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		samples[i] = float32(left) / 32768.0
	}

	return &PCM{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}
