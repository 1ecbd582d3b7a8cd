package audio

import (
	"errors"
	"testing"
)

func TestDecodeDetectsWAV(t *testing.T) {
	wavData, err := EncodeWAV(sineWave(300, 0.3, 16000, 0.5), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// content wins over a misleading extension
	pcm, err := Decode("recording.mp3", wavData)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if pcm.SampleRate != 16000 || len(pcm.Samples) != 8000 {
		t.Errorf("Unexpected PCM: rate %d, %d samples", pcm.SampleRate, len(pcm.Samples))
	}

	if pcm.Duration() != 0.5 {
		t.Errorf("Expected duration 0.5, got %f", pcm.Duration())
	}
}

func TestDecodeRejectsUnknownFormats(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{name: "text file", file: "notes.txt", data: []byte("hello world")},
		{name: "ogg magic", file: "clip.ogg", data: []byte("OggS\x00\x02\x00\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.file, tt.data)
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, err := Decode("clip.wav", nil); err == nil {
		t.Error("Expected error for empty data")
	}
}

func TestDecodeCorruptMP3(t *testing.T) {
	if _, err := Decode("clip.mp3", []byte("ID3 but nothing else")); err == nil {
		t.Error("Expected error for corrupt MP3")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		data     []byte
		expected string
	}{
		{name: "riff wave", file: "x.bin", data: []byte("RIFF\x00\x00\x00\x00WAVEfmt "), expected: "wav"},
		{name: "id3 tag", file: "x.bin", data: []byte("ID3\x04\x00"), expected: "mp3"},
		{name: "frame sync", file: "x.bin", data: []byte{0xFF, 0xFB, 0x90, 0x00}, expected: "mp3"},
		{name: "extension fallback", file: "Voice.WAV", data: []byte("????"), expected: "wav"},
		{name: "unknown", file: "x.flac", data: []byte("fLaC"), expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(tt.file, tt.data); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPCMDurationZeroRate(t *testing.T) {
	pcm := &PCM{Samples: make([]float32, 10)}
	if pcm.Duration() != 0 {
		t.Errorf("Expected 0 duration without sample rate, got %f", pcm.Duration())
	}
}
