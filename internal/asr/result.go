package asr

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Result is a transcript returned by the recognizer: either a flat text or an
// ordered list of timestamped chunks.
type Result struct {
	Text     string  `json:"text"`
	Chunks   []Chunk `json:"chunks,omitempty"`
	Language string  `json:"language,omitempty"`
}

// Chunk is one timestamped piece of a transcript
type Chunk struct {
	Text      string    `json:"text"`
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp is encoded on the wire as [start, end] where end may be null
type Timestamp struct {
	Start float64
	End   *float64
}

// Span returns a timestamp with both bounds set
func Span(start, end float64) Timestamp {
	return Timestamp{Start: start, End: &end}
}

// OpenEnded returns a timestamp without an end time
func OpenEnded(start float64) Timestamp {
	return Timestamp{Start: start}
}

// EndOr returns the end time, or start+fallback when the end is missing
func (t Timestamp) EndOr(fallback float64) float64 {
	if t.End != nil {
		return *t.End
	}
	return t.Start + fallback
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*float64{&t.Start, t.End})
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var pair []*float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("timestamp must be an array: %w", err)
	}

	if len(pair) == 0 || len(pair) > 2 {
		return fmt.Errorf("timestamp must have 1 or 2 elements, got %d", len(pair))
	}

	if pair[0] == nil {
		return fmt.Errorf("timestamp start cannot be null")
	}

	t.Start = *pair[0]
	t.End = nil
	if len(pair) == 2 && pair[1] != nil {
		end := *pair[1]
		t.End = &end
	}
	return nil
}

// HasChunks reports whether the result carries timestamped chunks
func (r *Result) HasChunks() bool {
	return len(r.Chunks) > 0
}

// IsEmpty reports whether the result has no usable transcript
func (r *Result) IsEmpty() bool {
	return !r.HasChunks() && strings.TrimSpace(r.Text) == ""
}

// Append adds the chunks of o, shifted by offset seconds. A flat result without
// chunks becomes a single chunk spanning [offset, offset+span].
func (r *Result) Append(o *Result, offset, span float64) {
	if o == nil || o.IsEmpty() {
		return
	}

	if r.Language == "" {
		r.Language = o.Language
	}

	if !o.HasChunks() {
		r.Chunks = append(r.Chunks, Chunk{
			Text:      o.Text,
			Timestamp: Span(offset, offset+span),
		})
	} else {
		for _, chunk := range o.Chunks {
			shifted := Timestamp{Start: chunk.Timestamp.Start + offset}
			if chunk.Timestamp.End != nil {
				end := *chunk.Timestamp.End + offset
				shifted.End = &end
			}
			r.Chunks = append(r.Chunks, Chunk{Text: chunk.Text, Timestamp: shifted})
		}
	}

	if r.Text == "" {
		r.Text = strings.TrimSpace(o.Text)
	} else if text := strings.TrimSpace(o.Text); text != "" {
		r.Text = r.Text + " " + text
	}
}

// ParseResult decodes a recognizer JSON payload
func ParseResult(data []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ASR result: %w", err)
	}
	return &result, nil
}

// LoadResult reads a recognizer JSON payload from disk
func LoadResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ASR result %s: %w", path, err)
	}
	return ParseResult(data)
}
