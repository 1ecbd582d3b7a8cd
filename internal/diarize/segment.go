package diarize

import (
	"fmt"
	"sort"
)

// DefaultConfidence is assigned to every segment built from a transcript chunk
const DefaultConfidence = 0.85

// Segment is a contiguous span of transcript text attributed to one speaker
type Segment struct {
	ID         int     `json:"id"`
	Start      float64 `json:"start"` // seconds
	End        float64 `json:"end"`   // seconds
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the length of the segment in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Transcription is the diarized transcript of one audio clip
type Transcription struct {
	Segments []Segment `json:"segments"`
	Duration float64   `json:"duration"` // seconds
	Language string    `json:"language"`
}

// Speakers returns the distinct speaker labels in order of first appearance
func (t *Transcription) Speakers() []string {
	seen := make(map[string]bool)
	speakers := make([]string, 0, 2)
	for _, segment := range t.Segments {
		if !seen[segment.Speaker] {
			seen[segment.Speaker] = true
			speakers = append(speakers, segment.Speaker)
		}
	}
	return speakers
}

// SpeakingTime returns the total segment duration per speaker label
func (t *Transcription) SpeakingTime() map[string]float64 {
	totals := make(map[string]float64)
	for _, segment := range t.Segments {
		totals[segment.Speaker] += segment.Duration()
	}
	return totals
}

// SortedSpeakers returns speaker labels sorted alphabetically
func SortedSpeakers(totals map[string]float64) []string {
	speakers := make([]string, 0, len(totals))
	for speaker := range totals {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	return speakers
}

// SpeakerLabel converts a 0-based speaker index to its display label
func SpeakerLabel(index int) string {
	return fmt.Sprintf("Speaker %d", index+1)
}
