package diarize

import (
	"strings"

	"github.com/skypro1111/transcript-diarizer/internal/asr"
	"github.com/skypro1111/transcript-diarizer/internal/features"
)

// DefaultChunkDuration is assumed for chunks whose end time is missing (seconds)
const DefaultChunkDuration = 5.0

// Build maps each transcript chunk to a classified speaker segment. Without
// chunks the whole clip becomes a single "Speaker 1" segment of the given duration.
func Build(result *asr.Result, duration float64, series features.Series, strategy Strategy) []Segment {
	if strategy == nil {
		strategy = ParityStrategy{}
	}

	if result == nil || !result.HasChunks() {
		text := ""
		if result != nil {
			text = result.Text
		}
		if duration < 0 {
			duration = 0
		}
		return []Segment{{
			ID:         0,
			Start:      0,
			End:        duration,
			Text:       text,
			Speaker:    SpeakerLabel(0),
			Confidence: DefaultConfidence,
		}}
	}

	segments := make([]Segment, 0, len(result.Chunks))
	for i, chunk := range result.Chunks {
		start := chunk.Timestamp.Start
		end := chunk.Timestamp.EndOr(DefaultChunkDuration)
		if end < start {
			end = start
		}

		bands := ClassifyBands(start, end, series.Pitch, series.Energy)

		segments = append(segments, Segment{
			ID:         i,
			Start:      start,
			End:        end,
			Text:       strings.TrimSpace(chunk.Text),
			Speaker:    SpeakerLabel(strategy.Speaker(bands)),
			Confidence: DefaultConfidence,
		})
	}

	return segments
}
