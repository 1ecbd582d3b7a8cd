package diarize

import "unicode/utf8"

// Merge limits
const (
	MaxMergeGap      = 1.0 // seconds
	MaxMergedTextLen = 500 // characters
)

// Merge coalesces adjacent segments that share a speaker, start less than
// MaxMergeGap after the previous one ends, and whose combined text stays under
// MaxMergedTextLen. The input is not modified; merged segments keep the id of
// their first constituent.
func Merge(segments []Segment) []Segment {
	merged := make([]Segment, 0, len(segments))
	if len(segments) == 0 {
		return merged
	}

	current := segments[0]
	currentLen := utf8.RuneCountInString(current.Text)

	for _, next := range segments[1:] {
		nextLen := utf8.RuneCountInString(next.Text)

		if canMerge(current, next, currentLen+nextLen) {
			current.End = next.End
			current.Text = current.Text + " " + next.Text
			current.Confidence = (current.Confidence + next.Confidence) / 2
			// the joining space counts toward the next comparison
			currentLen += nextLen + 1
			continue
		}

		merged = append(merged, current)
		current = next
		currentLen = nextLen
	}

	return append(merged, current)
}

func canMerge(current, next Segment, combinedLen int) bool {
	// a negative gap (overlap) also qualifies, but a segment ending before
	// the current one starts would leave End < Start
	return next.Speaker == current.Speaker &&
		next.Start-current.End < MaxMergeGap &&
		next.End >= current.Start &&
		combinedLen < MaxMergedTextLen
}
