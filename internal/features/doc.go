// Package features computes frame-level acoustic features from mono PCM audio.
// All series share a fixed 100 Hz frame rate regardless of analysis window size.
package features
