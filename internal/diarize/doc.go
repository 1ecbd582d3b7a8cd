// Package diarize attributes transcript chunks to speakers using frame-level
// pitch and energy features, then coalesces adjacent same-speaker segments.
// The labelling is a deterministic heuristic without clustering or embeddings.
package diarize
