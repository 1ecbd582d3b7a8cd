// Package pipeline runs one recording through decoding, speech recognition and
// diarization, reporting progress as a percentage along the way.
package pipeline
