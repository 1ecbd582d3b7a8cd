// Package export renders diarized transcriptions for download.
package export
