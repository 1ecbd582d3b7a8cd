// Package server implements the HTTP API for transcription jobs and the
// monitoring endpoints. Job progress is also pushed over websockets.
package server
