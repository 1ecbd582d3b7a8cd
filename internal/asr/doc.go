// Package asr implements the client side of the external speech-recognition service.
// Audio is uploaded as multipart WAV and transient failures are retried with
// exponential backoff.
package asr
