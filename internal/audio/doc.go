// Package audio decodes uploaded WAV and MP3 recordings into mono float PCM
// and encodes PCM windows back to WAV for the recognition service.
package audio
