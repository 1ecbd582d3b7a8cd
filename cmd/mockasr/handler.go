package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skypro1111/transcript-diarizer/internal/asr"
	"github.com/skypro1111/transcript-diarizer/internal/audio"
)

var cannedSentences = []string{
	"Good morning, thanks for joining the call.",
	"Happy to be here.",
	"Let's start with the quarterly numbers.",
	"Revenue is up eight percent over last quarter.",
	"That is better than we expected.",
	"Any questions before we move on?",
}

type transcribeHandler struct {
	logger        *slog.Logger
	delay         time.Duration
	chunkDuration float64 // seconds per chunk, 0 = flat text
}

func (h *transcribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	duration, err := strconv.ParseFloat(r.FormValue("duration"), 64)
	if err != nil || duration <= 0 {
		info, err := audio.GetWAVInfo(audioData)
		if err != nil {
			http.Error(w, "Unsupported audio: "+err.Error(), http.StatusBadRequest)
			return
		}
		duration = info.Duration
	}

	h.logger.Info("Transcription request received",
		slog.String("request_id", r.FormValue("request_id")),
		slog.String("filename", header.Filename),
		slog.Int("audio_bytes", len(audioData)),
		slog.Float64("duration_sec", duration),
		slog.String("language", r.FormValue("language")),
		slog.String("model", r.FormValue("model")),
	)

	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-r.Context().Done():
			return
		}
	}

	result := cannedResult(duration, h.chunkDuration)
	result.Language = r.FormValue("language")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)

	h.logger.Debug("Transcription response sent", slog.Int("chunks", len(result.Chunks)))
}

// cannedResult covers [0, duration] with chunks of chunkDuration seconds,
// cycling through the canned sentences. The final chunk is open-ended.
func cannedResult(duration, chunkDuration float64) *asr.Result {
	if chunkDuration <= 0 {
		return &asr.Result{Text: " " + strings.Join(cannedSentences[:2], " ")}
	}

	count := int(math.Ceil(duration / chunkDuration))
	if count < 1 {
		count = 1
	}

	result := &asr.Result{}
	texts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		text := " " + cannedSentences[i%len(cannedSentences)]
		start := float64(i) * chunkDuration

		timestamp := asr.OpenEnded(start)
		if i < count-1 {
			timestamp = asr.Span(start, start+chunkDuration)
		}

		result.Chunks = append(result.Chunks, asr.Chunk{Text: text, Timestamp: timestamp})
		texts = append(texts, text)
	}
	result.Text = strings.Join(texts, "")

	return result
}
