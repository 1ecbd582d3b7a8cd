package asr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:      endpoint,
		APIKey:        "test-key",
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		MaxConcurrent: 2,
		RetryBackoff:  5 * time.Millisecond,
		Model:         "whisper-tiny",
		Language:      "en",
	}
}

func testRequest() *Request {
	return &Request{
		RequestID:  "req-1",
		Filename:   "clip.wav",
		Audio:      []byte("RIFF....WAVEfmt "),
		SampleRate: 16000,
		Duration:   2.0,
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost:9999", MaxRetries: -1}, nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if client.config.MaxRetries != 3 {
		t.Errorf("Expected default max retries 3, got %d", client.config.MaxRetries)
	}
	if client.config.ChunkLength != 30 || client.config.StrideLength != 5 {
		t.Errorf("Expected default chunk/stride 30/5, got %d/%d", client.config.ChunkLength, client.config.StrideLength)
	}
}

func TestTranscribeChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		expectedFields := map[string]string{
			"request_id":        "req-1",
			"sample_rate":       "16000",
			"chunk_length_s":    "30",
			"stride_length_s":   "5",
			"return_timestamps": "true",
			"model":             "whisper-tiny",
			"language":          "en",
		}
		for key, expected := range expectedFields {
			if got := r.FormValue(key); got != expected {
				t.Errorf("Field %s: expected %q, got %q", key, expected, got)
			}
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing audio file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "clip.wav" || len(data) == 0 {
			t.Errorf("Unexpected file upload %q with %d bytes", header.Filename, len(data))
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" hello world. bye","chunks":[
			{"text":" hello world.","timestamp":[0.0,2.0]},
			{"text":" bye","timestamp":[2.3,null]}]}`)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	var progress []float64
	result, err := client.Transcribe(context.Background(), testRequest(), func(p float64) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(result.Chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(result.Chunks))
	}

	if result.Chunks[1].Timestamp.End != nil {
		t.Errorf("Expected open-ended second chunk, got end %f", *result.Chunks[1].Timestamp.End)
	}

	if len(progress) != 2 || progress[0] != 0.3 || progress[1] != 1 {
		t.Errorf("Expected progress [0.3 1], got %v", progress)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 || stats.SuccessRate != 100 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "finally"})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	result, err := client.Transcribe(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}

	if result.Text != "finally" {
		t.Errorf("Expected text 'finally', got %q", result.Text)
	}

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 calls, got %d", got)
	}

	if stats := client.GetStats(); stats.TotalRetries != 2 {
		t.Errorf("Expected 2 retries, got %d", stats.TotalRetries)
	}
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unsupported audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Transcribe(context.Background(), testRequest(), nil)
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError in chain, got %T: %v", err, err)
	}

	if statusErr.StatusCode != http.StatusBadRequest || statusErr.Body != "unsupported audio" {
		t.Errorf("Unexpected status error: %+v", statusErr)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected exactly 1 call, got %d", got)
	}

	if stats := client.GetStats(); stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestTranscribeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), testRequest(), nil); err == nil {
		t.Error("Expected JSON parse error")
	}
}

func TestTranscribeContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusTooManyRequests)
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.RetryBackoff = time.Second
	client, err := NewClient(config, nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Transcribe(ctx, testRequest(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	client, err := NewClient(testConfig("http://localhost:9999"), nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), &Request{}, nil); err == nil {
		t.Error("Expected error for empty audio")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "server error", err: &StatusError{StatusCode: 502}, expected: true},
		{name: "rate limited", err: &StatusError{StatusCode: 429}, expected: true},
		{name: "bad request", err: &StatusError{StatusCode: 400}, expected: false},
		{name: "deadline", err: context.DeadlineExceeded, expected: true},
		{name: "plain error", err: errors.New("failed to parse response JSON"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
