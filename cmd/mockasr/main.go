// Command mockasr is a stand-in speech recognition service for local runs
// and integration tests. It answers every upload with canned timestamped
// chunks covering the uploaded audio.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/skypro1111/transcript-diarizer/internal/logging"
)

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time per request")
	chunk := flag.Float64("chunk", 4, "Seconds covered by each canned chunk, 0 answers with flat text")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := slog.New(logging.NewHandler(os.Stdout, "text", &slog.HandlerOptions{
		Level: logging.ParseLevel(*logLevel),
	}))

	mux := http.NewServeMux()
	mux.Handle("/transcribe", &transcribeHandler{
		logger:        logger,
		delay:         *delay,
		chunkDuration: *chunk,
	})

	logger.Info("Mock ASR server starting",
		slog.String("address", *addr),
		slog.String("endpoint", "http://localhost"+*addr+"/transcribe"),
	)

	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
