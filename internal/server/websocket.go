package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skypro1111/transcript-diarizer/internal/job"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// progressMessage is pushed to websocket clients on every job update
type progressMessage struct {
	ID       string     `json:"id"`
	Status   job.Status `json:"status"`
	Progress float64    `json:"progress"`
	Error    string     `json:"error,omitempty"`
}

// handleJobWebSocket streams job progress until the job finishes or the client goes away
func (h *HTTPServer) handleJobWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	updates, unsubscribe, err := h.jobs.Subscribe(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	// The reader only handles control frames and notices disconnects
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case info, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
				return
			}

			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(progressMessage{
				ID:       info.ID,
				Status:   info.Status,
				Progress: info.Progress,
				Error:    info.Error,
			}); err != nil {
				h.logger.Debug("Websocket write failed",
					slog.String("job_id", id),
					slog.String("error", err.Error()),
				)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}
