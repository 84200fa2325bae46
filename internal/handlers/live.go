package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/friday-web-ui/internal/models"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// HandleLive toggles the live voice session through HTTP POST requests and responds with the
// rendered toggle button reflecting the new state. A failed connect raises the error banner and
// leaves the session inactive.
func (m Main) HandleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.live.Toggle(r.Context()); err != nil {
		var f *models.Failure
		if errors.As(err, &f) {
			m.conv.SetFailure(f)
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "live_button", liveView{Active: m.live.Active()}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleVoiceSocket upgrades the browser connection and bridges binary audio frames between it
// and the active voice session, in both directions. The connection is rejected when no session
// is active.
func (m Main) HandleVoiceSocket(w http.ResponseWriter, r *http.Request) {
	output := m.voice.Output()
	if output == nil {
		http.Error(w, "No active live session", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("WebSocket upgrade failed", slog.String(errLoggerKey, err.Error()))
		return
	}
	defer conn.Close()

	// Backend audio goes down to the browser until the session's output channel closes.
	go func() {
		for frame := range output {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				_ = conn.Close()
				return
			}
		}
		_ = conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Error("WebSocket closed unexpectedly", slog.String(errLoggerKey, err.Error()))
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		if err := m.voice.WriteAudio(data); err != nil {
			m.logger.Error("Failed to forward audio frame", slog.String(errLoggerKey, err.Error()))
			return
		}
	}
}
