package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the voice backend.
	voiceWriteWait = 10 * time.Second

	// Time allowed to read the next pong from the voice backend.
	voicePongWait = 60 * time.Second

	// Send pings with this period. Must be less than voicePongWait.
	voicePingPeriod = (voicePongWait * 9) / 10

	// Buffered audio frames coming back from the backend.
	voiceOutputBuffer = 32
)

// VoiceSession maintains a single bidirectional voice connection to the backend over WebSocket.
// It reports activity transitions through the status callback handed to Connect, and relays
// binary audio frames in both directions.
type VoiceSession struct {
	url    string
	apiKey string
	model  string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	out    chan []byte
}

type voiceSetup struct {
	Setup voiceSetupBody `json:"setup"`
}

type voiceSetupBody struct {
	Model string `json:"model"`
}

// NewVoiceSession creates a VoiceSession dialing the given WebSocket URL. The session stays
// disconnected until Connect is called.
func NewVoiceSession(url, apiKey, model string, logger *slog.Logger) *VoiceSession {
	return &VoiceSession{
		url:    url,
		apiKey: apiKey,
		model:  model,
		logger: logger.With(slog.String("module", "voice")),
	}
}

// Connect dials the voice backend, announces the session setup, and starts the read and ping
// pumps. onStatus is invoked with true once the session is up, and with false on every
// subsequent teardown, whether local or remote. Connecting while a session is already up is an
// error.
func (v *VoiceSession) Connect(ctx context.Context, onStatus func(active bool)) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.conn != nil {
		return fmt.Errorf("live session is already connected")
	}

	header := http.Header{}
	if v.apiKey != "" {
		header.Set("Authorization", "Bearer "+v.apiKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, v.url, header) //nolint:bodyclose
	if err != nil {
		if resp != nil {
			return fmt.Errorf("error dialing voice service (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("error dialing voice service: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(voiceWriteWait))
	if err := conn.WriteJSON(voiceSetup{Setup: voiceSetupBody{Model: v.model}}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("error sending session setup: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	v.conn = conn
	v.cancel = cancel
	v.out = make(chan []byte, voiceOutputBuffer)

	go v.readPump(conn, v.out, onStatus)
	go v.pingLoop(pumpCtx, conn)

	onStatus(true)
	return nil
}

// Disconnect tears the session down, best-effort. The read pump notices the closed connection
// and reports the inactive status through the callback registered at Connect.
func (v *VoiceSession) Disconnect(_ context.Context) error {
	v.mu.Lock()
	conn := v.conn
	v.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(voiceWriteWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// WriteAudio forwards one binary audio frame to the backend.
func (v *VoiceSession) WriteAudio(data []byte) error {
	v.mu.Lock()
	conn := v.conn
	v.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("no active live session")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(voiceWriteWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("error writing audio frame: %w", err)
	}
	return nil
}

// Output returns the channel of audio frames produced by the backend for the current session.
// The channel is closed when the session ends.
func (v *VoiceSession) Output() <-chan []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.out
}

func (v *VoiceSession) readPump(conn *websocket.Conn, out chan []byte, onStatus func(active bool)) {
	defer func() {
		v.teardown(conn, out)
		onStatus(false)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(voicePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(voicePongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.logger.Error("Voice session closed unexpectedly", slog.String("err", err.Error()))
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		select {
		case out <- data:
		default:
			// The browser side is not draining; dropping the frame keeps the session alive.
		}
	}
}

func (v *VoiceSession) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(voicePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(voiceWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// teardown releases the session state if conn is still the current connection. A Connect that
// already replaced the session is left untouched.
func (v *VoiceSession) teardown(conn *websocket.Conn, out chan []byte) {
	_ = conn.Close()

	v.mu.Lock()
	if v.conn == conn {
		v.conn = nil
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
		v.out = nil
	}
	v.mu.Unlock()

	close(out)
}
