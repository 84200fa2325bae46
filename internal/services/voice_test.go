package services_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/friday-web-ui/internal/services"
	"github.com/gorilla/websocket"
)

// echoVoiceServer accepts one session setup message and echoes every binary frame back.
func echoVoiceServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var setup map[string]any
		if err := conn.ReadJSON(&setup); err != nil {
			return
		}

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitStatus(t *testing.T, statuses <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-statuses:
		if got != want {
			t.Fatalf("status = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("no status transition to %v in time", want)
	}
}

func TestVoiceSessionRoundTrip(t *testing.T) {
	srv := echoVoiceServer(t)
	defer srv.Close()

	v := services.NewVoiceSession(wsURL(srv), "", "friday-voice", testLogger())

	statuses := make(chan bool, 4)
	if err := v.Connect(context.Background(), func(active bool) { statuses <- active }); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitStatus(t, statuses, true)

	output := v.Output()
	if output == nil {
		t.Fatal("Output() should be non-nil while connected")
	}

	if err := v.WriteAudio([]byte("frame")); err != nil {
		t.Fatalf("WriteAudio() error = %v", err)
	}
	select {
	case frame := <-output:
		if string(frame) != "frame" {
			t.Errorf("echoed frame = %q, want %q", frame, "frame")
		}
	case <-time.After(time.Second):
		t.Fatal("no echoed frame in time")
	}

	if err := v.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	waitStatus(t, statuses, false)

	if err := v.WriteAudio([]byte("frame")); err == nil {
		t.Error("WriteAudio() after disconnect should fail")
	}
}

func TestVoiceSessionConnectRefused(t *testing.T) {
	srv := echoVoiceServer(t)
	url := wsURL(srv)
	srv.Close()

	v := services.NewVoiceSession(url, "", "friday-voice", testLogger())

	err := v.Connect(context.Background(), func(bool) {
		t.Error("status callback should not fire on a failed connect")
	})
	if err == nil {
		t.Fatal("Connect() should fail against a closed server")
	}
}

func TestVoiceSessionDoubleConnect(t *testing.T) {
	srv := echoVoiceServer(t)
	defer srv.Close()

	v := services.NewVoiceSession(wsURL(srv), "", "friday-voice", testLogger())

	statuses := make(chan bool, 4)
	if err := v.Connect(context.Background(), func(active bool) { statuses <- active }); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitStatus(t, statuses, true)
	defer v.Disconnect(context.Background())

	if err := v.Connect(context.Background(), func(bool) {}); err == nil {
		t.Error("a second Connect() while active should fail")
	}
}
