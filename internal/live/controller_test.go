package live_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/MegaGrindStone/friday-web-ui/internal/live"
	"github.com/MegaGrindStone/friday-web-ui/internal/models"
)

type mockSession struct {
	connectErr  error
	onStatus    func(active bool)
	disconnects int
}

func (s *mockSession) Connect(_ context.Context, onStatus func(active bool)) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.onStatus = onStatus
	return nil
}

func (s *mockSession) Disconnect(context.Context) error {
	s.disconnects++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestToggleMirrorsServiceStatus(t *testing.T) {
	session := &mockSession{}
	var changes []bool
	ctrl := live.New(session, func(active bool) { changes = append(changes, active) }, testLogger())

	if err := ctrl.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if ctrl.Active() {
		t.Error("Active() should stay false until the service confirms")
	}

	// The service confirms the session, then drops it remotely; no local toggle happens.
	session.onStatus(true)
	if !ctrl.Active() {
		t.Error("Active() should be true after the service confirms")
	}
	session.onStatus(false)
	if ctrl.Active() {
		t.Error("Active() should be false after the remote disconnect")
	}

	want := []bool{true, false}
	if len(changes) != len(want) {
		t.Fatalf("got %d transitions, want %d", len(changes), len(want))
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestToggleDisconnects(t *testing.T) {
	session := &mockSession{}
	ctrl := live.New(session, nil, testLogger())

	if err := ctrl.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	session.onStatus(true)

	if err := ctrl.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if session.disconnects != 1 {
		t.Errorf("got %d disconnects, want 1", session.disconnects)
	}
	// The flag drops immediately, without waiting for the service's confirmation.
	if ctrl.Active() {
		t.Error("Active() should be false right after toggling off")
	}
}

func TestToggleConnectFailure(t *testing.T) {
	session := &mockSession{connectErr: errors.New("permission denied")}
	ctrl := live.New(session, nil, testLogger())

	err := ctrl.Toggle(context.Background())
	var f *models.Failure
	if !errors.As(err, &f) {
		t.Fatalf("Toggle() error = %v, want *models.Failure", err)
	}
	if f.Kind != models.LiveConnectFailure || f.Message != live.ConnectFailureText {
		t.Errorf("unexpected failure %+v", f)
	}
	if ctrl.Active() {
		t.Error("Active() should remain false after a failed connect")
	}
}
