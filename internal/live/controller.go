// Package live mirrors the active/inactive state of a voice session into UI state. The session
// service owns the actual connection; this controller only decides when to connect or
// disconnect and relays the service's status callbacks.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MegaGrindStone/friday-web-ui/internal/models"
)

// Session is the voice backend surface the controller drives. Connect registers a callback the
// service invokes on every subsequent status transition; Disconnect tears the session down,
// best-effort.
type Session interface {
	Connect(ctx context.Context, onStatus func(active bool)) error
	Disconnect(ctx context.Context) error
}

// ConnectFailureText is the fixed string shown when a connect attempt fails.
const ConnectFailureText = "Could not access microphone or connect to Friday Live."

// Controller holds the single live subscription. At most one session is considered active at a
// time, and there is no automatic reconnect.
type Controller struct {
	session  Session
	onChange func(active bool)
	logger   *slog.Logger

	mu     sync.Mutex
	active bool
}

// New creates a Controller over session. onChange, if non-nil, is invoked on every transition
// of the active flag so the UI can be updated.
func New(session Session, onChange func(active bool), logger *slog.Logger) *Controller {
	return &Controller{
		session:  session,
		onChange: onChange,
		logger:   logger.With(slog.String("module", "live")),
	}
}

// Active reports whether a live session is considered active from the UI's perspective.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Toggle flips the session state. When active it requests a disconnect and drops the flag
// immediately, without waiting for the service's own confirmation; the status callback may
// redundantly confirm later. When inactive it connects and hands the service the status
// callback, which is the single source of truth for the flag from then on. A failed connect
// returns a *models.Failure and leaves the flag false.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active {
		if err := c.session.Disconnect(ctx); err != nil {
			c.logger.Error("Failed to disconnect live session", slog.String("err", err.Error()))
		}
		c.setActive(false)
		return nil
	}

	if err := c.session.Connect(ctx, c.setActive); err != nil {
		c.logger.Error("Failed to start live session", slog.String("err", err.Error()))
		return &models.Failure{
			Kind:    models.LiveConnectFailure,
			Message: ConnectFailureText,
		}
	}
	return nil
}

func (c *Controller) setActive(active bool) {
	c.mu.Lock()
	changed := c.active != active
	c.active = active
	c.mu.Unlock()

	if changed && c.onChange != nil {
		c.onChange(active)
	}
}
