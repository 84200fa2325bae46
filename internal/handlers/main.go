package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	fridaywebui "github.com/MegaGrindStone/friday-web-ui"
	"github.com/MegaGrindStone/friday-web-ui/internal/conversation"
	"github.com/MegaGrindStone/friday-web-ui/internal/live"
	"github.com/MegaGrindStone/friday-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// PreferenceStore defines the interface for the persisted UI preferences, currently just the
// theme. An absent key yields an empty string.
type PreferenceStore interface {
	Preference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
}

// VoiceSession is the surface the handlers need from the voice service: the live controller's
// connect/disconnect plus the audio bridge for the browser-side WebSocket.
type VoiceSession interface {
	live.Session
	WriteAudio(data []byte) error
	Output() <-chan []byte
}

// Main handles the core functionality of the chat application, managing server-sent events,
// HTML templates, and interactions between the conversation controller, the live session
// controller, and the preference store.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	conv  *conversation.Controller
	live  *live.Controller
	prefs PreferenceStore
	voice VoiceSession

	logger *slog.Logger
}

// SSE topics and event types for real-time updates.
const (
	messagesSSETopic = "messages"
	statusSSETopic   = "status"
	liveSSETopic     = "live"
)

var (
	messagesSSEType = sse.Type("messages")
	appendSSEType   = sse.Type("append")
	statusSSEType   = sse.Type("status")
	liveSSEType     = sse.Type("live")
)

const errLoggerKey = "err"

// NewMain creates a new Main instance wiring the provided LLM, preference store, and voice
// session together. It initializes the SSE server with default configurations and parses the
// required HTML templates from the embedded filesystem. A nil llm marks the chat service as
// failed to initialize; the UI then shows a persistent banner. The SSE server is configured to
// handle both default events and per-message topics.
func NewMain(llm conversation.LLM, prefs PreferenceStore, voice VoiceSession, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		fridaywebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	m := Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				// We start with default topics that all clients should subscribe to
				topics := []string{sse.DefaultTopic, messagesSSETopic, statusSSETopic, liveSSETopic}

				// We create a message-specific topic if the client requests updates for a particular message
				messageID := s.Req.URL.Query().Get("message_id")
				if messageID != "" {
					topics = append(topics, messageIDTopic(messageID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		prefs:     prefs,
		voice:     voice,
		logger:    logger.With(slog.String("module", "handlers")),
	}

	m.conv = conversation.New(llm, m, logger)
	m.live = live.New(voice, m.publishLiveStatus, logger)

	return m, nil
}

func messageIDTopic(messageID string) string {
	return fmt.Sprintf("message-%s", messageID)
}

// PublishMessage implements conversation.Publisher. Every append and in-place update is pushed
// twice: the full message bubble on the shared messages topic, so clients can insert nodes they
// don't have yet, and the rendered content on the per-message topic, so streaming updates
// replace the bubble body in place. A finalized bot message additionally gets a close event so
// the client can drop its per-message subscription.
func (m Main) PublishMessage(msg models.Message) {
	view, err := newMessageView(msg)
	if err != nil {
		m.logger.Error("Failed to render message contents",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	var bubble strings.Builder
	if err := m.templates.ExecuteTemplate(&bubble, view.templateName(), view); err != nil {
		m.logger.Error("Failed to execute message template",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	appendEv := &sse.Message{Type: appendSSEType}
	appendEv.AppendData(bubble.String())
	_ = m.sseSrv.Publish(appendEv, messagesSSETopic)

	contentEv := &sse.Message{Type: messagesSSEType}
	contentEv.AppendData(string(view.Content))
	_ = m.sseSrv.Publish(contentEv, messageIDTopic(msg.ID))

	if msg.Role == models.RoleBot && !msg.Streaming {
		closeEv := &sse.Message{Type: sse.Type("closeMessage")}
		closeEv.AppendData("bye")
		_ = m.sseSrv.Publish(closeEv, messageIDTopic(msg.ID))
	}
}

// PublishStatus implements conversation.Publisher by pushing the rendered banner state to every
// connected client.
func (m Main) PublishStatus(st conversation.Status) {
	data := statusView{Loading: st.Loading}
	if st.Failure != nil {
		data.Error = st.Failure.Message
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "status_banner", data); err != nil {
		m.logger.Error("Failed to execute status template", slog.String(errLoggerKey, err.Error()))
		return
	}

	e := &sse.Message{Type: statusSSEType}
	e.AppendData(sb.String())
	_ = m.sseSrv.Publish(e, statusSSETopic)
}

func (m Main) publishLiveStatus(active bool) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "live_button", liveView{Active: active}); err != nil {
		m.logger.Error("Failed to execute live button template", slog.String(errLoggerKey, err.Error()))
		return
	}

	e := &sse.Message{Type: liveSSEType}
	e.AppendData(sb.String())
	_ = m.sseSrv.Publish(e, liveSSETopic)
}

// HandleSSE serves the event stream the browser subscribes to for message, status, and live
// session updates.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message
// to all connected clients and waits up to 5 seconds for connections to terminate. After the
// timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
