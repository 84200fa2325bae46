package handlers

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/friday-web-ui/internal/conversation"
	"github.com/MegaGrindStone/friday-web-ui/internal/models"
)

// messageView is the template-facing shape of a message bubble.
type messageView struct {
	ID             string
	Role           string
	Content        template.HTML
	ImageURL       string
	Timestamp      time.Time
	StreamingState string
	IsError        bool
}

type statusView struct {
	Loading bool
	Error   string
}

type liveView struct {
	Active bool
}

const (
	streamingStateLoading   = "loading"
	streamingStateStreaming = "streaming"
	streamingStateEnded     = "ended"
)

func newMessageView(msg models.Message) (messageView, error) {
	var content template.HTML
	if msg.Role == models.RoleBot {
		var err error
		content, err = models.RenderHTML(msg.Content)
		if err != nil {
			return messageView{}, err
		}
	} else {
		content = template.HTML(template.HTMLEscapeString(msg.Content)) //nolint:gosec
	}

	state := streamingStateEnded
	switch {
	case msg.Streaming && msg.Content == "":
		state = streamingStateLoading
	case msg.Streaming:
		state = streamingStateStreaming
	}

	view := messageView{
		ID:             msg.ID,
		Role:           string(msg.Role),
		Content:        content,
		Timestamp:      msg.Timestamp,
		StreamingState: state,
		IsError:        msg.Error,
	}
	if msg.Image != nil {
		view.ImageURL = msg.Image.DataURL()
	}
	return view, nil
}

func (v messageView) templateName() string {
	if v.Role == string(models.RoleUser) {
		return "user_message"
	}
	return "bot_message"
}

// HandleMessages processes chat interactions through HTTP POST requests. It accepts the user's
// text through a "message" form field and an optional image through an "image" field carrying a
// base64 data URL, starts one send cycle on the conversation controller, and renders the user
// message together with the streaming bot placeholder. The placeholder's content is streamed to
// the browser through Server-Sent Events afterwards.
//
// The function returns appropriate HTTP error responses for invalid methods, missing required
// fields, or an overlapping send, which the controller rejects.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text := r.FormValue("message")
	rawImage := r.FormValue("image")
	if text == "" && rawImage == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	var image *models.ImageAttachment
	if rawImage != "" {
		attachment := models.ParseImageAttachment(rawImage)
		image = &attachment
	}

	userMsg, botMsg, err := m.conv.SendMessage(context.Background(), text, image)
	if err != nil {
		if errors.Is(err, conversation.ErrSendInFlight) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		m.logger.Error("Failed to send message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// We render both bubbles right away; the placeholder fills up via SSE as fragments arrive.
	for _, msg := range []models.Message{userMsg, botMsg} {
		view, err := newMessageView(msg)
		if err != nil {
			m.logger.Error("Failed to render message contents",
				slog.String("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := m.templates.ExecuteTemplate(w, view.templateName(), view); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
