package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
)

type homePageData struct {
	Messages []messageView
	Theme    string
	Error    string
	Loading  bool
	Live     liveView

	// InputDisabled is only set when initialization failed before any message could be sent;
	// after that the conversation stays usable even with the banner showing.
	InputDisabled bool
}

const themePreferenceKey = "theme"

const (
	themeDark  = "dark"
	themeLight = "light"
)

// HandleHome renders the chat page from the current conversation state, the persisted theme
// preference, and the live session status.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	theme, err := m.prefs.Preference(r.Context(), themePreferenceKey)
	if err != nil {
		// The page still works without a stored preference; the client falls back to the OS
		// color-scheme hint.
		m.logger.Error("Failed to read theme preference", slog.String(errLoggerKey, err.Error()))
	}

	messages := m.conv.Messages()
	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		view, err := newMessageView(msg)
		if err != nil {
			m.logger.Error("Failed to render message contents",
				slog.String("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		views = append(views, view)
	}

	var errText string
	if f := m.conv.LastFailure(); f != nil {
		errText = f.Message
	}

	data := homePageData{
		Messages:      views,
		Theme:         theme,
		Error:         errText,
		Loading:       m.conv.Loading(),
		Live:          liveView{Active: m.live.Active()},
		InputDisabled: errText != "" && len(views) == 0,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleTheme flips the persisted theme preference and responds with the new value so the
// client can reflect it onto the document immediately.
func (m Main) HandleTheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	current, err := m.prefs.Preference(r.Context(), themePreferenceKey)
	if err != nil {
		m.logger.Error("Failed to read theme preference", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	next := themeDark
	if current == themeDark {
		next = themeLight
	}

	if err := m.prefs.SetPreference(r.Context(), themePreferenceKey, next); err != nil {
		m.logger.Error("Failed to store theme preference", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	fmt.Fprint(w, next)
}
