package conversation

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/friday-web-ui/internal/models"
	"github.com/google/uuid"
)

// LLM represents a large language model interface that provides chat functionality. It accepts a
// context and the conversation so far, returning an iterator that yields response fragments and
// potential errors.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// Publisher receives every UI-visible state change the controller makes: message appends,
// in-place content updates during streaming, and loading/error transitions. The controller
// holds exactly one publisher, injected at construction.
type Publisher interface {
	PublishMessage(msg models.Message)
	PublishStatus(st Status)
}

// Status mirrors the controller's banner-level state.
type Status struct {
	Loading bool
	Failure *models.Failure
}

// User-facing texts for the failure paths. Provider errors carry no detail worth showing in a
// chat bubble, so these stay fixed.
const (
	ApologyText      = "I'm having trouble connecting right now. Please try again."
	InitFailureText  = "Failed to initialize chat service. Check API key."
	genericErrorText = "An unexpected error occurred."
)

// ErrSendInFlight is returned when SendMessage is called while a previous send cycle is still
// unresolved.
var ErrSendInFlight = errors.New("a send is already in flight")

// Controller owns the ordered message list and the lifecycle of each send cycle. All mutation
// of the list goes through it; callers only ever see snapshots.
type Controller struct {
	llm    LLM
	pub    Publisher
	logger *slog.Logger

	mu       sync.Mutex
	messages []models.Message
	loading  bool
	failure  *models.Failure
	// current holds the id of the bot message receiving fragments, empty when idle.
	current string
}

// New creates a Controller streaming completions from llm and pushing state changes to pub. A
// nil llm marks the chat service as failed to initialize; the banner is raised immediately and
// every send is rejected.
func New(llm LLM, pub Publisher, logger *slog.Logger) *Controller {
	c := &Controller{
		llm:    llm,
		pub:    pub,
		logger: logger.With(slog.String("module", "conversation")),
	}
	if llm == nil {
		c.failure = &models.Failure{
			Kind:    models.InitFailure,
			Message: InitFailureText,
		}
	}
	return c
}

// Messages returns a snapshot of the conversation in chronological order.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// Loading reports whether a send cycle is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LastFailure returns the most recent failure, or nil. It is cleared at the start of the next
// send.
func (c *Controller) LastFailure() *models.Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// SetFailure records a failure that happened outside a send cycle, such as a live session
// connect attempt, and pushes the updated banner state.
func (c *Controller) SetFailure(f *models.Failure) {
	c.mu.Lock()
	c.failure = f
	loading := c.loading
	c.mu.Unlock()

	c.pub.PublishStatus(Status{Loading: loading, Failure: f})
}

// SendMessage starts one send cycle: it clears any previous failure, appends the user message
// and a streaming bot placeholder, then feeds the completion stream into the placeholder from a
// background goroutine. The two appended messages are returned so callers can render them
// before the stream resolves. A second send while one is unresolved is rejected with
// ErrSendInFlight.
func (c *Controller) SendMessage(ctx context.Context, text string, image *models.ImageAttachment) (models.Message, models.Message, error) {
	c.mu.Lock()
	if c.llm == nil {
		f := c.failure
		c.mu.Unlock()
		return models.Message{}, models.Message{}, f
	}
	if c.current != "" {
		c.mu.Unlock()
		return models.Message{}, models.Message{}, ErrSendInFlight
	}

	userMsg := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   text,
		Image:     image,
		Timestamp: time.Now(),
	}
	botMsg := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleBot,
		Timestamp: time.Now(),
		Streaming: true,
	}

	c.failure = nil
	c.loading = true
	c.messages = append(c.messages, userMsg, botMsg)
	c.current = botMsg.ID
	history := slices.Clone(c.messages)
	c.mu.Unlock()

	c.pub.PublishStatus(Status{Loading: true})
	c.pub.PublishMessage(userMsg)
	c.pub.PublishMessage(botMsg)

	go c.stream(ctx, botMsg.ID, history)

	return userMsg, botMsg, nil
}

// stream consumes the completion stream for the bot message identified by botID. Fragments are
// applied strictly in arrival order; the accumulator is the single source of truth, so every
// update replaces the placeholder's content with the full value so far.
func (c *Controller) stream(ctx context.Context, botID string, history []models.Message) {
	var full strings.Builder

	for fragment, err := range c.llm.Chat(ctx, history) {
		if err != nil {
			c.logger.Error("Error from llm provider", slog.String("err", err.Error()))
			c.fail(botID, err)
			return
		}
		full.WriteString(fragment)
		c.update(botID, full.String())
	}

	c.finish(botID)
}

// update replaces the streaming placeholder's content. Fragments for a superseded stream are
// dropped.
func (c *Controller) update(botID, content string) {
	c.mu.Lock()
	if c.current != botID {
		c.mu.Unlock()
		return
	}
	idx := slices.IndexFunc(c.messages, func(m models.Message) bool { return m.ID == botID })
	if idx == -1 {
		c.mu.Unlock()
		return
	}
	c.messages[idx].Content = content
	msg := c.messages[idx]
	c.mu.Unlock()

	c.pub.PublishMessage(msg)
}

// finish finalizes a successful cycle. An empty accumulated response is valid and yields an
// empty final message.
func (c *Controller) finish(botID string) {
	c.mu.Lock()
	if c.current != botID {
		c.mu.Unlock()
		return
	}
	idx := slices.IndexFunc(c.messages, func(m models.Message) bool { return m.ID == botID })
	var msg models.Message
	if idx != -1 {
		c.messages[idx].Streaming = false
		msg = c.messages[idx]
	}
	c.current = ""
	c.loading = false
	c.mu.Unlock()

	if idx != -1 {
		c.pub.PublishMessage(msg)
	}
	c.pub.PublishStatus(Status{})
}

// fail resolves a cycle whose stream threw. The placeholder is left in whatever partial state
// it reached; a new static bot message carries the apology text instead.
func (c *Controller) fail(botID string, err error) {
	text := err.Error()
	if text == "" {
		text = genericErrorText
	}
	f := &models.Failure{
		Kind:    models.SendFailure,
		Message: text,
	}

	errMsg := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleBot,
		Content:   ApologyText,
		Timestamp: time.Now(),
		Error:     true,
	}

	c.mu.Lock()
	if c.current != botID {
		c.mu.Unlock()
		return
	}
	c.failure = f
	c.messages = append(c.messages, errMsg)
	c.current = ""
	c.loading = false
	c.mu.Unlock()

	c.pub.PublishMessage(errMsg)
	c.pub.PublishStatus(Status{Failure: f})
}
