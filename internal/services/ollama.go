package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"

	"github.com/MegaGrindStone/friday-web-ui/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the LLM interface for interacting with Ollama's language
// models. It manages connections to an Ollama server instance and handles streaming chat
// completions.
type Ollama struct {
	host         string
	model        string
	systemPrompt string

	client *api.Client
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server. If the provided host URL is
// invalid, the function will panic.
func NewOllama(host, model, systemPrompt string) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:         host,
		model:        model,
		systemPrompt: systemPrompt,
		client:       api.NewClient(u, &http.Client{}),
	}
}

func ollamaMessages(messages []models.Message) []api.Message {
	msgs := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == models.RoleBot {
			// The streaming placeholder is part of the history but carries nothing yet.
			if msg.Content == "" {
				continue
			}
			role = "assistant"
		}

		m := api.Message{
			Role:    role,
			Content: msg.Content,
		}
		if msg.Image != nil {
			if data, err := base64.StdEncoding.DecodeString(msg.Image.Data); err == nil {
				m.Images = []api.ImageData{data}
			}
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// Chat implements the LLM interface by streaming responses from the Ollama model. It accepts a
// context for cancellation and the conversation history. The function returns an iterator that
// yields response fragments as strings and potential errors. The response is streamed
// incrementally, allowing for real-time processing of model outputs.
func (o Ollama) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := ollamaMessages(messages)
		msgs = slices.Insert(msgs, 0, api.Message{
			Role:    "system",
			Content: o.systemPrompt,
		})

		t := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   &t,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if !yield(res.Message.Content, nil) {
				cancel()
			}
			return nil
		}); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}
