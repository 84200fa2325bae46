package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/MegaGrindStone/friday-web-ui/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the LLM interface for interacting with OpenAI's language
// models.
type OpenAI struct {
	model        string
	systemPrompt string

	client *goopenai.Client
}

// NewOpenAI creates a new OpenAI instance with the specified API key, model name, and system
// prompt.
func NewOpenAI(apiKey, model, systemPrompt string) OpenAI {
	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		client:       goopenai.NewClient(apiKey),
	}
}

func openAIMessages(messages []models.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := goopenai.ChatMessageRoleUser
		if msg.Role == models.RoleBot {
			// The streaming placeholder is part of the history but carries nothing yet.
			if msg.Content == "" {
				continue
			}
			role = goopenai.ChatMessageRoleAssistant
		}

		if msg.Image != nil {
			msgs = append(msgs, goopenai.ChatCompletionMessage{
				Role: role,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: msg.Content,
					},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL: msg.Image.DataURL(),
						},
					},
				},
			})
			continue
		}

		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return msgs
}

// Chat streams responses from the OpenAI API for a given sequence of messages. It returns an
// iterator that yields response fragments as strings and potential errors. The context can be
// used to cancel ongoing requests.
func (o OpenAI) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := openAIMessages(messages)
		msgs = append([]goopenai.ChatCompletionMessage{
			{
				Role:    goopenai.ChatMessageRoleSystem,
				Content: o.systemPrompt,
			},
		}, msgs...)

		req := goopenai.ChatCompletionRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   true,
		}

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error creating stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			res, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}
			if len(res.Choices) == 0 {
				continue
			}
			if !yield(res.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}
