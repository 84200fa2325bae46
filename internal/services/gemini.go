package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/MegaGrindStone/friday-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Gemini provides an implementation of the LLM interface for interacting with Google's Gemini
// models. It streams chat completions over the generateContent SSE endpoint.
type Gemini struct {
	apiKey       string
	model        string
	systemPrompt string

	client *http.Client
}

type geminiChatRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiStreamResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

const geminiAPIEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// NewGemini creates a new Gemini instance with the specified API key, model name, and system
// prompt. It initializes an HTTP client for API communication and returns a configured Gemini
// instance ready for chat interactions.
func NewGemini(apiKey, model, systemPrompt string) Gemini {
	return Gemini{
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		client:       &http.Client{},
	}
}

func geminiContents(messages []models.Message) []geminiContent {
	contents := make([]geminiContent, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == models.RoleBot {
			// The streaming placeholder is part of the history but carries nothing yet.
			if msg.Content == "" {
				continue
			}
			role = "model"
		}

		parts := []geminiPart{}
		if msg.Content != "" {
			parts = append(parts, geminiPart{Text: msg.Content})
		}
		if msg.Image != nil {
			parts = append(parts, geminiPart{
				InlineData: &geminiInlineData{
					MimeType: msg.Image.MediaType,
					Data:     msg.Image.Data,
				},
			})
		}

		contents = append(contents, geminiContent{
			Role:  role,
			Parts: parts,
		})
	}
	return contents
}

// Chat streams responses from the Gemini API for a given sequence of messages. It returns an
// iterator that yields response fragments as strings and potential errors. The context can be
// used to cancel ongoing requests.
func (g Gemini) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		reqBody := geminiChatRequest{
			Contents: geminiContents(messages),
		}
		if g.systemPrompt != "" {
			reqBody.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: g.systemPrompt}},
			}
		}

		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			yield("", fmt.Errorf("error marshaling request: %w", err))
			return
		}

		url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", geminiAPIEndpoint, g.model)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
		if err != nil {
			yield("", fmt.Errorf("error creating request: %w", err))
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", g.apiKey)

		resp, err := g.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			var e geminiError
			if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
				yield("", fmt.Errorf("gemini error %s: %s", e.Error.Status, e.Error.Message))
				return
			}
			yield("", fmt.Errorf("gemini returned status %d", resp.StatusCode))
			return
		}

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}

			var res geminiStreamResponse
			if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
				yield("", fmt.Errorf("error unmarshaling response: %w", err))
				return
			}
			for _, candidate := range res.Candidates {
				for _, part := range candidate.Content.Parts {
					if part.Text == "" {
						continue
					}
					if !yield(part.Text, nil) {
						return
					}
				}
			}
		}
	}
}
