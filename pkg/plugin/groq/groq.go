// Package groq provides a generation back-end on the Groq inference API,
// which speaks the OpenAI chat completion protocol.
package groq

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/llm"
)

const (
	baseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the fallback chat model.
	DefaultModel = "llama-3.3-70b-versatile"
)

// LLM implements llm.Provider on Groq.
type LLM struct {
	client *openai.Client
	model  string
}

// New creates a Groq back-end for the given model. An empty model selects
// DefaultModel.
func New(apiKey, model string) *LLM {
	if model == "" {
		model = DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &LLM{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name identifies the back-end in logs and fallback chains.
func (l *LLM) Name() string {
	return "groq/" + l.model
}

// Complete generates a chat completion.
func (l *LLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		if ai.IsCancellation(err) {
			return "", err
		}
		return "", ai.NewRecoverableError(err, "groq chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", ai.NewRecoverableError(fmt.Errorf("no completion choices returned"), "groq returned empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
