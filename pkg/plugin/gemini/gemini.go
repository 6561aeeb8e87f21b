// Package gemini provides generation back-ends on the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/llm"
)

const (
	// FastModel answers greetings and short queries.
	FastModel = "gemini-1.5-flash"
	// DeepModel answers complex and document queries.
	DeepModel = "gemini-1.5-pro"
)

// LLM implements llm.Provider on one Gemini model.
type LLM struct {
	client *genai.Client
	model  string
}

// New creates a Gemini back-end for the given model.
func New(ctx context.Context, apiKey, model string) (*LLM, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &LLM{client: client, model: model}, nil
}

// Name identifies the back-end in logs and fallback chains.
func (l *LLM) Name() string {
	return "gemini/" + l.model
}

// Complete generates a completion.
func (l *LLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	result, err := l.client.Models.GenerateContent(ctx, l.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		if ai.IsCancellation(err) {
			return "", err
		}
		return "", ai.NewRecoverableError(err, "gemini generation failed")
	}
	text := result.Text()
	if text == "" {
		return "", ai.NewRecoverableError(fmt.Errorf("no candidates returned"), "gemini returned empty response")
	}
	return text, nil
}
