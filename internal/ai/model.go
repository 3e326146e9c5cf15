package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna/kitscout/internal/apperrors"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// Prompt is one completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int32
	JSON        bool
}

// Model produces text for a prompt. Callers must treat every error as
// "model unavailable" and fall back to deterministic behavior.
type Model interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// GenAIModel calls the Gemini API.
type GenAIModel struct {
	client *genai.Client
	model  string
}

// NewModel creates a Gemini-backed model. An empty key is a configuration
// error, which callers use to run without AI.
func NewModel(ctx context.Context, apiKey, model string) (*GenAIModel, error) {
	if apiKey == "" {
		return nil, apperrors.Configuration("ai.new", "GEMINI_API_KEY not set")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GenAIModel{client: client, model: model}, nil
}

// Complete sends the prompt and returns the response text.
func (m *GenAIModel) Complete(ctx context.Context, p Prompt) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.Temperature),
		MaxOutputTokens: p.MaxTokens,
	}
	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(p.User), cfg)
	if err != nil {
		return "", apperrors.Provider("ai.complete", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", apperrors.Parse("ai.complete", errors.New("empty response"))
	}
	return text, nil
}

// DecodeJSON unmarshals a model response, tolerating a markdown code fence
// around the object.
func DecodeJSON(text string, v any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return apperrors.Parse("ai.decode", err)
	}
	return nil
}
