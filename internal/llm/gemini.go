// Package llm wraps the generative model behind a small interface and
// normalizes its failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// Generator is the model collaborator used by classification and chat.
// Every returned error is an *Error.
type Generator interface {
	// GenerateJSON asks for output constrained to schema and returns the raw text.
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)

	// GenerateText asks for free-form text.
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty response from model")

// GeminiClient implements Generator on google.golang.org/genai.
type GeminiClient struct {
	models modelService
	model  string
	temp   *float32
}

// modelService is the slice of genai.Models the client depends on.
type modelService interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return newGeminiClient(client.Models, model), nil
}

func newGeminiClient(models modelService, model string) *GeminiClient {
	if strings.TrimSpace(model) == "" {
		model = DefaultModelName
	}
	temp := float32(0.2)
	return &GeminiClient{models: models, model: model, temp: &temp}
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// GenerateJSON implements Generator.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      c.temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	return c.generate(ctx, prompt, cfg)
}

// GenerateText implements Generator.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, &genai.GenerateContentConfig{Temperature: c.temp})
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", Normalize(fmt.Errorf("generate content: %w", err))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", Invalid(ErrEmptyResponse)
	}
	return text, nil
}

var _ Generator = (*GeminiClient)(nil)
