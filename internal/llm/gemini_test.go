package llm

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

// MockModels is a mock implementation of modelService.
type MockModels struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *MockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: s}}},
		}},
	}
}

func TestGeminiClient_GenerateJSON(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	var gotModel string
	models := &MockModels{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotConfig = config
			return textResponse(`{"ok":true}`), nil
		},
	}
	c := newGeminiClient(models, "")
	schema := &genai.Schema{Type: genai.TypeObject}

	out, err := c.GenerateJSON(context.Background(), "prompt", schema)
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("out = %q", out)
	}
	if gotModel != DefaultModelName {
		t.Errorf("model = %q, want default", gotModel)
	}
	if gotConfig.ResponseMIMEType != "application/json" || gotConfig.ResponseSchema != schema {
		t.Errorf("JSON config not applied: %+v", gotConfig)
	}
}

func TestGeminiClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		resp     *genai.GenerateContentResponse
		err      error
		wantKind Kind
	}{
		{"empty text", textResponse("  "), nil, KindOutputInvalid},
		{"rate limited", nil, genai.APIError{Code: 429}, KindTransient},
		{"bad request", nil, genai.APIError{Code: 400}, KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newGeminiClient(&MockModels{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}, "m")
			_, err := c.GenerateText(context.Background(), "p")
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("error %v is not normalized", err)
			}
			if e.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", e.Kind, tt.wantKind)
			}
		})
	}
}
