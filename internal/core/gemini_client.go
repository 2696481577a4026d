package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient adapts the Gemini SDK to the Provider contract, keying each
// answer by the model that produced it.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *GeminiClient) Complete(ctx context.Context, req ProviderRequest) (*ProviderResponse, error) {
	out := &ProviderResponse{Success: true, Responses: make(map[string]ModelResponse, len(req.Models))}
	var lastErr error
	for _, name := range req.Models {
		model := c.client.GenerativeModel(name)
		if req.System != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(req.System)},
			}
		}
		temp := req.Temperature
		maxTokens := int32(req.MaxTokens)
		model.GenerationConfig = genai.GenerationConfig{
			Temperature:     &temp,
			MaxOutputTokens: &maxTokens,
		}

		resp, err := model.GenerateContent(ctx, genai.Text(req.User))
		if err != nil {
			lastErr = fmt.Errorf("gemini request for %s failed: %w", name, err)
			continue
		}
		out.Responses[name] = ModelResponse{Message: &ProviderMessage{Content: candidateText(resp)}}
	}
	if len(out.Responses) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// candidateText concatenates the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return text.String()
}
