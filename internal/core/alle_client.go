package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AlleClient talks to the Alle AI multi-model chat endpoint.
type AlleClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewAlleClient(baseURL, apiKey string, timeout time.Duration) *AlleClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AlleClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (c *AlleClient) Name() string { return "alleai" }

type alleContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type alleMessage struct {
	System []alleContentPart `json:"system,omitempty"`
	User   []alleContentPart `json:"user"`
}

type alleRequest struct {
	Models      []string      `json:"models"`
	Messages    []alleMessage `json:"messages"`
	WebSearch   bool          `json:"web_search"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type alleResponse struct {
	Success   bool `json:"success"`
	Responses *struct {
		Responses map[string]ModelResponse `json:"responses"`
	} `json:"responses"`
}

func (c *AlleClient) Complete(ctx context.Context, req ProviderRequest) (*ProviderResponse, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	msg := alleMessage{User: []alleContentPart{{Type: "text", Text: req.User}}}
	if req.System != "" {
		msg.System = []alleContentPart{{Type: "text", Text: req.System}}
	}
	body, err := json.Marshal(alleRequest{
		Models:      req.Models,
		Messages:    []alleMessage{msg},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alle ai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build alle ai request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("alle ai request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("alle ai request failed: %s: %s", res.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded alleResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if decoded.Responses == nil {
		return nil, fmt.Errorf("%w: missing responses envelope", ErrMalformedResponse)
	}
	return &ProviderResponse{Success: decoded.Success, Responses: decoded.Responses.Responses}, nil
}
