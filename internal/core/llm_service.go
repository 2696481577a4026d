package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/Meetwin/AI-Lecturer/internal/config"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
	"github.com/Meetwin/AI-Lecturer/internal/metrics"
)

const (
	defaultChatModelName   = "gpt-4o"
	defaultGeminiModelName = "gemini-1.5-flash-latest"
)

var (
	ErrNoAPIKey          = errors.New("no API key configured for completion provider")
	ErrMalformedResponse = errors.New("malformed completion provider response")
)

// ProviderRequest is the provider-neutral shape of a single completion call:
// one system part, one user part, sampling settings and the models to ask.
type ProviderRequest struct {
	Models      []string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

type ProviderMessage struct {
	Content string `json:"content"`
}

type ModelResponse struct {
	Message *ProviderMessage `json:"message"`
}

// ProviderResponse mirrors the provider contract: one entry per model id.
type ProviderResponse struct {
	Success   bool
	Responses map[string]ModelResponse
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req ProviderRequest) (*ProviderResponse, error)
}

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFallback Outcome = "fallback"
)

type FallbackReason string

const (
	ReasonNone              FallbackReason = ""
	ReasonNoAPIKey          FallbackReason = "no_api_key"
	ReasonTimeout           FallbackReason = "timeout"
	ReasonProviderError     FallbackReason = "provider_error"
	ReasonMalformedResponse FallbackReason = "malformed_response"
	ReasonEmptyContent      FallbackReason = "empty_content"
)

// Completion is the result of a gateway call. On fallback, Content holds the
// caller's canned text and Reason says why the provider answer was not used.
type Completion struct {
	Content string
	Outcome Outcome
	Reason  FallbackReason
	Model   string
	Err     error
}

func (c Completion) IsFallback() bool { return c.Outcome == OutcomeFallback }

// LLMService is the completion gateway. It makes exactly one provider attempt
// per call and never returns an error: failures become fallback completions.
type LLMService struct {
	provider Provider
	models   []string
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewLLMService(provider Provider, models []string, log *logger.Logger, m *metrics.Metrics) *LLMService {
	if len(models) == 0 {
		models = []string{defaultChatModelName}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LLMService{
		provider: provider,
		models:   models,
		log:      log.With("service", "LLMService"),
		metrics:  m,
	}
}

// NewProviderFromConfig builds the provider named by cfg.AIProvider. It
// returns nil when no API key is configured; the gateway then always falls back.
func NewProviderFromConfig(ctx context.Context, cfg config.Config) (Provider, error) {
	if cfg.ProviderAPIKey() == "" {
		return nil, nil
	}
	switch cfg.AIProvider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.GeminiAPIKey)
	case config.ProviderAlle, "":
		return NewAlleClient(cfg.AlleBaseURL, cfg.AlleAPIKey, cfg.ProviderTimeout), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}

// ModelsFromConfig returns the model list for the configured provider.
func ModelsFromConfig(cfg config.Config) []string {
	var models []string
	for _, m := range strings.Split(cfg.ChatModel, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) > 0 {
		return models
	}
	if cfg.AIProvider == config.ProviderGemini {
		return []string{defaultGeminiModelName}
	}
	return []string{defaultChatModelName}
}

func (s *LLMService) ProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}

func (s *LLMService) Configured() bool { return s.provider != nil }

func (s *LLMService) Close() {
	if closer, ok := s.provider.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.log.Warn("Error closing completion provider", "error", err)
		} else {
			s.log.Info("Completion provider closed", "provider", s.provider.Name())
		}
	}
}

// Complete sends prompt to the provider. kind labels metrics ("chat", "story").
func (s *LLMService) Complete(ctx context.Context, kind string, prompt Prompt, fallback string) Completion {
	c := s.complete(ctx, prompt)
	if c.IsFallback() {
		c.Content = fallback
		s.log.Warn("Completion fell back", "kind", kind, "reason", string(c.Reason), "error", c.Err)
	}
	s.metrics.ObserveCompletion(kind, string(c.Outcome), string(c.Reason))
	return c
}

func (s *LLMService) complete(ctx context.Context, prompt Prompt) Completion {
	if s.provider == nil {
		return fallbackCompletion(ReasonNoAPIKey, ErrNoAPIKey)
	}

	start := time.Now()
	resp, err := s.provider.Complete(ctx, ProviderRequest{
		Models:      s.models,
		System:      prompt.System,
		User:        prompt.User,
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	})
	s.metrics.ObserveProvider(s.provider.Name(), time.Since(start))
	if err != nil {
		return fallbackCompletion(classifyProviderError(err), err)
	}
	if resp == nil || !resp.Success || len(resp.Responses) == 0 {
		return fallbackCompletion(ReasonMalformedResponse, ErrMalformedResponse)
	}

	model, content, ok := SelectModelResponse(resp.Responses, s.models)
	if !ok {
		return fallbackCompletion(ReasonEmptyContent, fmt.Errorf("no model returned message content"))
	}
	return Completion{Content: content, Outcome: OutcomeSuccess, Model: model}
}

func fallbackCompletion(reason FallbackReason, err error) Completion {
	return Completion{Outcome: OutcomeFallback, Reason: reason, Err: err}
}

func classifyProviderError(err error) FallbackReason {
	if errors.Is(err, ErrNoAPIKey) {
		return ReasonNoAPIKey
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, ErrMalformedResponse) {
		return ReasonMalformedResponse
	}
	return ReasonProviderError
}

// SelectModelResponse walks the requested models in order, then any other
// returned model ids in lexical order, and returns the first non-empty content.
func SelectModelResponse(responses map[string]ModelResponse, preferred []string) (string, string, bool) {
	seen := make(map[string]bool, len(preferred))
	keys := make([]string, 0, len(responses))
	for _, m := range preferred {
		if _, ok := responses[m]; ok && !seen[m] {
			keys = append(keys, m)
			seen[m] = true
		}
	}
	var rest []string
	for m := range responses {
		if !seen[m] {
			rest = append(rest, m)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	for _, m := range keys {
		r := responses[m]
		if r.Message != nil && strings.TrimSpace(r.Message.Content) != "" {
			return m, r.Message.Content, true
		}
	}
	return "", "", false
}
