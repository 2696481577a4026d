package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
	"github.com/Meetwin/AI-Lecturer/internal/metrics"
	"github.com/Meetwin/AI-Lecturer/internal/persona"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

const (
	AnonymousUserID = "anonymous"
	DefaultChatID   = "main"
)

type chatStore interface {
	store.ConversationStore
	store.FileStore
}

type ChatService struct {
	store        chatStore
	llmService   *LLMService
	log          *logger.Logger
	metrics      *metrics.Metrics
	excerptChars int
	now          func() time.Time
}

func NewChatService(s chatStore, llm *LLMService, excerptChars int, log *logger.Logger, m *metrics.Metrics) *ChatService {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatService{
		store:        s,
		llmService:   llm,
		log:          log.With("service", "ChatService"),
		metrics:      m,
		excerptChars: excerptChars,
		now:          time.Now,
	}
}

type ChatRequest struct {
	UserID  string
	ChatID  string
	Persona string
	Message string
}

type ChatResult struct {
	Response       string
	Persona        persona.Persona
	Timestamp      time.Time
	Fallback       bool
	FallbackReason FallbackReason
	// Prompt is the assembled prompt sent to the provider.
	Prompt Prompt
}

// Chat answers message in the voice of the requested persona and records the
// exchange, fallback answers included, as one user/assistant pair.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apierr.Validation("Message is required")
	}
	key := req.Persona
	if strings.TrimSpace(key) == "" {
		key = string(persona.Default)
	}
	p, ok := persona.Lookup(key)
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("Unknown lecturer persona %q", key))
	}
	userID := orDefault(req.UserID, AnonymousUserID)
	chatID := orDefault(req.ChatID, DefaultChatID)

	fileBuffer, err := s.store.FileText(ctx, userID)
	if err != nil {
		return nil, apierr.Internal("Failed to load uploaded materials", err)
	}

	prompt := BuildLecturerPrompt(p, req.Message, fileBuffer, s.excerptChars)
	completion := s.llmService.Complete(ctx, "chat", prompt, chatFallback(p, req.Message))

	now := s.now()
	err = s.store.AppendTurns(ctx, userID, chatID,
		store.Turn{Role: store.RoleUser, Content: req.Message, Timestamp: now},
		store.Turn{Role: store.RoleAssistant, Content: completion.Content, Persona: string(p.ID), Timestamp: now},
	)
	if err != nil {
		return nil, apierr.Internal("Failed to record conversation", err)
	}
	s.metrics.ObserveTurns(2)

	s.log.Debug("Lecturer chat answered",
		"user_id", userID,
		"chat_id", chatID,
		"persona", string(p.ID),
		"outcome", string(completion.Outcome),
		"model", completion.Model,
	)

	return &ChatResult{
		Response:       completion.Content,
		Persona:        p,
		Timestamp:      now,
		Fallback:       completion.IsFallback(),
		FallbackReason: completion.Reason,
		Prompt:         prompt,
	}, nil
}

// History returns the retained turns of one conversation, oldest first.
func (s *ChatService) History(ctx context.Context, userID, chatID string) ([]store.Turn, error) {
	turns, err := s.store.ListTurns(ctx, orDefault(userID, AnonymousUserID), orDefault(chatID, DefaultChatID))
	if err != nil {
		return nil, apierr.Internal("Failed to load conversation", err)
	}
	if turns == nil {
		turns = []store.Turn{}
	}
	return turns, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
