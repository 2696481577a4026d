package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
)

const storyFallbackMode = "fallback"

type StoryService struct {
	llmService *LLMService
	log        *logger.Logger
	now        func() time.Time
}

func NewStoryService(llm *LLMService, log *logger.Logger) *StoryService {
	if log == nil {
		log = logger.Nop()
	}
	return &StoryService{llmService: llm, log: log.With("service", "StoryService"), now: time.Now}
}

type StoryRequest struct {
	Concept        string
	Mode           string
	UserID         string
	GenerateImages bool
	GenerateAudio  bool
}

type StoryImage struct {
	ID        string `json:"id"`
	Prompt    string `json:"prompt"`
	URL       string `json:"url"`
	Generated bool   `json:"generated"`
}

type StoryResult struct {
	Story          string
	Concept        string
	Mode           string
	Images         []StoryImage
	AudioURL       *string
	Timestamp      time.Time
	Fallback       bool
	FallbackReason FallbackReason
}

// Tell explains concept in the requested narrative mode. Images and audio are
// placeholder links served by this backend.
func (s *StoryService) Tell(ctx context.Context, req StoryRequest) (*StoryResult, error) {
	concept := strings.TrimSpace(req.Concept)
	if concept == "" {
		return nil, apierr.Validation("Concept is required")
	}
	mode := orDefault(req.Mode, StoryModeStory)

	completion := s.llmService.Complete(ctx, "story", BuildStoryPrompt(concept, mode), storyFallback(concept))
	now := s.now()

	result := &StoryResult{
		Story:          completion.Content,
		Concept:        concept,
		Mode:           mode,
		Images:         []StoryImage{},
		Timestamp:      now,
		Fallback:       completion.IsFallback(),
		FallbackReason: completion.Reason,
	}
	if completion.IsFallback() {
		result.Mode = storyFallbackMode
		return result, nil
	}

	if req.GenerateImages {
		result.Images = placeholderImages(concept, now)
	}
	if req.GenerateAudio {
		audio := "/api/placeholder-audio/" + url.PathEscape(concept)
		result.AudioURL = &audio
	}
	s.log.Debug("Story generated", "user_id", req.UserID, "mode", mode, "images", len(result.Images))
	return result, nil
}

func placeholderImages(concept string, now time.Time) []StoryImage {
	prompts := []string{
		fmt.Sprintf("Illustration for educational story about %s, colorful and engaging, suitable for learning", concept),
		fmt.Sprintf("Visual representation of %s, educational illustration style, clear and informative", concept),
		fmt.Sprintf("Scene from story about %s, cartoon style, educational and friendly", concept),
	}
	images := make([]StoryImage, len(prompts))
	for i, prompt := range prompts {
		images[i] = StoryImage{
			ID:        fmt.Sprintf("img_%d_%d", now.UnixMilli(), i),
			Prompt:    prompt,
			URL:       fmt.Sprintf("/api/placeholder-image/%s_%d", url.PathEscape(concept), i),
			Generated: true,
		}
	}
	return images
}
