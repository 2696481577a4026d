package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
)

func TestStoryWithImagesAndAudio(t *testing.T) {
	p := &fakeProvider{resp: replyWith("gpt-4o", "Once upon a time, a leaf...")}
	svc := NewStoryService(NewLLMService(p, nil, nil, nil), nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	res, err := svc.Tell(context.Background(), StoryRequest{Concept: "photo synthesis", GenerateImages: true, GenerateAudio: true})
	require.NoError(t, err)

	assert.False(t, res.Fallback)
	assert.Equal(t, "Once upon a time, a leaf...", res.Story)
	assert.Equal(t, StoryModeStory, res.Mode)
	require.Len(t, res.Images, 3)
	assert.Equal(t, "img_1700000000000_0", res.Images[0].ID)
	assert.Equal(t, "/api/placeholder-image/photo%20synthesis_2", res.Images[2].URL)
	assert.True(t, res.Images[1].Generated)
	require.NotNil(t, res.AudioURL)
	assert.Equal(t, "/api/placeholder-audio/photo%20synthesis", *res.AudioURL)

	req := p.lastRequest(t)
	assert.Empty(t, req.System)
	assert.Equal(t, 1200, req.MaxTokens)
}

func TestStoryWithoutExtras(t *testing.T) {
	svc := NewStoryService(NewLLMService(&fakeProvider{resp: replyWith("m", "A tale")}, nil, nil, nil), nil)

	res, err := svc.Tell(context.Background(), StoryRequest{Concept: "atoms", Mode: StoryModeDialogue})
	require.NoError(t, err)
	assert.Equal(t, StoryModeDialogue, res.Mode)
	assert.Empty(t, res.Images)
	assert.Nil(t, res.AudioURL)
}

func TestStoryFallback(t *testing.T) {
	svc := NewStoryService(NewLLMService(&fakeProvider{err: errors.New("boom")}, nil, nil, nil), nil)

	res, err := svc.Tell(context.Background(), StoryRequest{Concept: "atoms", GenerateImages: true, GenerateAudio: true})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "fallback", res.Mode)
	assert.Contains(t, res.Story, "Here's a simple explanation of atoms")
	assert.Empty(t, res.Images)
	assert.Nil(t, res.AudioURL)
}

func TestStoryRequiresConcept(t *testing.T) {
	svc := NewStoryService(NewLLMService(nil, nil, nil, nil), nil)

	_, err := svc.Tell(context.Background(), StoryRequest{Concept: "  "})
	require.Error(t, err)
	assert.Equal(t, 400, apierr.From(err).Status)
}
