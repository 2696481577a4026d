package core

import (
	"fmt"
	"strings"

	"github.com/Meetwin/AI-Lecturer/internal/persona"
)

const (
	DefaultExcerptChars = 1500

	chatMaxTokens    = 1000
	storyMaxTokens   = 1200
	storyTemperature = 0.8
)

// Story modes. Any other mode gets the generic template.
const (
	StoryModeStory       = "story"
	StoryModeMetaphor    = "metaphor"
	StoryModeDialogue    = "dialogue"
	StoryModeInteractive = "interactive"
)

// Prompt is everything a provider call needs besides the model list.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	Excerpt     string
}

// Excerpt returns the first limit runes of buffer.
func Excerpt(buffer string, limit int) string {
	if limit <= 0 {
		limit = DefaultExcerptChars
	}
	runes := []rune(buffer)
	if len(runes) <= limit {
		return buffer
	}
	return string(runes[:limit])
}

// BuildLecturerPrompt renders the system prompt for p with the excerpt of the
// student's file buffer. The message is passed through as the user part.
func BuildLecturerPrompt(p persona.Persona, message, fileBuffer string, excerptChars int) Prompt {
	var excerpt, fileContext string
	if fileBuffer != "" {
		excerpt = Excerpt(fileBuffer, excerptChars)
		fileContext = "\n\nStudent's uploaded materials: " + excerpt + "..."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, an AI lecturer with this personality: %s\n\n", p.Name, p.Personality)
	fmt.Fprintf(&sb, "Teaching Style: %s\n", p.TeachingStyle)
	fmt.Fprintf(&sb, "Response Style: %s\n", p.ResponseStyle)
	fmt.Fprintf(&sb, "Tone: %s\n\n", p.Tone)
	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	fmt.Fprintf(&sb, "- Always respond exactly as %s would\n", p.Name)
	sb.WriteString("- Match the specified response style and tone perfectly\n")
	fmt.Fprintf(&sb, "- %s\n\n", p.Directive())
	fmt.Fprintf(&sb, "Context from student's files: %s", fileContext)

	return Prompt{
		System:      sb.String(),
		User:        message,
		Temperature: p.Temperature(),
		MaxTokens:   chatMaxTokens,
		Excerpt:     excerpt,
	}
}

// BuildStoryPrompt has no system part; the template carries the instructions.
func BuildStoryPrompt(concept, mode string) Prompt {
	var user string
	switch mode {
	case StoryModeStory:
		user = fmt.Sprintf("Create an engaging, educational story that explains \"%s\". Make it visual and descriptive so it could be illustrated. Include specific scenes that could be turned into images.", concept)
	case StoryModeMetaphor:
		user = fmt.Sprintf("Explain \"%s\" using a detailed visual metaphor. Describe the metaphor in a way that could be illustrated with images.", concept)
	case StoryModeDialogue:
		user = fmt.Sprintf("Create a dialogue between characters discussing \"%s\". Include scene descriptions that could be illustrated.", concept)
	case StoryModeInteractive:
		user = fmt.Sprintf("Create an interactive explanation of \"%s\" with step-by-step visual elements that could be illustrated.", concept)
	default:
		user = fmt.Sprintf("Explain \"%s\" in an engaging, visual way with descriptive scenes.", concept)
	}
	return Prompt{User: user, Temperature: storyTemperature, MaxTokens: storyMaxTokens}
}

func chatFallback(p persona.Persona, message string) string {
	return fmt.Sprintf("%s You asked about: \"%s\". (Note: Using fallback mode)", p.FallbackLine(), message)
}

func storyFallback(concept string) string {
	return fmt.Sprintf("Here's a simple explanation of %s: This is an important concept that involves multiple interconnected elements. "+
		"To better understand it, think of it as a system where different components work together to achieve a specific outcome. "+
		"(Fallback mode - please check API credits for enhanced storytelling)", concept)
}
