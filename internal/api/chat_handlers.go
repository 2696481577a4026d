package api

import (
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/Meetwin/AI-Lecturer/internal/core"
	"github.com/Meetwin/AI-Lecturer/internal/persona"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

type ChatRequest struct {
	Message      string `json:"message"`
	UserID       string `json:"userId"`
	ChatID       string `json:"chatId"`
	Persona      string `json:"persona"`
	LecturerType string `json:"lecturerType"`
}

type ChatResponse struct {
	Success        bool            `json:"success"`
	Response       string          `json:"response"`
	Persona        persona.Persona `json:"persona"`
	Lecturer       persona.Persona `json:"lecturer"`
	Timestamp      string          `json:"timestamp"`
	Mode           string          `json:"mode,omitempty"`
	FallbackReason string          `json:"fallbackReason,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	personaKey := req.Persona
	if personaKey == "" {
		personaKey = req.LecturerType
	}

	res, err := h.chatService.Chat(r.Context(), core.ChatRequest{
		UserID:  requestUser(r, req.UserID),
		ChatID:  req.ChatID,
		Persona: personaKey,
		Message: req.Message,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := ChatResponse{
		Success:   true,
		Response:  res.Response,
		Persona:   res.Persona,
		Lecturer:  res.Persona,
		Timestamp: formatTime(res.Timestamp),
	}
	if res.Fallback {
		resp.Mode = "fallback"
		resp.FallbackReason = string(res.FallbackReason)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	userID := requestUser(r, r.URL.Query().Get("userId"))

	turns, err := h.chatService.History(r.Context(), userID, chatID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		Success bool         `json:"success"`
		ChatID  string       `json:"chatId"`
		Turns   []store.Turn `json:"turns"`
	}{true, chatID, turns})
}

func (h *APIHandler) PersonasHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "personas": persona.All()})
}

// LecturerTypesHandler serves the persona list under the legacy "lecturers" key.
func (h *APIHandler) LecturerTypesHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "lecturers": persona.All()})
}

type StoryRequest struct {
	Concept        string `json:"concept"`
	Mode           string `json:"mode"`
	UserID         string `json:"userId"`
	GenerateImages *bool  `json:"generateImages"`
	GenerateAudio  *bool  `json:"generateAudio"`
}

type StoryResponse struct {
	Success        bool              `json:"success"`
	Story          string            `json:"story"`
	Concept        string            `json:"concept"`
	Mode           string            `json:"mode"`
	Images         []core.StoryImage `json:"images"`
	AudioURL       *string           `json:"audioUrl"`
	Timestamp      string            `json:"timestamp"`
	FallbackReason string            `json:"fallbackReason,omitempty"`
}

func (h *APIHandler) StoryHandler(w http.ResponseWriter, r *http.Request) {
	var req StoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.storyService.Tell(r.Context(), core.StoryRequest{
		Concept:        req.Concept,
		Mode:           req.Mode,
		UserID:         requestUser(r, req.UserID),
		GenerateImages: boolOr(req.GenerateImages, true),
		GenerateAudio:  boolOr(req.GenerateAudio, true),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StoryResponse{
		Success:        true,
		Story:          res.Story,
		Concept:        res.Concept,
		Mode:           res.Mode,
		Images:         res.Images,
		AudioURL:       res.AudioURL,
		Timestamp:      formatTime(res.Timestamp),
		FallbackReason: string(res.FallbackReason),
	})
}

const placeholderSVG = `<svg width="400" height="300" xmlns="http://www.w3.org/2000/svg">
  <rect width="400" height="300" fill="#3B82F6"/>
  <text x="200" y="150" text-anchor="middle" fill="white" font-size="16" font-family="Arial">
    Generated Image: %s
  </text>
</svg>
`

func (h *APIHandler) PlaceholderImageHandler(w http.ResponseWriter, r *http.Request) {
	label := unescapeParam(chi.URLParam(r, "key"))
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, placeholderSVG, html.EscapeString(label))
}

func (h *APIHandler) PlaceholderAudioHandler(w http.ResponseWriter, r *http.Request) {
	concept := unescapeParam(chi.URLParam(r, "concept"))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Audio for %s would be generated here", concept),
		"placeholder": true,
	})
}

func unescapeParam(v string) string {
	if s, err := url.PathUnescape(v); err == nil {
		return s
	}
	return v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
