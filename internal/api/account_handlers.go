package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Meetwin/AI-Lecturer/internal/core"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

// LoginRequest accepts the upstream identity token under either name; it is
// not verified.
type LoginRequest struct {
	GoogleToken string        `json:"googleToken"`
	Token       string        `json:"token"`
	UserInfo    core.UserInfo `json:"userInfo"`
}

type LoginResponse struct {
	Success bool        `json:"success"`
	User    *store.User `json:"user"`
	Token   string      `json:"token"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.accountService.Login(r.Context(), req.UserInfo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LoginResponse{Success: true, User: res.User, Token: res.Token})
}

func (h *APIHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.accountService.SearchUsers(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
}

func (h *APIHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.accountService.Settings(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

func (h *APIHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var patch store.Settings
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	settings, err := h.accountService.UpdateSettings(r.Context(), chi.URLParam(r, "userId"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
