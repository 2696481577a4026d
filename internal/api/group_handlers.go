package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type CreateGroupRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

func (h *APIHandler) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	group, err := h.groupService.CreateGroup(r.Context(), req.Name, requestUser(r, req.OwnerID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "group": group})
}

func (h *APIHandler) GetGroupHandler(w http.ResponseWriter, r *http.Request) {
	group, err := h.groupService.Group(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "group": group})
}

type InviteRequest struct {
	GroupID       string `json:"groupId"`
	InvitedUserID string `json:"invitedUserId"`
	InviterUserID string `json:"inviterUserId"`
}

func (h *APIHandler) InviteHandler(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	n, err := h.groupService.Invite(r.Context(), req.GroupID, req.InvitedUserID, requestUser(r, req.InviterUserID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "notification": n})
}

type AcceptInviteRequest struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
}

func (h *APIHandler) AcceptInviteHandler(w http.ResponseWriter, r *http.Request) {
	var req AcceptInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	group, err := h.groupService.AcceptInvite(r.Context(), req.NotificationID, requestUser(r, req.UserID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "group": group})
}

func (h *APIHandler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.groupService.Notifications(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "notifications": list})
}

type MarkReadRequest struct {
	UserID string `json:"userId"`
}

// MarkReadHandler answers with "notification": null when nothing matched.
func (h *APIHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	n, err := h.groupService.MarkRead(r.Context(), requestUser(r, req.UserID), chi.URLParam(r, "notificationId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "notification": n})
}
