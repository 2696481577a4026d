package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

type groupStore interface {
	store.UserStore
	store.GroupStore
	store.NotificationStore
}

// GroupService owns study groups and the notifications used to invite
// people into them.
type GroupService struct {
	store groupStore
	log   *logger.Logger
	now   func() time.Time
	newID func() string
}

func NewGroupService(s groupStore, log *logger.Logger) *GroupService {
	if log == nil {
		log = logger.Nop()
	}
	return &GroupService{
		store: s,
		log:   log.With("service", "GroupService"),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *GroupService) CreateGroup(ctx context.Context, name, ownerID string) (*store.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(ownerID) == "" {
		return nil, apierr.Validation("Group name and owner ID are required")
	}
	owner, err := s.store.GetUser(ctx, ownerID)
	if err != nil {
		return nil, apierr.Internal("Failed to load group owner", err)
	}
	if owner == nil {
		return nil, apierr.NotFound("User not found")
	}

	group, err := s.store.CreateGroup(ctx, store.Group{
		ID:        s.newID(),
		Name:      name,
		OwnerID:   owner.ID,
		Members:   []string{owner.ID},
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, apierr.Internal("Failed to create group", err)
	}
	s.log.Info("Group created", "group_id", group.ID, "owner_id", owner.ID)
	return group, nil
}

func (s *GroupService) Group(ctx context.Context, groupID string) (*store.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, apierr.Internal("Failed to load group", err)
	}
	if group == nil {
		return nil, apierr.NotFound("Group not found")
	}
	return group, nil
}

// Invite leaves a group_invite notification for invitedUserID. The inviter
// does not need to exist; unknown inviters show up as "Someone".
func (s *GroupService) Invite(ctx context.Context, groupID, invitedUserID, inviterUserID string) (*store.Notification, error) {
	if strings.TrimSpace(groupID) == "" || strings.TrimSpace(invitedUserID) == "" {
		return nil, apierr.Validation("Group ID and invited user ID are required")
	}
	group, err := s.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	invitee, err := s.store.GetUser(ctx, invitedUserID)
	if err != nil {
		return nil, apierr.Internal("Failed to load invited user", err)
	}
	if invitee == nil {
		return nil, apierr.NotFound("User not found")
	}

	inviterName := "Someone"
	if inviterUserID != "" {
		inviter, err := s.store.GetUser(ctx, inviterUserID)
		if err != nil {
			return nil, apierr.Internal("Failed to load inviter", err)
		}
		if inviter != nil && inviter.Name != "" {
			inviterName = inviter.Name
		}
	}

	n := store.Notification{
		ID:      s.newID(),
		Type:    store.NotificationGroupInvite,
		Title:   "Group Invitation",
		Message: fmt.Sprintf("%s invited you to join \"%s\"", inviterName, group.Name),
		Data: map[string]any{
			"groupId":       group.ID,
			"inviterUserId": inviterUserID,
			"groupName":     group.Name,
		},
		Timestamp: s.now(),
	}
	if err := s.store.AddNotification(ctx, invitee.ID, n); err != nil {
		return nil, apierr.Internal("Failed to send group invite", err)
	}
	s.log.Info("Group invite sent", "group_id", group.ID, "invited_user_id", invitee.ID)
	return &n, nil
}

// AcceptInvite adds userID to the group named by the invite and marks the
// invite read. Accepting the same invite twice leaves membership unchanged.
func (s *GroupService) AcceptInvite(ctx context.Context, notificationID, userID string) (*store.Group, error) {
	if strings.TrimSpace(notificationID) == "" || strings.TrimSpace(userID) == "" {
		return nil, apierr.Validation("Notification ID and user ID are required")
	}
	n, err := s.store.GetNotification(ctx, userID, notificationID)
	if err != nil {
		return nil, apierr.Internal("Failed to load invitation", err)
	}
	if n == nil || n.Type != store.NotificationGroupInvite {
		return nil, apierr.NotFound("Invitation not found")
	}

	groupID, _ := n.Data["groupId"].(string)
	group, err := s.store.AddGroupMember(ctx, groupID, userID)
	if err != nil {
		return nil, apierr.Internal("Failed to join group", err)
	}
	if group == nil {
		return nil, apierr.NotFound("Group not found")
	}
	if _, err := s.store.MarkNotificationRead(ctx, userID, notificationID); err != nil {
		return nil, apierr.Internal("Failed to update invitation", err)
	}
	return group, nil
}

func (s *GroupService) Notifications(ctx context.Context, userID string) ([]store.Notification, error) {
	list, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, apierr.Internal("Failed to get notifications", err)
	}
	if list == nil {
		list = []store.Notification{}
	}
	return list, nil
}

// MarkRead returns nil without error when the notification does not exist.
func (s *GroupService) MarkRead(ctx context.Context, userID, notificationID string) (*store.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, userID, notificationID)
	if err != nil {
		return nil, apierr.Internal("Failed to mark notification as read", err)
	}
	return n, nil
}
