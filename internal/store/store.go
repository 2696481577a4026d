package store

import (
	"context"
	"fmt"
	"strings"
)

const (
	DefaultRetentionCap = 20
	MaxSearchResults    = 10
)

// UserStore, ConversationStore and the rest split the persistence surface
// by concern so services only depend on what they touch.
type UserStore interface {
	// UpsertUser creates u or refreshes profile fields and LastLogin,
	// keeping CreatedAt and Settings of an existing record.
	UpsertUser(ctx context.Context, u User) (*User, error)
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, id string) (*User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]User, error)
}

type ConversationStore interface {
	// AppendTurns appends in order and trims the conversation to the retention cap.
	AppendTurns(ctx context.Context, userID, chatID string, turns ...Turn) error
	ListTurns(ctx context.Context, userID, chatID string) ([]Turn, error)
}

type FileStore interface {
	AppendFileText(ctx context.Context, userID, block string) error
	FileText(ctx context.Context, userID string) (string, error)
}

type SettingsStore interface {
	// GetSettings returns the defaults when the user never saved settings.
	GetSettings(ctx context.Context, userID string) (Settings, error)
	MergeSettings(ctx context.Context, userID string, patch Settings) (Settings, error)
}

type NotificationStore interface {
	AddNotification(ctx context.Context, userID string, n Notification) error
	// ListNotifications returns newest first.
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
	GetNotification(ctx context.Context, userID, id string) (*Notification, error)
	// MarkNotificationRead returns nil, nil when the notification does not exist.
	MarkNotificationRead(ctx context.Context, userID, id string) (*Notification, error)
}

type GroupStore interface {
	CreateGroup(ctx context.Context, g Group) (*Group, error)
	GetGroup(ctx context.Context, id string) (*Group, error)
	// AddGroupMember is idempotent; it returns nil, nil when the group does not exist.
	AddGroupMember(ctx context.Context, groupID, userID string) (*Group, error)
}

type Store interface {
	UserStore
	ConversationStore
	FileStore
	SettingsStore
	NotificationStore
	GroupStore
	Close() error
}

// Open returns the backend named by driver.
func Open(driver, dsn string, retentionCap int) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "memory":
		return NewMemoryStore(retentionCap), nil
	case "sqlite", "sqlite3":
		return NewSQLiteStore(dsn, retentionCap)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func normalizeCap(retentionCap int) int {
	if retentionCap <= 0 {
		return DefaultRetentionCap
	}
	return retentionCap
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxSearchResults {
		return MaxSearchResults
	}
	return limit
}

func matchesUser(u User, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(u.Name), lowerQuery) ||
		strings.Contains(strings.ToLower(u.Email), lowerQuery)
}
