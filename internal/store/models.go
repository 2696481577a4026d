package store

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	NotificationGroupInvite = "group_invite"
)

type User struct {
	ID        string    `json:"id"` // email
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"createdAt"`
	LastLogin time.Time `json:"lastLogin"`
	Settings  Settings  `json:"settings"`
}

// UserSummary is the projection returned by user search.
type UserSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Picture: u.Picture}
}

type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Persona   string    `json:"lecturer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
}

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Settings is a free-form per-user preference record.
type Settings map[string]any

// DefaultSettings returns a fresh copy of the defaults every user starts with.
func DefaultSettings() Settings {
	return Settings{
		"theme":         "light",
		"fontSize":      "medium",
		"customColor":   "#3B82F6",
		"notifications": true,
		"language":      "en",
		"autoRead":      false,
		"voiceSpeed":    "normal",
	}
}

// Merge shallow-merges patch over a copy of s.
func (s Settings) Merge(patch Settings) Settings {
	out := make(Settings, len(s)+len(patch))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	return s.Merge(nil)
}
