package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type conversationKey struct {
	userID string
	chatID string
}

// MemoryStore keeps everything in process maps. The mutex only keeps the maps
// memory-safe; operations are not transactional with respect to each other,
// so two requests updating the same record are last-write-wins.
type MemoryStore struct {
	mu           sync.RWMutex
	retentionCap int

	users         map[string]*User
	userOrder     []string
	conversations map[conversationKey][]Turn
	files         map[string]string
	settings      map[string]Settings
	notifications map[string][]*Notification
	groups        map[string]*Group

	now func() time.Time
}

func NewMemoryStore(retentionCap int) *MemoryStore {
	return &MemoryStore{
		retentionCap:  normalizeCap(retentionCap),
		users:         make(map[string]*User),
		conversations: make(map[conversationKey][]Turn),
		files:         make(map[string]string),
		settings:      make(map[string]Settings),
		notifications: make(map[string][]*Notification),
		groups:        make(map[string]*Group),
		now:           time.Now,
	}
}

func (s *MemoryStore) Close() error { return nil }

// User methods
func (s *MemoryStore) UpsertUser(_ context.Context, u User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
		u.Settings = existing.Settings
	} else {
		u.CreatedAt = now
		s.userOrder = append(s.userOrder, u.ID)
	}
	u.LastLogin = now
	if u.Settings == nil {
		if saved, ok := s.settings[u.ID]; ok {
			u.Settings = saved.Clone()
		} else {
			u.Settings = DefaultSettings()
		}
	}
	if _, ok := s.settings[u.ID]; !ok {
		s.settings[u.ID] = u.Settings.Clone()
	}

	stored := u
	s.users[u.ID] = &stored
	return copyUser(&stored), nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (s *MemoryStore) SearchUsers(_ context.Context, query string, limit int) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	q := strings.ToLower(query)
	var out []User
	for _, id := range s.userOrder {
		u := s.users[id]
		if matchesUser(*u, q) {
			out = append(out, *copyUser(u))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Conversation methods
func (s *MemoryStore) AppendTurns(_ context.Context, userID, chatID string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conversationKey{userID: userID, chatID: chatID}
	conv := append(s.conversations[key], turns...)
	if len(conv) > s.retentionCap {
		trimmed := make([]Turn, s.retentionCap)
		copy(trimmed, conv[len(conv)-s.retentionCap:])
		conv = trimmed
	}
	s.conversations[key] = conv
	return nil
}

func (s *MemoryStore) ListTurns(_ context.Context, userID, chatID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv := s.conversations[conversationKey{userID: userID, chatID: chatID}]
	out := make([]Turn, len(conv))
	copy(out, conv)
	return out, nil
}

// File methods
func (s *MemoryStore) AppendFileText(_ context.Context, userID, block string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[userID] += block
	return nil
}

func (s *MemoryStore) FileText(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files[userID], nil
}

// Settings methods
func (s *MemoryStore) GetSettings(_ context.Context, userID string) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if saved, ok := s.settings[userID]; ok {
		return saved.Clone(), nil
	}
	return DefaultSettings(), nil
}

func (s *MemoryStore) MergeSettings(_ context.Context, userID string, patch Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := s.settings[userID]
	if !ok {
		base = DefaultSettings()
	}
	merged := base.Merge(patch)
	merged["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)
	s.settings[userID] = merged

	if u, ok := s.users[userID]; ok {
		u.Settings = merged.Clone()
	}
	return merged.Clone(), nil
}

// Notification methods
func (s *MemoryStore) AddNotification(_ context.Context, userID string, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[userID] = append(s.notifications[userID], copyNotification(&n))
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.notifications[userID]
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		out = append(out, *copyNotification(n))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemoryStore) GetNotification(_ context.Context, userID, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := s.findNotification(userID, id); n != nil {
		return copyNotification(n), nil
	}
	return nil, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, userID, id string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.findNotification(userID, id)
	if n == nil {
		return nil, nil
	}
	n.Read = true
	return copyNotification(n), nil
}

func (s *MemoryStore) findNotification(userID, id string) *Notification {
	for _, n := range s.notifications[userID] {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Group methods
func (s *MemoryStore) CreateGroup(_ context.Context, g Group) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	stored := copyGroup(&g)
	s.groups[g.ID] = stored
	return copyGroup(stored), nil
}

func (s *MemoryStore) GetGroup(_ context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	return copyGroup(g), nil
}

func (s *MemoryStore) AddGroupMember(_ context.Context, groupID, userID string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	if !g.HasMember(userID) {
		g.Members = append(g.Members, userID)
	}
	return copyGroup(g), nil
}

func copyUser(u *User) *User {
	c := *u
	c.Settings = u.Settings.Clone()
	return &c
}

func copyNotification(n *Notification) *Notification {
	c := *n
	if n.Data != nil {
		c.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			c.Data[k] = v
		}
	}
	return &c
}

func copyGroup(g *Group) *Group {
	c := *g
	c.Members = append([]string(nil), g.Members...)
	return &c
}
