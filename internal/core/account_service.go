package core

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/auth"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

const minSearchQueryLen = 2

type accountStore interface {
	store.UserStore
	store.SettingsStore
}

type AccountService struct {
	store    accountStore
	sessions *auth.Sessions
	log      *logger.Logger
}

func NewAccountService(s accountStore, sessions *auth.Sessions, log *logger.Logger) *AccountService {
	if log == nil {
		log = logger.Nop()
	}
	return &AccountService{store: s, sessions: sessions, log: log.With("service", "AccountService")}
}

type UserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type LoginResult struct {
	User  *store.User
	Token string
}

// Login upserts the user described by info. The identity token the client
// obtained upstream is accepted as-is.
func (s *AccountService) Login(ctx context.Context, info UserInfo) (*LoginResult, error) {
	email := strings.TrimSpace(info.Email)
	if email == "" {
		return nil, apierr.Validation("User email is required")
	}

	user, err := s.store.UpsertUser(ctx, store.User{
		ID:      email,
		Email:   email,
		Name:    info.Name,
		Picture: info.Picture,
	})
	if err != nil {
		return nil, apierr.Internal("Failed to save user", err)
	}

	token, err := s.sessions.GenerateJWT(user.ID)
	if err != nil {
		return nil, apierr.Internal("Failed to issue session token", err)
	}
	s.log.Info("User logged in", "user_id", user.ID)
	return &LoginResult{User: user, Token: token}, nil
}

// SessionUser returns the user id carried by a session token.
func (s *AccountService) SessionUser(token string) (string, error) {
	userID, err := s.sessions.ValidateJWT(token)
	if err != nil {
		return "", apierr.Unauthorized("Invalid session token")
	}
	return userID, nil
}

// SearchUsers matches query against names and emails. Queries shorter than
// two characters match nobody.
func (s *AccountService) SearchUsers(ctx context.Context, query string) ([]store.UserSummary, error) {
	query = strings.TrimSpace(query)
	summaries := []store.UserSummary{}
	if utf8.RuneCountInString(query) < minSearchQueryLen {
		return summaries, nil
	}
	users, err := s.store.SearchUsers(ctx, query, store.MaxSearchResults)
	if err != nil {
		return nil, apierr.Internal("Failed to search users", err)
	}
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}

func (s *AccountService) Settings(ctx context.Context, userID string) (store.Settings, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apierr.Validation("User ID is required")
	}
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, apierr.Internal("Failed to load settings", err)
	}
	return settings, nil
}

func (s *AccountService) UpdateSettings(ctx context.Context, userID string, patch store.Settings) (store.Settings, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apierr.Validation("User ID is required")
	}
	settings, err := s.store.MergeSettings(ctx, userID, patch)
	if err != nil {
		return nil, apierr.Internal("Failed to update settings", err)
	}
	return settings, nil
}
