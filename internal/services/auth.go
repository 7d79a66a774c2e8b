package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"hisaab/internal/core"
	"hisaab/internal/log"
	"hisaab/internal/session"
	"hisaab/internal/storage"
)

// AuthService registers users and exchanges credentials for sessions.
type AuthService struct {
	users    storage.UserStore
	sessions *session.Manager
	deps
}

func NewAuthService(users storage.UserStore, sessions *session.Manager, opts ...Option) *AuthService {
	return &AuthService{users: users, sessions: sessions, deps: newDeps(log.ComponentAuth, opts)}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (s *AuthService) Signup(ctx context.Context, email, password string) (core.User, *session.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return core.User{}, nil, invalid(err)
	}
	hash, err := session.HashPassword(password)
	if err != nil {
		if errors.Is(err, session.ErrWeakPassword) {
			return core.User{}, nil, invalid(err)
		}
		return core.User{}, nil, err
	}

	u := core.User{ID: s.newID(), Email: email, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return core.User{}, nil, ErrEmailTaken
		}
		return core.User{}, nil, fmt.Errorf("create user: %w", err)
	}

	sess, err := s.sessions.Initialize(ctx, u)
	if err != nil {
		return core.User{}, nil, err
	}
	s.logger.InfoContext(ctx, "User signed up", log.FieldUserID, u.ID)
	return u, sess, nil
}

// Login answers ErrInvalidCredentials for unknown emails and wrong passwords alike.
func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, *session.Session, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, nil, ErrInvalidCredentials
		}
		return core.User{}, nil, fmt.Errorf("find user: %w", err)
	}
	if !session.CheckPassword(u.PasswordHash, password) {
		s.logger.WarnContext(ctx, "Failed login", log.FieldUserID, u.ID)
		return core.User{}, nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Initialize(ctx, u)
	if err != nil {
		return core.User{}, nil, err
	}
	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, u.ID)
	return u, sess, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (core.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return core.User{}, fmt.Errorf("user %s: %w", userID, err)
	}
	return u, nil
}

func (s *AuthService) Refresh(ctx context.Context, sess *session.Session) (*session.Session, error) {
	return s.sessions.Refresh(ctx, sess)
}

func (s *AuthService) Logout(ctx context.Context, sess *session.Session) error {
	return s.sessions.Teardown(ctx, sess)
}
