// Package session issues and checks the bearer tokens that authenticate API
// requests. A Session is created at signup or login, verified on every
// request, refreshed on demand and torn down at logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"hisaab/internal/core"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("session secret is required")
)

// Session is an authenticated user's proof of login.
type Session struct {
	ID        string // token id, revocable
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// RevocationStore persists revoked token ids so logouts outlive the process.
type RevocationStore interface {
	Revoke(id string, until time.Time) error
	Revoked(id string) (bool, error)
}

// Manager signs tokens with a shared secret and remembers revoked ones until
// they would have expired anyway. Without a RevocationStore the list is lost
// on restart.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	store  RevocationStore

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithRevocations persists revocations in store as well as in memory.
func (m *Manager) WithRevocations(store RevocationStore) *Manager {
	m.store = store
	return m
}

// Initialize starts a session for u.
func (m *Manager) Initialize(_ context.Context, u core.User) (*Session, error) {
	if u.ID == "" {
		return nil, core.ErrMissingOwner
	}
	return m.issue(u.ID, u.Email)
}

func (m *Manager) issue(userID, email string) (*Session, error) {
	now := m.now().Truncate(time.Second)
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		ExpiresAt: now.Add(m.ttl),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	})
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	s.Token = signed
	return s, nil
}

// Verify parses token and returns its session. Expired, revoked, malformed
// or foreign tokens all yield ErrInvalidToken.
func (m *Manager) Verify(_ context.Context, token string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" || c.ID == "" {
		return nil, ErrInvalidToken
	}
	revoked, err := m.isRevoked(c.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return &Session{
		ID:        c.ID,
		UserID:    c.Subject,
		Email:     c.Email,
		Token:     token,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Refresh issues a new token for the same user and revokes the old one.
func (m *Manager) Refresh(ctx context.Context, s *Session) (*Session, error) {
	if s == nil {
		return nil, ErrInvalidToken
	}
	revoked, err := m.isRevoked(s.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	next, err := m.issue(s.UserID, s.Email)
	if err != nil {
		return nil, err
	}
	if err := m.revoke(s.ID, s.ExpiresAt); err != nil {
		return nil, err
	}
	return next, nil
}

// Teardown revokes the session.
func (m *Manager) Teardown(_ context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	return m.revoke(s.ID, s.ExpiresAt)
}

func (m *Manager) revoke(id string, until time.Time) error {
	m.mu.Lock()
	m.revoked[id] = until
	m.pruneLocked()
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.Revoke(id, until); err != nil {
		return fmt.Errorf("persist revocation: %w", err)
	}
	return nil
}

func (m *Manager) isRevoked(id string) (bool, error) {
	m.mu.Lock()
	_, ok := m.revoked[id]
	m.mu.Unlock()
	if ok || m.store == nil {
		return ok, nil
	}
	revoked, err := m.store.Revoked(id)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

// pruneLocked forgets revocations whose tokens have expired on their own.
func (m *Manager) pruneLocked() {
	now := m.now()
	for id, until := range m.revoked {
		if now.After(until) {
			delete(m.revoked, id)
		}
	}
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
