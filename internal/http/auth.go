package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"hisaab/internal/core"
	"hisaab/internal/log"
	"hisaab/internal/session"
)

var errMissingToken = errors.New("authentication required")

// requireSession verifies the bearer token and stores the session in the
// request context. The SSE endpoint may pass the token as ?token= because
// EventSource cannot set headers.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, errMissingToken.Error())
			return
		}
		sess, err := s.sessions.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, session.ErrInvalidToken.Error())
			return
		}
		ctx := session.NewContext(r.Context(), sess)
		ctx = log.WithContext(ctx, log.FromContext(ctx).With(log.FieldUserID, sess.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if r.URL.Path == "/api/events" {
		return r.URL.Query().Get("token")
	}
	return ""
}

// currentSession is only valid behind requireSession.
func currentSession(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

func owner(r *http.Request) string { return currentSession(r).UserID }

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, http.StatusCreated, s.auth.Signup)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, http.StatusOK, s.auth.Login)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, status int,
	fn func(ctx context.Context, email, password string) (core.User, *session.Session, error)) {
	body, err := ParseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	email, password := body.Get("email"), body.Get("password")
	if email == "" || password == "" {
		fail(w, r, badRequest(errors.New("email and password are required")))
		return
	}
	u, sess, err := fn(r.Context(), email, password)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, status, authJSON{User: toUser(u), Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Me(r.Context(), owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUser(u)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, err := s.auth.Refresh(r.Context(), currentSession(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	u, err := s.auth.Me(r.Context(), sess.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authJSON{User: toUser(u), Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), currentSession(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
