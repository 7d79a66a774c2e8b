// Package trace assigns request IDs and logs each request's start and end.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"hisaab/internal/log"
)

const HeaderRequestID = "X-Request-ID"

type ctxKey struct{}

// incoming IDs are echoed only when they are short and printable
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type Middleware struct {
	logger    *log.Logger
	extractIP func(*http.Request) string
}

func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Middleware{logger: logger.WithComponent(log.ComponentHTTP), extractIP: extractIP}
}

// Middleware tags the request with an ID, stores a logger carrying that ID
// in the context and logs the outcome at a level matching the status.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		base := m.logger
		if l, ok := r.Context().Value(log.LoggerContextKey).(*log.Logger); ok {
			base = l
		}
		reqLogger := base.With(log.NewFields().WithRequestID(requestID).ToSlice()...)
		ctx := context.WithValue(r.Context(), ctxKey{}, requestID)
		ctx = log.WithContext(ctx, reqLogger)
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		query := RedactQuery(r.URL.RawQuery)
		reqLogger.DebugContext(ctx, "HTTP request started",
			log.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, query, r.UserAgent(), r.Referer()).
				WithClientIP(clientIP).ToSlice()...)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, query, "", "").
			WithHTTPResponse(status, duration.Milliseconds(), status < 400).
			WithClientIP(clientIP)
		fields[log.FieldDurationHuman] = duration.String()
		reqLogger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
	})
}

// secretParams never reach the log. The event stream authenticates with
// ?token= because EventSource cannot send headers.
var secretParams = []string{"token", "access_token"}

const redacted = "REDACTED"

// RedactQuery masks credential parameters in a raw query string. A query
// that does not parse is dropped entirely.
func RedactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}
	for _, k := range secretParams {
		if _, ok := values[k]; ok {
			values[k] = []string{redacted}
		}
	}
	return values.Encode()
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// RequestID returns the ID assigned by Middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
