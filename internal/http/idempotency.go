package http

import (
	"bytes"
	"net/http"

	"hisaab/internal/idempotency"
	"hisaab/internal/log"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
)

// captureWriter tees the response so it can be stored.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// idempotent replays the stored response for a repeated Idempotency-Key on
// POST. Keys are scoped to the caller and the request path. Server errors
// are not stored so the client can retry them.
func (s *Server) idempotent(next http.Handler) http.Handler {
	if s.idem == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := r.Header.Get(HeaderIdempotencyKey)
		if r.Method != http.MethodPost || clientKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(clientKey) > maxIdempotencyKeyLen {
			writeError(w, http.StatusBadRequest, "Idempotency-Key too long")
			return
		}

		logger := log.FromContext(r.Context())
		key := idempotency.Key(owner(r), r.URL.Path, clientKey)
		if resp, ok, err := s.idem.Lookup(key); err != nil {
			logger.WarnContext(r.Context(), "Idempotency lookup failed", log.FieldError, err)
		} else if ok {
			replay(w, resp)
			return
		}

		cw := &captureWriter{ResponseWriter: w}
		next.ServeHTTP(cw, r)
		if cw.status == 0 || cw.status >= http.StatusInternalServerError {
			return
		}
		_, _, err := s.idem.Save(key, idempotency.Response{
			Status:      cw.status,
			ContentType: cw.Header().Get("Content-Type"),
			Body:        cw.body.Bytes(),
		})
		if err != nil {
			logger.WarnContext(r.Context(), "Idempotency save failed", log.FieldError, err)
		}
	})
}

func replay(w http.ResponseWriter, resp idempotency.Response) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set(headerReplayed, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
