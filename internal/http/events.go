package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hisaab/internal/log"
)

const sseKeepAlive = 25 * time.Second

// handleEvents streams the caller's change notifications as server-sent
// events. A comment line is sent periodically so proxies keep the
// connection open.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || s.subscriber == nil {
		writeError(w, http.StatusNotImplemented, "streaming not supported")
		return
	}

	sub := s.subscriber.Subscribe(owner(r))
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	logger := log.FromContext(r.Context())

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case c, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(c)
			if err != nil {
				logger.WarnContext(r.Context(), "Failed to encode change", log.FieldError, err)
				continue
			}
			fmt.Fprintf(w, "event: %s.%s\ndata: %s\n\n", c.Entity, c.Op, data)
			flusher.Flush()
		}
	}
}
