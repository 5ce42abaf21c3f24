package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// streamModelProgress handles GET /v1/models/{model_name}/progress/stream.
// It holds the connection open as a Server-Sent Events stream: progress
// records arrive as `data:` frames and idle periods are padded with
// `: heartbeat` comment frames. The stream ends after the first complete or
// error record, or when the client disconnects; the subscription is
// deregistered on every exit path.
func (s *Server) streamModelProgress(w http.ResponseWriter, r *http.Request) {
	name, err := parseModelName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.tracker.Subscribe(name)
	defer sub.Close()

	for {
		ev, err := sub.Next(r.Context())
		if err != nil {
			// Client disconnect or terminal record already delivered.
			return
		}
		if ev.Heartbeat {
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
			continue
		}
		payload, err := json.Marshal(ev.Record)
		if err != nil {
			s.logger.Error("marshal progress record failed",
				zap.String("model", name),
				zap.Error(err),
			)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
		if ev.Record.Status.Terminal() {
			return
		}
	}
}
