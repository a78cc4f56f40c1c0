package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hearthside/starboard/internal/notify"
)

// Events handles GET /api/events: the long-lived notification stream.
//
// The stream is Server-Sent Events: one `event:`/`data:` pair per
// notification, flushed immediately. The subscriber is registered before
// headers are written so the connected acknowledgment is the first event on
// the wire. Whatever ends the stream (client disconnect, write failure, or
// the broadcaster dropping a slow consumer) tears down only this
// subscription.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteProblem(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := h.subscribers.Subscribe()
	defer h.subscribers.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := h.keepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				slog.Debug("notification write failed, dropping subscriber", "error", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			// Comment line keeps proxies from timing the connection out.
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
