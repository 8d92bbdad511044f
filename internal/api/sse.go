package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/brianhealey/lyngdorf-go/internal/models"
)

const sseKeepAlive = 15 * time.Second

// sseUpdate is the payload of an "update" event.
type sseUpdate struct {
	Field    models.Field `json:"field"`
	Value    models.Value `json:"value"`
	Revision uint64       `json:"revision"`
}

// sseConnection is the payload of a "connection" event.
type sseConnection struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// sseEvents streams device changes. Clients receive the current state as a
// "state" event if a session is up, then one "update" event per changed
// field and a "connection" event whenever the device link comes or goes.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)

	if s, err := h.dev.Session(); err == nil {
		sendSSE(w, flusher, "state", h.state(s))
	} else {
		sendSSE(w, flusher, "connection", sseConnection{Error: err.Error()})
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return
			}
			if u.Field == models.FieldConnection {
				c := sseConnection{Connected: u.Err == nil}
				if u.Err != nil {
					c.Error = u.Err.Error()
				}
				sendSSE(w, flusher, "connection", c)
				if c.Connected {
					sendSSE(w, flusher, "state", h.rename(u.Snapshot))
				}
				continue
			}
			sendSSE(w, flusher, "update", sseUpdate{Field: u.Field, Value: h.value(u.Field, u.Value), Revision: u.Snapshot.Revision})
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
