package stream

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// StreamHandler serves the SSE endpoint. The optional "types" query
// parameter subscribes to a comma-separated list of event types. A
// Last-Event-ID header, or lastEventId parameter, replays missed events.
func StreamHandler(w http.ResponseWriter, r *http.Request) { hub.ServeHTTP(w, r) }

func lastEventID(r *http.Request) (uint64, bool) {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		v = r.URL.Query().Get("lastEventId")
	}
	id, err := strconv.ParseUint(v, 10, 64)
	return id, err == nil
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(clientChan, ClientChannelBuffer)
	client := h.Add(ch, r.RemoteAddr, r.UserAgent(), r.URL.Query().Get("types"))
	if client == nil {
		http.Error(w, "Server at capacity, please try again later", http.StatusServiceUnavailable)
		return
	}
	defer h.Remove(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control, Last-Event-ID")
	w.Header().Del("Content-Encoding")

	write := func(s string) bool {
		if _, err := io.WriteString(w, s); err != nil {
			return false
		}
		flusher.Flush()
		client.touch()
		return true
	}

	if !write("event: connected\ndata: {\"server\":\"sarview\"}\n\n") {
		return
	}

	// events already replayed may also be queued on ch
	var sent uint64
	if id, ok := lastEventID(r); ok {
		for _, msg := range h.Since(id, client) {
			if !write(formatSSEResponse(msg)) {
				return
			}
			sent = msg.ID
		}
	}

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done():
			return
		case msg := <-ch:
			if msg.ID <= sent {
				continue
			}
			if !write(formatSSEResponse(msg)) {
				return
			}
		case <-keepAlive.C:
			if !write(": keep-alive\n\n") {
				return
			}
		}
	}
}

func formatSSEResponse(msg Message) string {
	if msg.ID == 0 {
		return fmt.Sprintf("event: %s\ndata: %s\n\n", msg.Type, msg.Msg)
	}
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", msg.ID, msg.Type, msg.Msg)
}
