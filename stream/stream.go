// Package stream fans job and fetch events out to Server-Sent Events clients.
//
// Every event gets a sequence number sent as the SSE id. A client that
// reconnects with Last-Event-ID receives the recent events it missed before
// live ones.
package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MaxConcurrentConnections = 5000
	// ClientChannelBuffer is the per-client queue; a full queue drops events
	// for that client only.
	ClientChannelBuffer = 256
	KeepAliveInterval   = 30 * time.Second
	CleanupInterval     = 60 * time.Second
	HubBroadcastBuffer  = 2048
	// ReplayBuffer is how many recent events are kept for reconnecting clients.
	ReplayBuffer = 512
)

// Message is one SSE event. Msg carries the JSON payload.
type Message struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

type clientChan chan Message

// filter selects event types. A pattern ending in "*" matches by prefix, so
// "stdout-*" follows the output of every job.
type filter struct {
	exact    map[string]bool
	prefixes []string
}

func parseFilter(s string) filter {
	f := filter{exact: map[string]bool{}}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		switch {
		case t == "":
		case strings.HasSuffix(t, "*"):
			f.prefixes = append(f.prefixes, strings.TrimSuffix(t, "*"))
		default:
			f.exact[t] = true
		}
	}
	return f
}

func (f filter) match(typ string) bool {
	if len(f.exact) == 0 && len(f.prefixes) == 0 {
		return true
	}
	if f.exact[typ] {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(typ, p) {
			return true
		}
	}
	return false
}

// Client is one connected SSE subscriber.
type Client struct {
	ID         string
	RemoteAddr string
	UserAgent  string
	Connected  time.Time

	ch       clientChan
	done     chan struct{}
	filter   filter
	lastSeen atomic.Int64
	sent     atomic.Int64
}

// Wants reports whether the client subscribed to events of type typ.
func (c *Client) Wants(typ string) bool { return c.filter.match(typ) }

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) touch() { c.lastSeen.Store(time.Now().Unix()) }

// Hub owns the client set, the dispatch loop and the replay buffer.
type Hub struct {
	clients sync.Map // clientChan -> *Client
	active  atomic.Int64
	total   atomic.Int64
	dropped struct{ broadcasts, client atomic.Int64 }
	refused atomic.Int64
	seq     atomic.Uint64

	broadcast chan Message

	recentMu sync.Mutex
	recent   []Message // ring of the last ReplayBuffer events
	next     int

	quit     chan struct{}
	quitOnce sync.Once
}

// NewHub starts a hub's dispatch and cleanup loops.
func NewHub() *Hub {
	h := &Hub{
		broadcast: make(chan Message, HubBroadcastBuffer),
		recent:    make([]Message, 0, ReplayBuffer),
		quit:      make(chan struct{}),
	}
	go h.dispatch()
	go h.sweep()
	return h
}

var hub = NewHub()

// Publish marshals v to JSON and broadcasts it as an event of type typ.
func Publish(typ string, v any) { hub.Publish(typ, v) }

// GetConnectionStats reports connection and delivery counters.
func GetConnectionStats() map[string]any { return hub.Stats() }

// Shutdown disconnects every client and stops the hub.
func Shutdown() { hub.Shutdown() }

func (h *Hub) Publish(typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", typ, err)
		return
	}
	h.Broadcast(Message{Type: typ, Msg: string(data)})
}

// Broadcast queues msg for every subscribed client without blocking.
func (h *Hub) Broadcast(msg Message) {
	msg.ID = h.seq.Add(1)
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.broadcasts.Add(1)
	}
}

// Add registers a client or returns nil when the hub is full. The hub never
// closes c; Done is closed when the client is removed.
func (h *Hub) Add(c clientChan, remoteAddr, userAgent, types string) *Client {
	if h.active.Load() >= MaxConcurrentConnections {
		h.refused.Add(1)
		log.Printf("Connection limit reached (%d), rejecting new client from %s", MaxConcurrentConnections, remoteAddr)
		return nil
	}
	now := time.Now()
	client := &Client{
		ID:         fmt.Sprintf("%d-%s", now.UnixNano(), remoteAddr),
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		Connected:  now,
		ch:         c,
		done:       make(chan struct{}),
		filter:     parseFilter(types),
	}
	client.touch()
	h.clients.Store(c, client)
	n := h.active.Add(1)
	log.Printf("Client connected: %s (total: %d)", client.ID, n)
	return client
}

func (h *Hub) Remove(c clientChan) {
	v, ok := h.clients.LoadAndDelete(c)
	if !ok {
		return
	}
	n := h.active.Add(-1)
	close(v.(*Client).done)
	log.Printf("Client disconnected: %s (total: %d)", v.(*Client).ID, n)
}

func (h *Hub) remember(msg Message) {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()
	if len(h.recent) < ReplayBuffer {
		h.recent = append(h.recent, msg)
		return
	}
	h.recent[h.next] = msg
	h.next = (h.next + 1) % ReplayBuffer
}

// Since returns the remembered events after id that c wants, oldest first.
func (h *Hub) Since(id uint64, c *Client) []Message {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()
	var out []Message
	for i := range h.recent {
		msg := h.recent[(h.next+i)%len(h.recent)]
		if msg.ID > id && c.Wants(msg.Type) {
			out = append(out, msg)
		}
	}
	return out
}

func (h *Hub) dispatch() {
	for {
		select {
		case msg := <-h.broadcast:
			h.remember(msg)
			h.clients.Range(func(key, value any) bool {
				client := value.(*Client)
				if !client.Wants(msg.Type) {
					return true
				}
				select {
				case client.ch <- msg:
					client.touch()
					client.sent.Add(1)
					h.total.Add(1)
				default:
					h.dropped.client.Add(1)
				}
				return true
			})
		case <-h.quit:
			return
		}
	}
}

func (h *Hub) sweep() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.removeStale(time.Now().Add(-2 * CleanupInterval))
		case <-h.quit:
			return
		}
	}
}

// removeStale drops clients that have not been written to since cutoff.
func (h *Hub) removeStale(cutoff time.Time) int {
	var stale []clientChan
	h.clients.Range(func(key, value any) bool {
		if value.(*Client).lastSeen.Load() < cutoff.Unix() {
			stale = append(stale, key.(clientChan))
		}
		return true
	})
	if len(stale) > 0 {
		log.Printf("Cleaning up %d stale connections", len(stale))
	}
	for _, c := range stale {
		h.Remove(c)
	}
	return len(stale)
}

func (h *Hub) Stats() map[string]any {
	return map[string]any{
		"active_connections":   h.active.Load(),
		"total_messages":       h.total.Load(),
		"max_connections":      int64(MaxConcurrentConnections),
		"dropped_broadcasts":   h.dropped.broadcasts.Load(),
		"dropped_client_msgs":  h.dropped.client.Load(),
		"rejected_connections": h.refused.Load(),
		"last_event_id":        h.seq.Load(),
	}
}

func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() {
		close(h.quit)
		h.clients.Range(func(key, value any) bool {
			h.Remove(key.(clientChan))
			return true
		})
		log.Println("Stream connection manager shutdown complete")
	})
}
