package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	sseChannelBuffer = 16
	sseHeartbeat     = 30 * time.Second
)

// client represents a single SSE connection.
type client struct {
	ch        chan string
	sessionID string
}

// Broadcaster manages SSE clients grouped by play session.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]struct{}),
	}
}

// Register adds a client for a session and returns it.
func (b *Broadcaster) Register(sessionID string) *client {
	c := &client{
		ch:        make(chan string, sseChannelBuffer),
		sessionID: sessionID,
	}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Unregister removes a client and closes its channel.
func (b *Broadcaster) Unregister(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.ch)
	}
	b.mu.Unlock()
}

// Disconnect unregisters every client of a session, ending their streams.
func (b *Broadcaster) Disconnect(sessionID string) {
	b.mu.Lock()
	for c := range b.clients {
		if c.sessionID == sessionID {
			delete(b.clients, c)
			close(c.ch)
		}
	}
	b.mu.Unlock()
}

// Send queues a message for one client if it is still registered.
func (b *Broadcaster) Send(c *client, data string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.clients[c]; ok {
		push(c, data)
	}
}

// Broadcast sends a message to all clients of a session. Every message is
// a full view, so a slow client loses its oldest pending message rather
// than the newest.
func (b *Broadcaster) Broadcast(sessionID, data string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients {
		if c.sessionID == sessionID {
			push(c, data)
		}
	}
}

// push never blocks. When the buffer is full the oldest message is dropped.
func push(c *client, data string) {
	select {
	case c.ch <- data:
		return
	default:
	}
	select {
	case <-c.ch:
	default:
	}
	select {
	case c.ch <- data:
	default:
	}
}

// ClientCount returns the number of connected clients for a session.
func (b *Broadcaster) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for c := range b.clients {
		if c.sessionID == sessionID {
			n++
		}
	}
	return n
}

// ServeSSE handles an SSE connection for a session.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, sessionID string, onConnect func(c *client)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming non supporté", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := b.Register(sessionID)
	defer b.Unregister(c)

	if onConnect != nil {
		onConnect(c)
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-c.ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
