package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"ms-checkin/internal/checkin"
)

// StatusEmitter manages SSE connections and broadcasts controller
// snapshots so dashboards see pending counts and sync results live.
type StatusEmitter struct {
	clients     map[chan checkin.Snapshot]struct{}
	clientMutex sync.RWMutex
}

// NewStatusEmitter creates a new SSE emitter for status snapshots.
func NewStatusEmitter() *StatusEmitter {
	return &StatusEmitter{
		clients: make(map[chan checkin.Snapshot]struct{}),
	}
}

// Subscribe adds a client stream. The channel is closed and removed when
// ctx ends.
func (e *StatusEmitter) Subscribe(ctx context.Context) chan checkin.Snapshot {
	clientChan := make(chan checkin.Snapshot, 10)

	e.clientMutex.Lock()
	e.clients[clientChan] = struct{}{}
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(clientChan)
	}()

	return clientChan
}

// Emit broadcasts a snapshot to all subscribed clients.
func (e *StatusEmitter) Emit(snap checkin.Snapshot) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for clientChan := range e.clients {
		// Non-blocking send so one slow client never stalls the rest
		select {
		case clientChan <- snap:
		default:
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (e *StatusEmitter) ClientCount() int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients)
}

func (e *StatusEmitter) removeClient(clientChan chan checkin.Snapshot) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	if _, ok := e.clients[clientChan]; ok {
		delete(e.clients, clientChan)
		close(clientChan)
	}
}

// ServeHTTP streams snapshots to the client as server-sent events until
// the connection drops.
func (e *StatusEmitter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := e.Subscribe(r.Context())
	for snap := range clientChan {
		payload, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}
