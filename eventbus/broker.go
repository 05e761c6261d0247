// Package eventbus broadcasts decision-cycle outcomes to live subscribers
// (an SSE-served dashboard, a Redis-backed fan-out) as they're produced,
// adapted from the teacher's realtime.Broker register/unregister/broadcast
// channel pattern.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"haka-futures-engine/eventbus/wire"
)

// Broker fans decision events out to SSE clients and, when configured, to
// a Redis publisher for cross-process consumers.
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	mu         sync.RWMutex

	publish func(payload []byte)
}

// NewBroker creates a Broker. publish may be nil if there is no external
// fan-out target.
func NewBroker(publish func(payload []byte)) *Broker {
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 1000),
		publish:    publish,
	}
}

// Run starts the broker loop; call it in its own goroutine.
func (b *Broker) Run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
			log.Printf("SSE client connected, total: %d", len(b.clients))

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
				log.Printf("SSE client disconnected, total: %d", len(b.clients))
			}
			b.mu.Unlock()

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
				}
			}
			b.mu.RUnlock()
		}
	}
}

// ServeHTTP serves the SSE endpoint.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan []byte, 10)
	b.register <- clientChan

	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			b.unregister <- clientChan
			return
		case msg, ok := <-clientChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			w.(http.Flusher).Flush()
		}
	}
}

// PublishDecision broadcasts a decision event: JSON to local SSE clients,
// and the compact protobuf wire encoding to the external fan-out target
// (Redis pub/sub), since cross-process consumers don't need it readable.
func (b *Broker) PublishDecision(evt wire.DecisionEvent) {
	if payload, err := json.Marshal(evt); err == nil {
		b.broadcast <- payload
	}
	if b.publish != nil {
		b.publish(evt.Marshal())
	}
}
