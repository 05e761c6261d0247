package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MarkPriceUpdate is a decoded markPrice stream event.
type MarkPriceUpdate struct {
	Symbol    string
	MarkPrice float64
	EventTime time.Time
}

// StreamWatcher maintains a live WebSocket connection to the exchange's
// markPrice stream, with reconnect/backoff and a health monitor, adapted
// from the teacher's ConnectionManager. It exists to keep a low-latency
// price cache warm; the decision pipeline itself still pulls klines
// on demand through RESTClient.
type StreamWatcher struct {
	wsURL       string
	conn        *websocket.Conn
	writeMu     sync.Mutex
	lastMsgTime time.Time

	mu     sync.RWMutex
	prices map[string]MarkPriceUpdate
}

// NewStreamWatcher constructs a StreamWatcher over the given combined
// markPrice stream URL.
func NewStreamWatcher(wsURL string) *StreamWatcher {
	return &StreamWatcher{
		wsURL:  wsURL,
		prices: make(map[string]MarkPriceUpdate),
	}
}

// LastPrice returns the most recently observed mark price for a symbol.
func (w *StreamWatcher) LastPrice(symbol string) (MarkPriceUpdate, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.prices[symbol]
	return p, ok
}

// Connect establishes the initial connection.
func (w *StreamWatcher) Connect() error {
	log.Println("🔌 connecting to markPrice stream...")
	conn, _, err := websocket.DefaultDialer.Dial(w.wsURL, http.Header{})
	if err != nil {
		return fmt.Errorf("markPrice stream connection failed: %w", err)
	}
	w.conn = conn
	w.lastMsgTime = time.Now()
	log.Println("✅ markPrice stream connected")
	return nil
}

// Reconnect tears down and re-establishes the connection.
func (w *StreamWatcher) Reconnect() error {
	w.Close()
	return w.Connect()
}

// Close closes the connection.
func (w *StreamWatcher) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}

type markPriceEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
}

// Run reads and applies events until ctx is cancelled, reconnecting with
// exponential backoff on read errors.
func (w *StreamWatcher) Run(ctx context.Context) {
	backoffAttempt := 0
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		default:
		}

		if w.conn == nil {
			if err := w.Connect(); err != nil {
				delay := jitteredBackoff(backoffAttempt)
				backoffAttempt++
				log.Printf("⚠️  markPrice stream connect failed, retrying in %s: %v", delay, err)
				time.Sleep(delay)
				continue
			}
			backoffAttempt = 0
		}

		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			log.Printf("⚠️  markPrice stream read error: %v", err)
			w.conn = nil
			continue
		}
		w.lastMsgTime = time.Now()

		var evt markPriceEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue
		}
		w.apply(evt)
	}
}

func (w *StreamWatcher) apply(evt markPriceEvent) {
	var price float64
	if _, err := fmt.Sscanf(evt.MarkPrice, "%f", &price); err != nil {
		return
	}
	w.mu.Lock()
	w.prices[evt.Symbol] = MarkPriceUpdate{
		Symbol:    evt.Symbol,
		MarkPrice: price,
		EventTime: time.UnixMilli(evt.EventTime),
	}
	w.mu.Unlock()
}

// RunHealthMonitor triggers a reconnect if no message has arrived recently,
// mirroring the teacher's health-check loop.
func (w *StreamWatcher) RunHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(w.lastMsgTime) > 5*time.Minute {
				log.Println("⚠️  no markPrice message in 5m, forcing reconnect")
				if err := w.Reconnect(); err != nil {
					log.Printf("❌ markPrice stream reconnect failed: %v", err)
				}
			}
		}
	}
}
