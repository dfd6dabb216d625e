package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ProgressEvent is broadcast to WebSocket clients as a selection request
// is processed, one event per slide plus run start/finish markers.
type ProgressEvent struct {
	Type       string  `json:"type"` // run_started, slide_selected, slide_skipped, run_finished
	RunID      string  `json:"run_id"`
	SlideIndex int     `json:"slide_index,omitempty"`
	SlideTitle string  `json:"slide_title,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	Query      string  `json:"query,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	SlideCount int     `json:"slide_count,omitempty"`
}

// ProgressHub manages WebSocket connections and broadcasts progress events.
type ProgressHub struct {
	clients    map[progressClient]bool
	broadcast  chan ProgressEvent
	register   chan progressClient
	unregister chan progressClient
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// progressClient allows for both real connections and test clients.
type progressClient interface {
	sendChannel() chan []byte
	close()
}

// wsClient is one live WebSocket connection.
type wsClient struct {
	hub  *ProgressHub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) sendChannel() chan []byte { return c.send }

func (c *wsClient) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// NewProgressHub creates a progress hub.
func NewProgressHub() *ProgressHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProgressHub{
		clients:    make(map[progressClient]bool),
		broadcast:  make(chan ProgressEvent, 256),
		register:   make(chan progressClient),
		unregister: make(chan progressClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's event loop.
func (h *ProgressHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.sendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: Failed to marshal progress event: %v", err)
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.sendChannel() <- data:
				default:
					// Slow client, disconnect it.
					close(client.sendChannel())
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			log.Println("Progress hub stopping...")
			return
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *ProgressHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.sendChannel())
		client.close()
	}
	h.clients = make(map[progressClient]bool)
	h.mu.Unlock()
}

// Broadcast sends an event to all connected clients. Never blocks.
func (h *ProgressHub) Broadcast(event ProgressEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Println("WARNING: progress broadcast channel full, dropping event")
	}
}

// Register adds a client to the hub.
func (h *ProgressHub) Register(client progressClient) {
	h.register <- client
}

// ServeHTTP handles WebSocket upgrade requests on /ws/progress.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		log.Printf("ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// writePump sends queued events to the connection.
func (c *wsClient) writePump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			log.Printf("ERROR: WebSocket write failed: %v", err)
			return
		}
	}
}

// readPump drains client messages to detect disconnection.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

// testClient is an in-process client used by tests.
type testClient struct {
	ch chan []byte
}

func (t *testClient) sendChannel() chan []byte { return t.ch }
func (t *testClient) close()                   {}
