package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"emsinv/internal/infrastructure"
)

// Message types sent to clients
const (
	TypeConnection = "connection"
	TypeSnapshot   = "operation:snapshot"
)

// broadcastBuffer bounds the queue between publishers and the hub loop
const broadcastBuffer = 256

// Message is the envelope of every frame sent to clients
type Message struct {
	Type      string      `json:"type"`
	Subtype   string      `json:"subtype,omitempty"`
	Action    string      `json:"action,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// outbound is an encoded frame plus the run it concerns, if any
type outbound struct {
	runID   string
	payload []byte
}

// Stats are the hub's lifetime counters
type Stats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Hub fans pipeline run snapshots out to dashboard clients. A single loop
// goroutine owns client registration and delivery.
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger *slog.Logger

	connections atomic.Int64
	sent        atomic.Int64
	dropped     atomic.Int64
}

// NewHub creates a Hub. Start must be called before clients connect.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
	}
}

// Start runs the hub loop in the background. Calling it again is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop disconnects every client and waits for the loop to exit. A stopped
// hub cannot be restarted.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.connections.Add(1)

			h.logger.InfoContext(client.context(), "client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.String("watch_run", client.runID),
				slog.Int("total_clients", count))
			h.greet(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.InfoContext(client.context(), "client unregistered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", count),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// greet tells a new client its ID and which run it watches
func (h *Hub) greet(client *Client) {
	msg, err := encode(TypeConnection, "", "", map[string]string{
		"status":    "connected",
		"client_id": client.id,
		"run":       client.runID,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- msg:
	default:
		h.logger.Warn("client buffer full on connect", slog.String("client_id", client.id))
	}
}

// deliver queues msg on every interested client. Clients that cannot keep
// up are disconnected.
func (h *Hub) deliver(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(msg.runID) {
			continue
		}
		select {
		case client.send <- msg.payload:
			h.sent.Add(1)
		default:
			h.drop(client)
			h.dropped.Add(1)
			h.logger.Warn("client send buffer full, disconnecting", slog.String("client_id", client.id))
		}
	}
}

// drop removes client and closes its send channel. Callers hold h.mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
}

// BroadcastUpdate publishes an event. For run snapshots subject is the run
// ID, which routes the frame to clients watching that run, and data is the
// snapshot itself. Other events are sent to everyone with subject and
// action as subtype and action.
func (h *Hub) BroadcastUpdate(eventType, subject, action string, data interface{}) {
	msg := outbound{}
	var err error
	if eventType == TypeSnapshot {
		msg.runID = subject
		msg.payload, err = encode(eventType, "", "", data)
	} else {
		msg.payload, err = encode(eventType, subject, action, data)
	}
	if err != nil {
		h.logger.Error("failed to marshal broadcast",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
		return
	}

	if !h.isRunning() {
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast queue full, message dropped", slog.String("type", eventType))
	}
}

func encode(msgType, subtype, action string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		Subtype:   subtype,
		Action:    action,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the current counters
func (h *Hub) Stats() Stats {
	return Stats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.connections.Load(),
		MessagesSent:     h.sent.Load(),
		MessagesDropped:  h.dropped.Load(),
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}
