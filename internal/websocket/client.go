package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"emsinv/internal/infrastructure"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// dashboards never send more than control frames
	maxMessageSize = 512
	sendBuffer     = 64
)

// RunQueryParam selects a single pipeline run on /ws. Without it a client
// receives snapshots of every run.
const RunQueryParam = "run"

// Client is one dashboard connection. The hub owns its send channel.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	runID       string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// NewClient creates a client for an established connection. A non-empty
// runID restricts the snapshots it receives to that run.
func NewClient(hub *Hub, conn Connection, runID, traceID string, logger *slog.Logger) *Client {
	id := uuid.NewString()
	l := infrastructure.WithComponent(logger, "websocket.client").With(slog.String("client_id", id))
	if runID != "" {
		l = l.With(slog.String("watch_run", runID))
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		runID:       runID,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger:      l,
	}
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

// wants reports whether a frame about runID goes to this client. Frames
// not tied to a run reach everybody.
func (c *Client) wants(runID string) bool {
	return c.runID == "" || runID == "" || c.runID == runID
}

func (c *Client) context() context.Context {
	return infrastructure.WithTraceID(context.Background(), c.traceID)
}

// ReadPump keeps pong handling and close detection alive until the peer
// goes away, then unregisters the client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.logger.WarnContext(c.context(), "unexpected websocket close", slog.String("error", err.Error()))
		}
		return
	}
}

// WritePump forwards queued frames and keepalive pings. It sends a close
// frame once the hub closes the send channel.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		var (
			kind    int
			payload []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind, payload = websocket.TextMessage, msg
		case <-ticker.C:
			kind = websocket.PingMessage
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, payload); err != nil {
			c.logger.DebugContext(c.context(), "websocket write failed", slog.String("error", err.Error()))
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeHTTP upgrades a dashboard request and attaches it to the hub
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.isRunning() {
		http.Error(w, "websocket hub is not running", http.StatusServiceUnavailable)
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	if traceID == "" {
		traceID = infrastructure.NewTraceID()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered the request
		h.logger.WarnContext(infrastructure.WithTraceID(r.Context(), traceID), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	client := NewClient(h, NewConnectionWrapper(conn), r.URL.Query().Get(RunQueryParam), traceID, h.logger)
	h.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
