package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/hrdesk/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
)

// WSMessage is sent by clients. Type is subscribe, unsubscribe or ping;
// TaskID selects the task to follow, 0 meaning every task.
type WSMessage struct {
	Type   string `json:"type"`
	TaskID int64  `json:"task_id"`
}

// wsReply is everything the server sends back.
type wsReply struct {
	Type   string           `json:"type"`
	TaskID *int64           `json:"task_id,omitempty"`
	Event  events.EventType `json:"event,omitempty"`
	Data   any              `json:"data,omitempty"`
	Time   *time.Time       `json:"time,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func wsError(msg string) wsReply { return wsReply{Type: "error", Error: msg} }

// WSHandler streams engine events to browser clients. Each connection
// follows at most one subscription; subscribing again replaces it.
type WSHandler struct {
	upgrader  websocket.Upgrader
	publisher events.Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// wsClient is one connection. Only its serve loop writes to conn and
// touches the subscription.
type wsClient struct {
	conn     *websocket.Conn
	inbound  chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func (c *wsClient) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// NewWSHandler creates a handler that relays events from pub.
func NewWSHandler(pub events.Publisher, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the HR console is served from its own origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		publisher: pub,
		logger:    logger,
		clients:   make(map[*wsClient]struct{}),
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{
		conn:    conn,
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.read(c)
	go h.serve(c)
}

func (h *WSHandler) drop(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

// read hands raw frames to the serve loop until the peer goes away.
func (h *WSHandler) read(c *wsClient) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		select {
		case c.inbound <- frame:
		case <-c.done:
			return
		}
	}
}

// serve owns the connection's writes and its subscription.
func (h *WSHandler) serve(c *wsClient) {
	var (
		sub   <-chan events.Event
		subID int64
	)
	cancel := func() {
		if sub != nil {
			h.publisher.Unsubscribe(subID, sub)
			sub = nil
		}
	}
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		cancel()
		h.drop(c)
	}()

	for {
		var reply wsReply
		select {
		case <-c.done:
			return

		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue

		case ev, ok := <-sub:
			if !ok {
				sub = nil
				continue
			}
			at := ev.Time
			reply = wsReply{Type: "event", TaskID: &ev.TaskID, Event: ev.Type, Data: ev.Data, Time: &at}

		case frame := <-c.inbound:
			var msg WSMessage
			if err := json.Unmarshal(frame, &msg); err != nil {
				reply = wsError("invalid message format")
				break
			}
			switch msg.Type {
			case "subscribe":
				if msg.TaskID < 0 {
					reply = wsError("task_id must be 0 (all tasks) or a task ID")
					break
				}
				cancel()
				subID = msg.TaskID
				sub = h.publisher.Subscribe(subID)
				id := subID
				reply = wsReply{Type: "subscribed", TaskID: &id}
				h.logger.Debug("websocket subscribed", "task_id", subID)
			case "unsubscribe":
				cancel()
				reply = wsReply{Type: "unsubscribed"}
			case "ping":
				reply = wsReply{Type: "pong"}
			default:
				reply = wsError("unknown message type: " + msg.Type)
			}
		}

		payload, err := json.Marshal(reply)
		if err != nil {
			h.logger.Error("marshal websocket reply", "type", reply.Type, "error", err)
			continue
		}
		// one frame per reply keeps every frame a complete JSON value
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// ConnectionCount returns the number of open connections.
func (h *WSHandler) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *WSHandler) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.stop()
	}
}
