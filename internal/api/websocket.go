package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebSocket message types for the live event feed
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected      = "connected"
	MsgTypePong           = "pong"
	MsgTypeRecordCreated  = "record:created"
	MsgTypeRecordUpdated  = "record:updated"
	MsgTypeRecordApproved = "record:approved"
	MsgTypeRecordRejected = "record:rejected"
	MsgTypeRecordDeleted  = "record:deleted"
	MsgTypeCalibrationDue = "calibration:due"
)

// WSMessage is the frame exchanged over the event feed.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// EventPayload describes a workflow event on one record.
type EventPayload struct {
	RecordType string `json:"recordType"`
	RecordID   string `json:"recordId"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status,omitempty"`
	Actor      string `json:"actor,omitempty"`
}

// Hub fans workflow events out to every connected client. Clients
// only ever send pings; all domain traffic is server to client.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an event hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Same-box deployment; origin enforcement lives in CORS config.
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// HandleEvents upgrades the connection and keeps it subscribed until
// the client goes away.
func (h *Hub) HandleEvents(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.clients[ws] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("event feed client connected", "clients", n)

	h.send(ws, WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("event feed read error", "error", err)
			}
			break
		}
		if msg.Type == MsgTypePing {
			h.send(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		}
	}

	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	ws.Close()
	return nil
}

// Broadcast sends one event to every connected client. Connections
// that fail to accept the write are dropped.
func (h *Hub) Broadcast(msgType string, payload EventPayload) {
	msg := WSMessage{
		Type:      msgType,
		ID:        payload.RecordID,
		Payload:   mustJSON(payload),
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for ws := range h.clients {
		conns = append(conns, ws)
	}
	h.mu.RUnlock()

	var dead []*websocket.Conn
	for _, ws := range conns {
		if err := ws.WriteJSON(msg); err != nil {
			dead = append(dead, ws)
		}
	}
	if len(dead) > 0 {
		h.mu.Lock()
		for _, ws := range dead {
			delete(h.clients, ws)
			ws.Close()
		}
		h.mu.Unlock()
	}
}

// ClientCount reports the number of connected feed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) send(ws *websocket.Conn, msg WSMessage) {
	if err := ws.WriteJSON(msg); err != nil {
		h.log.Debug("event feed write failed", "error", err)
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
