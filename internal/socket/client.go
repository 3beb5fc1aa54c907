// internal/socket/client.go
package socket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait            = 10 * time.Second
	pongWait             = 60 * time.Second
	pingPeriod           = pongWait * 9 / 10
	maxMessageSize int64 = 4096
	joinTimeout          = 5 * time.Second
)

// ClientMessage represents an incoming message from a client
type ClientMessage struct {
	Action  string                 `json:"action"`
	Room    string                 `json:"room,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, id, userID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan []byte, 256),
		Rooms:    make(map[string]bool),
		lastPing: time.Now(),
	}
}

// ReadPump reads client actions until the connection fails, then unregisters
// the client. Every pong or read extends the deadline by pongWait.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()

	extend := func() {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastPing = time.Now()
	}
	c.Conn.SetReadLimit(maxMessageSize)
	extend()
	c.Conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read error", "user_id", c.UserID, "error", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump sends queued events one frame each and pings the peer every
// pingPeriod. It returns once Send is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.Conn.WriteMessage(kind, data)
	}

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				c.Hub.log.Debug("websocket write failed", "user_id", c.UserID, "error", err)
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("malformed message")
		return
	}

	switch msg.Action {
	case "join":
		if msg.Room == "" {
			return
		}
		if !c.canJoin(msg.Room) {
			c.sendError("not allowed to join " + msg.Room)
			return
		}
		c.Hub.JoinRoom(c, msg.Room)
		c.sendAck("joined", msg.Room)

	case "leave":
		if msg.Room != "" {
			c.Hub.LeaveRoom(c, msg.Room)
			c.sendAck("left", msg.Room)
		}

	case "ping":
		c.lastPing = time.Now()
		c.send(MessagePong, map[string]interface{}{"time": time.Now().Unix()})

	case "pong":
		c.lastPing = time.Now()

	default:
		c.sendError("unknown action " + msg.Action)
	}
}

// canJoin allows the client's own user room and any project or workspace room
// the authorizer accepts.
func (c *Client) canJoin(room string) bool {
	if room == userRoom(c.UserID) {
		return true
	}
	if !strings.HasPrefix(room, "project:") && !strings.HasPrefix(room, "workspace:") {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	return c.Hub.authorize(ctx, c.UserID, room)
}

func (c *Client) sendAck(action, room string) {
	c.send(MessageAck, map[string]interface{}{"action": action, "room": room})
}

func (c *Client) sendError(message string) {
	c.send(MessageError, map[string]interface{}{"message": message})
}

func (c *Client) send(msgType MessageType, payload map[string]interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.Hub.log.Warn("client buffer full", "user_id", c.UserID, "type", msgType)
	}
}
