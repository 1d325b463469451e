package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ncobase/ncore/logging/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one authenticated WebSocket connection.
type Client struct {
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]bool
	logger *logger.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, log *logger.Logger) *Client {
	return &Client{
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		rooms:  make(map[string]bool),
		logger: log,
	}
}

// ReadPump pumps frames from the connection into the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error(context.Background(), "WebSocket read error", "user_id", c.userID, "error", err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn(context.Background(), "Invalid frame", "user_id", c.userID, "error", err)
			continue
		}

		frame.From = c.userID
		frame.Timestamp = time.Now()
		c.handleFrame(&frame)
	}
}

// WritePump pumps frames from the hub to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error(context.Background(), "WebSocket write error", "user_id", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(frame *Frame) {
	ctx := context.Background()

	switch frame.Type {
	case MessageTypeJoin:
		if frame.Room == "" {
			return
		}
		ok, err := c.hub.sink.CanJoin(ctx, frame.Room, c.userID)
		if err != nil || !ok {
			c.sendError("cannot join room")
			return
		}
		c.hub.joinRoom(c, frame.Room)

	case MessageTypeLeave:
		if frame.Room != "" {
			c.hub.leaveRoom(c, frame.Room)
		}

	case MessageTypeMessage:
		if frame.Room == "" || frame.Content == "" {
			return
		}
		// Persist and fan out through the service so REST and
		// socket senders share one path.
		if err := c.hub.sink.Inbound(ctx, frame.Room, c.userID, frame.Content); err != nil {
			c.sendError("message rejected")
		}

	case MessageTypePing:
		pong := &Frame{Type: MessageTypePong, Timestamp: time.Now()}
		data, _ := json.Marshal(pong)
		select {
		case c.send <- data:
		default:
		}
	}
}

func (c *Client) sendError(message string) {
	frame := &Frame{Type: MessageTypeError, Content: message, Timestamp: time.Now()}
	data, _ := json.Marshal(frame)
	select {
	case c.send <- data:
	default:
	}
}
