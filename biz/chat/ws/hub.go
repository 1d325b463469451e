// Package ws implements the realtime chat hub.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ncobase/ncore/logging/logger"
)

// MessageType defines frame types on the chat socket.
type MessageType string

const (
	MessageTypeJoin    MessageType = "join"
	MessageTypeLeave   MessageType = "leave"
	MessageTypeMessage MessageType = "message"
	MessageTypePing    MessageType = "ping"
	MessageTypePong    MessageType = "pong"
	MessageTypeError   MessageType = "error"
)

// Frame is one message on the chat socket.
type Frame struct {
	Type      MessageType    `json:"type"`
	Room      string         `json:"room,omitempty"`
	From      string         `json:"from,omitempty"`
	Content   string         `json:"content,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives inbound chat traffic from connected clients. The chat
// service implements it: persistence first, then fan-out.
type Sink interface {
	CanJoin(ctx context.Context, roomID, userID string) (bool, error)
	Inbound(ctx context.Context, roomID, senderID, content string) error
}

// Hub maintains active clients and routes frames to room members.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan *Frame
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	sink       Sink
	logger     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *Frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// SetSink wires the chat service in. Must be called before Run.
func (h *Hub) SetSink(sink Sink) {
	h.sink = sink
}

// Run owns the client registry. Call it on its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info(ctx, "Chat client connected", "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for room, clients := range h.rooms {
					if clients[client] {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.rooms, room)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info(ctx, "Chat client disconnected", "user_id", client.userID)

		case frame := <-h.broadcast:
			h.deliver(frame)
		}
	}
}

// Broadcast queues a frame for delivery to its room.
func (h *Hub) Broadcast(frame *Frame) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn(context.Background(), "Chat broadcast buffer full", "room", frame.Room)
	}
}

func (h *Hub) deliver(frame *Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error(context.Background(), "Failed to marshal frame", "error", err)
		return
	}

	clients, ok := h.rooms[frame.Room]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn(context.Background(), "Client send buffer full", "user_id", client.userID)
		}
	}
}

func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true
}

func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

// Stats reports connection counts per room.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomSizes := make(map[string]int)
	for room, clients := range h.rooms {
		roomSizes[room] = len(clients)
	}
	return map[string]any{
		"total_clients": len(h.clients),
		"total_rooms":   len(h.rooms),
		"rooms":         roomSizes,
	}
}
