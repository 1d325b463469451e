// Package service implements chat rooms and message delivery.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/ncore/logging/logger"
	"github.com/redis/go-redis/v9"

	"github.com/sohan284/social-media-go/biz/chat/data/repository"
	"github.com/sohan284/social-media-go/biz/chat/structs"
	"github.com/sohan284/social-media-go/biz/chat/ws"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotMember     = errors.New("not a room member")
	ErrBadDirectRoom = errors.New("direct room needs exactly one other member")
)

const messageChannel = "chat:messages"

// envelope is the cross-instance wire format on the Redis channel.
type envelope struct {
	Origin  string           `json:"origin"`
	Message *structs.Message `json:"message"`
}

type Service struct {
	repo       repository.ChatRepository
	hub        *ws.Hub
	rdb        *redis.Client
	instanceID string
	logger     *logger.Logger
}

func NewService(repo repository.ChatRepository, hub *ws.Hub, rdb *redis.Client, log *logger.Logger) *Service {
	s := &Service{
		repo:       repo,
		hub:        hub,
		rdb:        rdb,
		instanceID: uuid.New().String(),
		logger:     log,
	}
	if hub != nil {
		hub.SetSink(s)
	}
	return s
}

// StartBridge subscribes to the Redis channel so messages saved by other
// instances reach clients connected here. No-op without Redis.
func (s *Service) StartBridge(ctx context.Context) {
	if s.rdb == nil {
		return
	}

	sub := s.rdb.Subscribe(ctx, messageChannel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					s.logger.Warn(ctx, "Bad chat envelope", "error", err)
					continue
				}
				if env.Origin == s.instanceID || env.Message == nil {
					continue
				}
				s.broadcast(env.Message)
			}
		}
	}()
	s.logger.Info(ctx, "Chat bridge started", "channel", messageChannel)
}

// CreateRoom creates a group room, or returns the existing direct room
// when one already links the two users.
func (s *Service) CreateRoom(ctx context.Context, creatorID string, req *structs.CreateRoomRequest) (*structs.Room, error) {
	memberIDs := append([]string{creatorID}, req.Members...)

	if !req.IsGroup {
		// Direct rooms are pairs; anything else would slip past the
		// dedup lookup and mismatch on later creates.
		if len(req.Members) != 1 || req.Members[0] == creatorID {
			return nil, ErrBadDirectRoom
		}
		existing, err := s.repo.FindDirectRoom(ctx, creatorID, req.Members[0])
		if err == nil {
			return s.withMembers(ctx, existing)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	room := &structs.Room{
		ID:        uuid.New().String(),
		Name:      req.Name,
		IsGroup:   req.IsGroup,
		CreatorID: creatorID,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateRoom(ctx, room, memberIDs); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Chat room created", "room_id", room.ID, "is_group", room.IsGroup)
	return s.withMembers(ctx, room)
}

func (s *Service) GetRoom(ctx context.Context, roomID, callerID string) (*structs.Room, error) {
	room, err := s.findRoomForMember(ctx, roomID, callerID)
	if err != nil {
		return nil, err
	}
	return s.withMembers(ctx, room)
}

func (s *Service) ListRooms(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Room, error) {
	return s.repo.ListRoomsForUser(ctx, userID, before, limit)
}

func (s *Service) ListMessages(ctx context.Context, roomID, callerID string, before time.Time, limit int) ([]*structs.Message, error) {
	if _, err := s.findRoomForMember(ctx, roomID, callerID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, roomID, before, limit)
}

// SendMessage persists the message and fans it out to local sockets and,
// through Redis, to other instances.
func (s *Service) SendMessage(ctx context.Context, roomID, senderID, content string) (*structs.Message, error) {
	if _, err := s.findRoomForMember(ctx, roomID, senderID); err != nil {
		return nil, err
	}

	message := &structs.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.repo.AddMessage(ctx, message); err != nil {
		return nil, err
	}

	s.broadcast(message)
	s.publish(ctx, message)
	return message, nil
}

// CanJoin implements ws.Sink.
func (s *Service) CanJoin(ctx context.Context, roomID, userID string) (bool, error) {
	return s.repo.IsMember(ctx, roomID, userID)
}

// Inbound implements ws.Sink.
func (s *Service) Inbound(ctx context.Context, roomID, senderID, content string) error {
	_, err := s.SendMessage(ctx, roomID, senderID, content)
	return err
}

func (s *Service) broadcast(message *structs.Message) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(&ws.Frame{
		Type:    ws.MessageTypeMessage,
		Room:    message.RoomID,
		From:    message.SenderID,
		Content: message.Content,
		Data: map[string]any{
			"message_id": message.ID,
		},
		Timestamp: message.CreatedAt,
	})
}

func (s *Service) publish(ctx context.Context, message *structs.Message) {
	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(envelope{Origin: s.instanceID, Message: message})
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, messageChannel, payload).Err(); err != nil {
		s.logger.Debug(ctx, "Failed to publish chat message", "error", err)
	}
}

func (s *Service) withMembers(ctx context.Context, room *structs.Room) (*structs.Room, error) {
	members, err := s.repo.ListMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	room.Members = members
	return room, nil
}

func (s *Service) findRoomForMember(ctx context.Context, roomID, userID string) (*structs.Room, error) {
	room, err := s.repo.FindRoom(ctx, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	member, err := s.repo.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotMember
	}
	return room, nil
}
