// Package event provides the in-process domain event bus.
package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/ncore/logging/logger"
)

// Type names a domain event.
type Type string

const (
	TypePostLiked     Type = "post.liked"
	TypePostCommented Type = "post.commented"
	TypePostShared    Type = "post.shared"
	TypeUserFollowed  Type = "user.followed"

	TypeCommunityJoinRequested Type = "community.join_requested"
	TypeCommunityJoinApproved  Type = "community.join_approved"
	TypeCommunityJoinRejected  Type = "community.join_rejected"

	TypeChatMessageSent Type = "chat.message_sent"

	TypePaymentSucceeded Type = "payment.succeeded"
	TypePaymentFailed    Type = "payment.failed"
)

// Event is a domain event. ActorID is who did it, SubjectID is whose
// activity it concerns; handlers must not notify when the two match.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	ActorID   string         `json:"actor_id,omitempty"`
	SubjectID string         `json:"subject_id,omitempty"`
	ObjectID  string         `json:"object_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Handler func(ctx context.Context, event *Event) error

// Bus fans events out to subscribed handlers on worker goroutines.
type Bus struct {
	handlers map[Type][]Handler
	buffer   chan *Event
	mu       sync.RWMutex
	logger   *logger.Logger
}

func NewBus(bufferSize int, log *logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
		buffer:   make(chan *Event, bufferSize),
		logger:   log,
	}
}

func (b *Bus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish queues the event, timing out rather than blocking forever
// when the buffer is full.
func (b *Bus) Publish(ctx context.Context, event *Event) error {
	event.Timestamp = time.Now()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	select {
	case b.buffer <- event:
		b.logger.Debug(ctx, "Event published", "type", event.Type, "id", event.ID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("event buffer full, timeout publishing event")
	}
}

func (b *Bus) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go b.worker(ctx)
	}
	b.logger.Info(ctx, "Event bus started", "workers", numWorkers)
}

func (b *Bus) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.buffer:
			b.dispatch(ctx, event)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event *Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handlerCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := handler(handlerCtx, event); err != nil {
			b.logger.Error(ctx, "Event handler failed",
				"type", event.Type, "id", event.ID, "error", err)
		}
		cancel()
	}
}

// Shutdown waits for the buffer to drain, up to a deadline.
func (b *Bus) Shutdown(ctx context.Context) error {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case <-timeout:
			return fmt.Errorf("shutdown timeout with %d events remaining", len(b.buffer))
		case <-ctx.Done():
			return ctx.Err()
		default:
			if len(b.buffer) == 0 {
				b.logger.Info(ctx, "Event bus shutdown complete")
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}
