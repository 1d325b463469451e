// Package service turns domain events into notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/ncore/logging/logger"
	"github.com/redis/go-redis/v9"

	"github.com/sohan284/social-media-go/biz/notification/data/repository"
	"github.com/sohan284/social-media-go/biz/notification/structs"
	"github.com/sohan284/social-media-go/internal/event"
)

var ErrNotificationNotFound = errors.New("notification not found")

const unreadCacheTTL = 5 * time.Minute

type Service struct {
	repo   repository.NotificationRepository
	rdb    *redis.Client
	logger *logger.Logger
}

func NewService(repo repository.NotificationRepository, rdb *redis.Client, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		rdb:    rdb,
		logger: log,
	}
}

// SubscribeTo wires the service into the event bus. Events where actor
// and subject coincide never produce a notification.
func (s *Service) SubscribeTo(bus *event.Bus) {
	bus.Subscribe(event.TypePostLiked, s.onEvent(structs.KindLike, "liked your post"))
	bus.Subscribe(event.TypePostCommented, s.onEvent(structs.KindComment, "commented on your post"))
	bus.Subscribe(event.TypePostShared, s.onEvent(structs.KindShare, "shared your post"))
	bus.Subscribe(event.TypeUserFollowed, s.onEvent(structs.KindFollow, "started following you"))
	bus.Subscribe(event.TypeCommunityJoinRequested, s.onEvent(structs.KindJoinRequest, "requested to join your community"))
	bus.Subscribe(event.TypeCommunityJoinApproved, s.onEvent(structs.KindJoinApproved, "approved your join request"))
	bus.Subscribe(event.TypeCommunityJoinRejected, s.onEvent(structs.KindJoinRejected, "rejected your join request"))
	bus.Subscribe(event.TypePaymentSucceeded, s.onEvent(structs.KindPayment, "your payment was received"))
}

func (s *Service) onEvent(kind structs.Kind, message string) event.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt.SubjectID == "" || evt.SubjectID == evt.ActorID {
			return nil
		}
		return s.Create(ctx, &structs.Notification{
			UserID:   evt.SubjectID,
			ActorID:  evt.ActorID,
			Kind:     kind,
			ObjectID: evt.ObjectID,
			Message:  message,
		})
	}
}

func (s *Service) Create(ctx context.Context, n *structs.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.invalidateUnread(ctx, n.UserID)
	return nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, before time.Time, limit int) ([]*structs.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, before, limit)
}

// UnreadCount serves from Redis when available and falls back to the
// database, repopulating the cache.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	key := unreadKey(userID)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, key).Result(); err == nil {
			if count, err := strconv.Atoi(cached); err == nil {
				return count, nil
			}
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, key, strconv.Itoa(count), unreadCacheTTL).Err(); err != nil {
			s.logger.Debug(ctx, "Failed to cache unread count", "error", err)
		}
	}
	return count, nil
}

func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *Service) invalidateUnread(ctx context.Context, userID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, unreadKey(userID)).Err(); err != nil {
		s.logger.Debug(ctx, "Failed to invalidate unread cache", "error", err)
	}
}

func unreadKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}
