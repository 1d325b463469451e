package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"

	"github.com/sohan284/social-media-go/biz/notification/data/repository"
	"github.com/sohan284/social-media-go/biz/notification/service"
	"github.com/sohan284/social-media-go/biz/notification/structs"
	"github.com/sohan284/social-media-go/internal/event"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	cleanup, err := logger.New(&config.Logger{Level: 4, Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(cleanup)
	return logger.StdLogger()
}

func newService(t *testing.T) *service.Service {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := repository.NewRepository(db)
	if err != nil {
		t.Fatalf("init notification repository: %v", err)
	}
	return service.NewService(repo, nil, testLogger(t))
}

// drain publishes through the bus and waits for the handlers to run.
func drain(t *testing.T, svc *service.Service, events ...*event.Event) {
	t.Helper()
	log := testLogger(t)
	bus := event.NewBus(16, log)
	svc.SubscribeTo(bus)
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx, 2)
	for _, evt := range events {
		if err := bus.Publish(ctx, evt); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := bus.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// Shutdown waits for the queue, not for handlers already dequeued.
	time.Sleep(100 * time.Millisecond)
	cancel()
}

func TestEventsBecomeNotifications(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	drain(t, svc,
		&event.Event{Type: event.TypePostLiked, ActorID: "bob", SubjectID: "alice", ObjectID: "post-1"},
		&event.Event{Type: event.TypeUserFollowed, ActorID: "carol", SubjectID: "alice"},
	)

	list, err := svc.List(ctx, "alice", false, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("notifications = %d, want 2", len(list))
	}

	kinds := map[structs.Kind]bool{}
	for _, n := range list {
		kinds[n.Kind] = true
		if n.Read {
			t.Errorf("notification %s arrived already read", n.ID)
		}
	}
	if !kinds[structs.KindLike] || !kinds[structs.KindFollow] {
		t.Errorf("kinds = %v, want like and follow", kinds)
	}

	count, err := svc.UnreadCount(ctx, "alice")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Errorf("unread = %d, want 2", count)
	}
}

func TestNoSelfNotification(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	drain(t, svc,
		&event.Event{Type: event.TypePostLiked, ActorID: "alice", SubjectID: "alice", ObjectID: "post-1"},
		&event.Event{Type: event.TypePostShared, ActorID: "bob", ObjectID: "post-2"},
	)

	list, err := svc.List(ctx, "alice", false, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("notifications = %d, want none for self or subject-less events", len(list))
	}
}

func TestDeleteNotification(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	drain(t, svc,
		&event.Event{Type: event.TypeUserFollowed, ActorID: "bob", SubjectID: "alice"},
	)

	list, err := svc.List(ctx, "alice", false, time.Now().Add(time.Minute), 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v, want one notification", list, err)
	}

	if err := svc.Delete(ctx, list[0].ID, "bob"); !errors.Is(err, service.ErrNotificationNotFound) {
		t.Fatalf("delete by stranger: got %v, want ErrNotificationNotFound", err)
	}
	if err := svc.Delete(ctx, list[0].ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	count, err := svc.UnreadCount(ctx, "alice")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Errorf("unread after delete = %d, want 0", count)
	}
}

func TestMarkRead(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	drain(t, svc,
		&event.Event{Type: event.TypePostCommented, ActorID: "bob", SubjectID: "alice", ObjectID: "post-1"},
		&event.Event{Type: event.TypePostCommented, ActorID: "carol", SubjectID: "alice", ObjectID: "post-1"},
	)

	list, err := svc.List(ctx, "alice", true, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("unread = %d, want 2", len(list))
	}

	// Only the owner may mark a notification read.
	if err := svc.MarkRead(ctx, list[0].ID, "bob"); !errors.Is(err, service.ErrNotificationNotFound) {
		t.Fatalf("mark read by stranger: got %v, want ErrNotificationNotFound", err)
	}
	if err := svc.MarkRead(ctx, list[0].ID, "alice"); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	count, err := svc.UnreadCount(ctx, "alice")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Errorf("unread after mark = %d, want 1", count)
	}

	if err := svc.MarkAllRead(ctx, "alice"); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	count, err = svc.UnreadCount(ctx, "alice")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Errorf("unread after mark all = %d, want 0", count)
	}
}
