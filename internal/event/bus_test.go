package event_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"

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

func TestPublishSubscribe(t *testing.T) {
	bus := event.NewBus(16, testLogger(t))

	var got atomic.Int64
	bus.Subscribe(event.TypePostLiked, func(ctx context.Context, evt *event.Event) error {
		if evt.ActorID != "actor" || evt.SubjectID != "subject" {
			t.Errorf("unexpected event: %+v", evt)
		}
		got.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx, 2)

	err := bus.Publish(ctx, &event.Event{
		Type:      event.TypePostLiked,
		ActorID:   "actor",
		SubjectID: "subject",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for got.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("handler never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestUnsubscribedTypeIsDropped(t *testing.T) {
	bus := event.NewBus(16, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx, 1)

	if err := bus.Publish(ctx, &event.Event{Type: event.TypeUserFollowed}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestPublishAssignsID(t *testing.T) {
	bus := event.NewBus(1, testLogger(t))

	evt := &event.Event{Type: event.TypePostShared}
	if err := bus.Publish(context.Background(), evt); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if evt.ID == "" {
		t.Error("expected an assigned event id")
	}
	if evt.Timestamp.IsZero() {
		t.Error("expected an assigned timestamp")
	}
}
