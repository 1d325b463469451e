package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"

	accountrepo "github.com/sohan284/social-media-go/core/account/data/repository"
	accountstructs "github.com/sohan284/social-media-go/core/account/structs"

	"github.com/sohan284/social-media-go/biz/chat/data/repository"
	"github.com/sohan284/social-media-go/biz/chat/service"
	"github.com/sohan284/social-media-go/biz/chat/structs"
)

type fixture struct {
	svc      *service.Service
	userRepo accountrepo.UserRepository
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	cleanup, err := logger.New(&config.Logger{Level: 4, Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(cleanup)
	return logger.StdLogger()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo, _, _, err := accountrepo.NewRepositories(db)
	if err != nil {
		t.Fatalf("init account repositories: %v", err)
	}
	repo, err := repository.NewRepository(db)
	if err != nil {
		t.Fatalf("init chat repository: %v", err)
	}

	return &fixture{
		svc:      service.NewService(repo, nil, nil, testLogger(t)),
		userRepo: userRepo,
	}
}

func (f *fixture) user(t *testing.T, username string) string {
	t.Helper()
	now := time.Now()
	u := &accountstructs.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     username + "@example.com",
		Role:      accountstructs.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.userRepo.Create(context.Background(), nil, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func TestDirectRoomDeduplication(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ctx := context.Background()

	first, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Members: []string{bob}})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if first.IsGroup {
		t.Error("two-party room should not be a group")
	}
	if len(first.Members) != 2 {
		t.Errorf("members = %d, want 2", len(first.Members))
	}

	// Opening the same conversation from either side lands in one room.
	second, err := f.svc.CreateRoom(ctx, bob, &structs.CreateRoomRequest{Members: []string{alice}})
	if err != nil {
		t.Fatalf("create room again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the existing direct room, got %s and %s", first.ID, second.ID)
	}
}

func TestDirectRoomRequiresOneOtherMember(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	ctx := context.Background()

	cases := map[string][]string{
		"no members":       {},
		"several members":  {bob, carol},
		"creator themself": {alice},
	}
	for name, members := range cases {
		_, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Members: members})
		if !errors.Is(err, service.ErrBadDirectRoom) {
			t.Errorf("%s: got %v, want ErrBadDirectRoom", name, err)
		}
	}

	// A group with the same roster is still allowed.
	room, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{
		Name: "trio", IsGroup: true, Members: []string{bob, carol},
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if len(room.Members) != 3 {
		t.Errorf("members = %d, want 3", len(room.Members))
	}
}

func TestGroupRoomsAreNotDeduplicated(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ctx := context.Background()

	first, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Name: "team", IsGroup: true, Members: []string{bob}})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	second, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Name: "team", IsGroup: true, Members: []string{bob}})
	if err != nil {
		t.Fatalf("create group again: %v", err)
	}
	if first.ID == second.ID {
		t.Error("group rooms must not collapse into one")
	}
}

func TestSendMessageRequiresMembership(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	eve := f.user(t, "eve")
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Members: []string{bob}})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if _, err := f.svc.SendMessage(ctx, room.ID, eve, "let me in"); !errors.Is(err, service.ErrNotMember) {
		t.Fatalf("outsider send: got %v, want ErrNotMember", err)
	}
	if _, err := f.svc.GetRoom(ctx, room.ID, eve); !errors.Is(err, service.ErrNotMember) {
		t.Fatalf("outsider read: got %v, want ErrNotMember", err)
	}
}

func TestMessageHistory(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Members: []string{bob}})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if _, err := f.svc.SendMessage(ctx, room.ID, alice, "hi bob"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.SendMessage(ctx, room.ID, bob, "hi alice"); err != nil {
		t.Fatalf("send: %v", err)
	}

	messages, err := f.svc.ListMessages(ctx, room.ID, bob, time.Now().Add(time.Minute), 50)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	for _, m := range messages {
		if m.SenderUsername == "" {
			t.Errorf("message %s is missing the sender username", m.ID)
		}
	}
}

// Inbound is the socket path; it must share persistence with the REST path.
func TestInboundPersistsMessage(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Members: []string{bob}})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if err := f.svc.Inbound(ctx, room.ID, alice, "over the wire"); err != nil {
		t.Fatalf("inbound: %v", err)
	}

	messages, err := f.svc.ListMessages(ctx, room.ID, alice, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "over the wire" {
		t.Fatalf("messages = %+v", messages)
	}

	ok, err := f.svc.CanJoin(ctx, room.ID, alice)
	if err != nil || !ok {
		t.Fatalf("member CanJoin = %v, %v", ok, err)
	}
	ok, err = f.svc.CanJoin(ctx, room.ID, "<nobody>")
	if err != nil || ok {
		t.Fatalf("outsider CanJoin = %v, %v", ok, err)
	}
}

func TestListRooms(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	ctx := context.Background()

	if _, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Members: []string{bob}}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := f.svc.CreateRoom(ctx, alice, &structs.CreateRoomRequest{Name: "crew", IsGroup: true, Members: []string{bob, carol}}); err != nil {
		t.Fatalf("create group: %v", err)
	}

	rooms, err := f.svc.ListRooms(ctx, carol, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Errorf("carol sees %d rooms, want 1", len(rooms))
	}

	rooms, err = f.svc.ListRooms(ctx, alice, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Errorf("alice sees %d rooms, want 2", len(rooms))
	}
}
