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

	"github.com/sohan284/social-media-go/biz/community/data/repository"
	"github.com/sohan284/social-media-go/biz/community/service"
	"github.com/sohan284/social-media-go/biz/community/structs"
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
		t.Fatalf("init community repository: %v", err)
	}

	return &fixture{
		svc:      service.NewService(repo, nil, testLogger(t)),
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

func (f *fixture) community(t *testing.T, creatorID string, privacy structs.Privacy) *structs.Community {
	t.Helper()
	c, err := f.svc.Create(context.Background(), creatorID, &structs.CreateCommunityRequest{
		Name:    "Gophers " + uuid.New().String()[:8],
		Privacy: privacy,
	})
	if err != nil {
		t.Fatalf("create community: %v", err)
	}
	return c
}

func TestCreateCommunity(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")

	c := f.community(t, owner, structs.PrivacyPublic)
	if c.MembersCount != 1 {
		t.Errorf("members count = %d, want 1 (the owner)", c.MembersCount)
	}
	if c.Slug == "" {
		t.Error("expected a generated slug")
	}

	members, err := f.svc.ListMembers(context.Background(), c.ID, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].Role != structs.MemberRoleOwner {
		t.Fatalf("members = %+v", members)
	}
}

func TestGetBySlug(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	created := f.community(t, owner, structs.PrivacyPublic)

	got, err := f.svc.GetBySlug(context.Background(), created.Slug)
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("got community %s, want %s", got.ID, created.ID)
	}

	if _, err := f.svc.GetBySlug(context.Background(), "no-such-community"); !errors.Is(err, service.ErrCommunityNotFound) {
		t.Fatalf("unknown slug: got %v, want ErrCommunityNotFound", err)
	}
}

func TestJoinPublicCommunity(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	joiner := f.user(t, "joiner")
	c := f.community(t, owner, structs.PrivacyPublic)
	ctx := context.Background()

	request, err := f.svc.Join(ctx, c.ID, joiner)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if request != nil {
		t.Error("public join must not open a request")
	}

	got, _ := f.svc.Get(ctx, c.ID)
	if got.MembersCount != 2 {
		t.Errorf("members count = %d, want 2", got.MembersCount)
	}

	if _, err := f.svc.Join(ctx, c.ID, joiner); !errors.Is(err, service.ErrAlreadyMember) {
		t.Fatalf("double join: got %v, want ErrAlreadyMember", err)
	}
}

func TestJoinPrivateCommunity(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	applicant := f.user(t, "applicant")
	c := f.community(t, owner, structs.PrivacyPrivate)
	ctx := context.Background()

	request, err := f.svc.Join(ctx, c.ID, applicant)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if request == nil || request.Status != structs.RequestPending {
		t.Fatalf("request = %+v, want pending", request)
	}

	// Membership only lands after approval.
	got, _ := f.svc.Get(ctx, c.ID)
	if got.MembersCount != 1 {
		t.Errorf("members count = %d, want 1", got.MembersCount)
	}

	if _, err := f.svc.Join(ctx, c.ID, applicant); !errors.Is(err, service.ErrAlreadyRequested) {
		t.Fatalf("double request: got %v, want ErrAlreadyRequested", err)
	}

	resolved, err := f.svc.ResolveJoinRequest(ctx, request.ID, owner, true)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resolved.Status != structs.RequestApproved {
		t.Errorf("status = %q", resolved.Status)
	}

	got, _ = f.svc.Get(ctx, c.ID)
	if got.MembersCount != 2 {
		t.Errorf("members count after approval = %d, want 2", got.MembersCount)
	}
}

func TestResolveJoinRequestRequiresModerator(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	applicant := f.user(t, "applicant")
	outsider := f.user(t, "outsider")
	c := f.community(t, owner, structs.PrivacyPrivate)
	ctx := context.Background()

	request, err := f.svc.Join(ctx, c.ID, applicant)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := f.svc.ResolveJoinRequest(ctx, request.ID, outsider, true); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("outsider resolve: got %v, want ErrForbidden", err)
	}
}

func TestLeaveCommunity(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	member := f.user(t, "member")
	c := f.community(t, owner, structs.PrivacyPublic)
	ctx := context.Background()

	if _, err := f.svc.Join(ctx, c.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.svc.Leave(ctx, c.ID, member); err != nil {
		t.Fatalf("leave: %v", err)
	}

	got, _ := f.svc.Get(ctx, c.ID)
	if got.MembersCount != 1 {
		t.Errorf("members count after leave = %d, want 1", got.MembersCount)
	}

	if err := f.svc.Leave(ctx, c.ID, owner); !errors.Is(err, service.ErrOwnerCannotLeave) {
		t.Fatalf("owner leave: got %v, want ErrOwnerCannotLeave", err)
	}
}

func TestChangeMemberRole(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	member := f.user(t, "member")
	c := f.community(t, owner, structs.PrivacyPublic)
	ctx := context.Background()

	if _, err := f.svc.Join(ctx, c.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := f.svc.ChangeMemberRole(ctx, c.ID, owner, member, structs.MemberRoleModerator); err != nil {
		t.Fatalf("promote: %v", err)
	}

	// Moderators cannot hand out roles, only the owner can.
	other := f.user(t, "other")
	if _, err := f.svc.Join(ctx, c.ID, other); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.svc.ChangeMemberRole(ctx, c.ID, member, other, structs.MemberRoleModerator); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("moderator promote: got %v, want ErrForbidden", err)
	}
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	member := f.user(t, "member")
	c := f.community(t, owner, structs.PrivacyPublic)
	ctx := context.Background()

	if _, err := f.svc.Join(ctx, c.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	// A plain member cannot remove the owner.
	if err := f.svc.RemoveMember(ctx, c.ID, member, owner); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("member removes owner: got %v, want ErrForbidden", err)
	}

	if err := f.svc.RemoveMember(ctx, c.ID, owner, member); err != nil {
		t.Fatalf("owner removes member: %v", err)
	}
	got, _ := f.svc.Get(ctx, c.ID)
	if got.MembersCount != 1 {
		t.Errorf("members count = %d, want 1", got.MembersCount)
	}
}

func TestUpdateCommunityRequiresRole(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	member := f.user(t, "member")
	c := f.community(t, owner, structs.PrivacyPublic)
	ctx := context.Background()

	if _, err := f.svc.Join(ctx, c.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	name := "Renamed"
	if _, err := f.svc.Update(ctx, c.ID, member, &structs.UpdateCommunityRequest{Name: &name}); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("member update: got %v, want ErrForbidden", err)
	}
	updated, err := f.svc.Update(ctx, c.ID, owner, &structs.UpdateCommunityRequest{Name: &name})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("name = %q", updated.Name)
	}
}
