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

	postrepo "github.com/sohan284/social-media-go/biz/post/data/repository"
	"github.com/sohan284/social-media-go/biz/post/moderation"
	"github.com/sohan284/social-media-go/biz/post/service"
	"github.com/sohan284/social-media-go/biz/post/structs"
	"github.com/sohan284/social-media-go/internal/conf"
)

type fixture struct {
	svc      *service.Service
	userRepo accountrepo.UserRepository
}

type denyAllQuota struct{}

func (denyAllQuota) CanCreatePost(ctx context.Context, userID string) (bool, error) {
	return false, nil
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

func newFixture(t *testing.T, checker *moderation.Checker, quota service.Quota) *fixture {
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
	postRepo, followRepo, err := postrepo.NewRepositories(db)
	if err != nil {
		t.Fatalf("init post repositories: %v", err)
	}

	if checker == nil {
		checker = moderation.NewCheckerFromWords(nil)
	}

	feed := conf.Feed{
		FollowedUnseenLimit:  20,
		FollowedSeenLimit:    10,
		TopEngagedLimit:      10,
		EngagementWindowDays: 7,
	}
	svc := service.NewService(postRepo, followRepo, checker, quota, nil, feed, testLogger(t))
	return &fixture{svc: svc, userRepo: userRepo}
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

func (f *fixture) post(t *testing.T, authorID, content string) *structs.Post {
	t.Helper()
	post, err := f.svc.CreatePost(context.Background(), authorID, &structs.CreatePostRequest{Content: content})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

func TestCreatePostModeration(t *testing.T) {
	checker := moderation.NewCheckerFromWords([]string{"spam"})
	f := newFixture(t, checker, nil)
	author := f.user(t, "author")

	clean := f.post(t, author, "hello world")
	if clean.Status != structs.StatusApproved {
		t.Errorf("clean post status = %q, want approved", clean.Status)
	}

	dirty := f.post(t, author, "buy my spam now")
	if dirty.Status != structs.StatusRejected {
		t.Errorf("flagged post status = %q, want rejected", dirty.Status)
	}

	// Rejected posts stay visible to their author.
	got, err := f.svc.GetPost(context.Background(), dirty.ID, author)
	if err != nil {
		t.Fatalf("author reads own rejected post: %v", err)
	}
	if got.Status != structs.StatusRejected {
		t.Errorf("status = %q", got.Status)
	}

	// But not to anyone else.
	other := f.user(t, "other")
	if _, err := f.svc.GetPost(context.Background(), dirty.ID, other); !errors.Is(err, service.ErrPostNotFound) {
		t.Fatalf("foreign read of rejected post: got %v, want ErrPostNotFound", err)
	}
}

func TestCreatePostQuota(t *testing.T) {
	f := newFixture(t, nil, denyAllQuota{})
	author := f.user(t, "capped")

	_, err := f.svc.CreatePost(context.Background(), author, &structs.CreatePostRequest{Content: "over the line"})
	if !errors.Is(err, service.ErrQuotaExceeded) {
		t.Fatalf("got %v, want ErrQuotaExceeded", err)
	}
}

func TestUpdatePostRemoderates(t *testing.T) {
	checker := moderation.NewCheckerFromWords([]string{"spam"})
	f := newFixture(t, checker, nil)
	author := f.user(t, "editor")

	post := f.post(t, author, "perfectly fine")
	content := "now with spam"
	updated, err := f.svc.UpdatePost(context.Background(), post.ID, author, &structs.UpdatePostRequest{Content: &content})
	if err != nil {
		t.Fatalf("update post: %v", err)
	}
	if updated.Status != structs.StatusRejected {
		t.Errorf("edited post status = %q, want rejected", updated.Status)
	}
}

func TestUpdatePostOwnership(t *testing.T) {
	f := newFixture(t, nil, nil)
	author := f.user(t, "owner")
	intruder := f.user(t, "intruder")

	post := f.post(t, author, "mine")
	content := "stolen"
	_, err := f.svc.UpdatePost(context.Background(), post.ID, intruder, &structs.UpdatePostRequest{Content: &content})
	if !errors.Is(err, service.ErrNotOwner) {
		t.Fatalf("got %v, want ErrNotOwner", err)
	}
}

func TestToggleLike(t *testing.T) {
	f := newFixture(t, nil, nil)
	author := f.user(t, "liked")
	fan := f.user(t, "fan")
	post := f.post(t, author, "like me")

	ctx := context.Background()
	liked, err := f.svc.ToggleLike(ctx, post.ID, fan)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if !liked {
		t.Error("first toggle should like")
	}

	got, _ := f.svc.GetPost(ctx, post.ID, fan)
	if got.LikesCount != 1 {
		t.Errorf("likes count = %d, want 1", got.LikesCount)
	}
	if !got.Liked {
		t.Error("viewer's like flag should be set")
	}

	liked, err = f.svc.ToggleLike(ctx, post.ID, fan)
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if liked {
		t.Error("second toggle should unlike")
	}
	got, _ = f.svc.GetPost(ctx, post.ID, fan)
	if got.LikesCount != 0 {
		t.Errorf("likes count after unlike = %d, want 0", got.LikesCount)
	}
}

func TestCommentsAndShares(t *testing.T) {
	f := newFixture(t, nil, nil)
	author := f.user(t, "poster")
	reader := f.user(t, "reader")
	post := f.post(t, author, "discuss")

	ctx := context.Background()
	comment, err := f.svc.AddComment(ctx, post.ID, reader, &structs.CreateCommentRequest{Content: "nice"})
	if err != nil {
		t.Fatalf("comment: %v", err)
	}

	if _, err := f.svc.SharePost(ctx, post.ID, reader, &structs.SharePostRequest{}); err != nil {
		t.Fatalf("share: %v", err)
	}

	got, _ := f.svc.GetPost(ctx, post.ID, reader)
	if got.CommentsCount != 1 || got.SharesCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", got.CommentsCount, got.SharesCount)
	}

	// The comment author can remove it, which rolls the counter back.
	if err := f.svc.DeleteComment(ctx, comment.ID, reader, false); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	got, _ = f.svc.GetPost(ctx, post.ID, reader)
	if got.CommentsCount != 0 {
		t.Errorf("comments count after delete = %d, want 0", got.CommentsCount)
	}
}

func TestCommentReplies(t *testing.T) {
	f := newFixture(t, nil, nil)
	author := f.user(t, "poster")
	reader := f.user(t, "reader")
	post := f.post(t, author, "discuss")
	ctx := context.Background()

	parent, err := f.svc.AddComment(ctx, post.ID, reader, &structs.CreateCommentRequest{Content: "first"})
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	reply, err := f.svc.AddComment(ctx, post.ID, author, &structs.CreateCommentRequest{
		Content: "thanks", ParentID: parent.ID,
	})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.ParentID != parent.ID {
		t.Errorf("reply parent = %q, want %q", reply.ParentID, parent.ID)
	}

	if _, err := f.svc.AddComment(ctx, post.ID, author, &structs.CreateCommentRequest{
		Content: "dangling", ParentID: "no-such-comment",
	}); !errors.Is(err, service.ErrCommentNotFound) {
		t.Fatalf("reply to missing parent: got %v, want ErrCommentNotFound", err)
	}

	// Deleting the parent takes the reply with it and resets the counter.
	if err := f.svc.DeleteComment(ctx, parent.ID, reader, false); err != nil {
		t.Fatalf("delete parent: %v", err)
	}
	got, err := f.svc.GetPost(ctx, post.ID, reader)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.CommentsCount != 0 {
		t.Errorf("comments count = %d, want 0", got.CommentsCount)
	}
	comments, err := f.svc.ListComments(ctx, post.ID, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("comments = %d, want 0", len(comments))
	}
}

func TestFollowToggleAndStats(t *testing.T) {
	f := newFixture(t, nil, nil)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ctx := context.Background()

	if _, err := f.svc.ToggleFollow(ctx, alice, alice); !errors.Is(err, service.ErrSelfFollow) {
		t.Fatalf("self follow: got %v, want ErrSelfFollow", err)
	}

	following, err := f.svc.ToggleFollow(ctx, alice, bob)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if !following {
		t.Error("first toggle should follow")
	}

	stats, err := f.svc.UserStats(ctx, bob, alice)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.FollowersCount != 1 || !stats.IsFollowing {
		t.Errorf("stats = %+v", stats)
	}

	following, _ = f.svc.ToggleFollow(ctx, alice, bob)
	if following {
		t.Error("second toggle should unfollow")
	}
}

func TestNewsFeedSections(t *testing.T) {
	f := newFixture(t, nil, nil)
	viewer := f.user(t, "viewer")
	followed := f.user(t, "followed")
	stranger := f.user(t, "stranger")
	ctx := context.Background()

	if _, err := f.svc.ToggleFollow(ctx, viewer, followed); err != nil {
		t.Fatalf("follow: %v", err)
	}

	seenPost := f.post(t, followed, "seen already")
	unseenPost := f.post(t, followed, "fresh")
	popular := f.post(t, stranger, "everyone loves this")
	own := f.post(t, viewer, "my own post")

	// Viewing marks the post seen.
	if _, err := f.svc.GetPost(ctx, seenPost.ID, viewer); err != nil {
		t.Fatalf("view post: %v", err)
	}
	// Engagement pushes the stranger's post into the trending section.
	if _, err := f.svc.ToggleLike(ctx, popular.ID, followed); err != nil {
		t.Fatalf("like: %v", err)
	}

	feed, err := f.svc.NewsFeed(ctx, viewer)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}

	index := make(map[string]int)
	for i, p := range feed {
		index[p.ID] = i
	}

	unseenIdx, ok := index[unseenPost.ID]
	if !ok {
		t.Fatal("unseen followed post missing from feed")
	}
	seenIdx, ok := index[seenPost.ID]
	if !ok {
		t.Fatal("seen followed post missing from feed")
	}
	popularIdx, ok := index[popular.ID]
	if !ok {
		t.Fatal("trending post missing from feed")
	}
	if unseenIdx > seenIdx {
		t.Error("unseen posts must come before seen posts")
	}
	if seenIdx > popularIdx {
		t.Error("followed posts must come before trending posts")
	}
	if _, ok := index[own.ID]; ok {
		t.Error("own posts must not appear in the feed")
	}
}

func TestModerationQueue(t *testing.T) {
	checker := moderation.NewCheckerFromWords([]string{"banned"})
	f := newFixture(t, checker, nil)
	author := f.user(t, "flagged")
	post := f.post(t, author, "banned content")

	ctx := context.Background()
	queue, err := f.svc.ListByStatus(ctx, structs.StatusRejected, time.Now().Add(time.Minute), 50)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != post.ID {
		t.Fatalf("queue = %+v", queue)
	}

	approved, err := f.svc.SetStatus(ctx, post.ID, structs.StatusApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != structs.StatusApproved {
		t.Errorf("status = %q", approved.Status)
	}
}
