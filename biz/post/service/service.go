// Package service implements posts, reactions, follows and the feed.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/ncore/logging/logger"

	"github.com/sohan284/social-media-go/biz/post/data/repository"
	"github.com/sohan284/social-media-go/biz/post/moderation"
	"github.com/sohan284/social-media-go/biz/post/structs"
	"github.com/sohan284/social-media-go/internal/conf"
	"github.com/sohan284/social-media-go/internal/event"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotOwner        = errors.New("not the owner")
	ErrSelfFollow      = errors.New("cannot follow yourself")
	ErrQuotaExceeded   = errors.New("monthly post quota exceeded")
)

// Quota gates post creation. The marketplace module implements it from
// the author's subscription tier.
type Quota interface {
	CanCreatePost(ctx context.Context, userID string) (bool, error)
}

// UnlimitedQuota admits every post. Used when the marketplace is not wired.
type UnlimitedQuota struct{}

func (UnlimitedQuota) CanCreatePost(context.Context, string) (bool, error) { return true, nil }

type Service struct {
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
	checker    *moderation.Checker
	quota      Quota
	bus        *event.Bus
	feed       conf.Feed
	logger     *logger.Logger
}

func NewService(
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
	checker *moderation.Checker,
	quota Quota,
	bus *event.Bus,
	feed conf.Feed,
	log *logger.Logger,
) *Service {
	if quota == nil {
		quota = UnlimitedQuota{}
	}
	return &Service{
		postRepo:   postRepo,
		followRepo: followRepo,
		checker:    checker,
		quota:      quota,
		bus:        bus,
		feed:       feed,
		logger:     log,
	}
}

// CreatePost screens the content and stores the post. Posts that trip
// the wordlist are kept with a rejected status so the author can see why.
func (s *Service) CreatePost(ctx context.Context, authorID string, req *structs.CreatePostRequest) (*structs.Post, error) {
	ok, err := s.quota.CanCreatePost(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	now := time.Now()
	post := &structs.Post{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Content:   req.Content,
		Image:     req.Image,
		Status:    s.moderate(req.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Post created", "post_id", post.ID, "status", post.Status)
	return post, nil
}

// GetPost returns the post and, for an authenticated viewer, records the
// view. Unapproved posts are visible to their author only.
func (s *Service) GetPost(ctx context.Context, postID, viewerID string) (*structs.Post, error) {
	post, err := s.findVisible(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}

	if viewerID != "" && viewerID != post.AuthorID {
		if err := s.postRepo.RecordView(ctx, postID, viewerID); err != nil {
			s.logger.Warn(ctx, "Failed to record view", "post_id", postID, "error", err)
		}
	}
	if viewerID != "" {
		if post.Liked, err = s.postRepo.HasLiked(ctx, postID, viewerID); err != nil {
			return nil, err
		}
	}
	return post, nil
}

// UpdatePost edits an own post and re-screens the new content.
func (s *Service) UpdatePost(ctx context.Context, postID, callerID string, req *structs.UpdatePostRequest) (*structs.Post, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != callerID {
		return nil, ErrNotOwner
	}

	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.Image != nil {
		post.Image = *req.Image
	}
	post.Status = s.moderate(post.Content)

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, postID, callerID string, isAdmin bool) error {
	post, err := s.find(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != callerID && !isAdmin {
		return ErrNotOwner
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	s.logger.Info(ctx, "Post deleted", "post_id", postID, "by", callerID)
	return nil
}

// ListUserPosts shows approved posts, plus the rest to the owner.
func (s *Service) ListUserPosts(ctx context.Context, authorID, viewerID string, before time.Time, limit int) ([]*structs.Post, error) {
	posts, err := s.postRepo.ListByAuthor(ctx, authorID, before, limit)
	if err != nil {
		return nil, err
	}
	if viewerID == authorID {
		return posts, nil
	}

	visible := posts[:0]
	for _, post := range posts {
		if post.Status == structs.StatusApproved {
			visible = append(visible, post)
		}
	}
	return visible, nil
}

// ListByStatus is the moderation queue.
func (s *Service) ListByStatus(ctx context.Context, status structs.Status, before time.Time, limit int) ([]*structs.Post, error) {
	return s.postRepo.ListByStatus(ctx, status, before, limit)
}

// SetStatus lets a moderator override the screening verdict.
func (s *Service) SetStatus(ctx context.Context, postID string, status structs.Status) (*structs.Post, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.postRepo.SetStatus(ctx, postID, status); err != nil {
		return nil, err
	}
	post.Status = status
	s.logger.Info(ctx, "Post status changed", "post_id", postID, "status", status)
	return post, nil
}

// NewsFeed stitches three sections in priority order: unseen posts from
// followed authors, then seen ones, then recent high-engagement posts
// from everyone else. Duplicates collapse onto their first appearance.
func (s *Service) NewsFeed(ctx context.Context, viewerID string) ([]*structs.Post, error) {
	unseen, err := s.postRepo.ListFollowedUnseen(ctx, viewerID, s.feed.FollowedUnseenLimit)
	if err != nil {
		return nil, err
	}
	seen, err := s.postRepo.ListFollowedSeen(ctx, viewerID, s.feed.FollowedSeenLimit)
	if err != nil {
		return nil, err
	}
	since := time.Now().AddDate(0, 0, -s.feed.EngagementWindowDays)
	engaged, err := s.postRepo.ListTopEngaged(ctx, viewerID, since, s.feed.TopEngagedLimit)
	if err != nil {
		return nil, err
	}

	feed := make([]*structs.Post, 0, len(unseen)+len(seen)+len(engaged))
	picked := make(map[string]struct{})
	for _, section := range [][]*structs.Post{unseen, seen, engaged} {
		for _, post := range section {
			if _, dup := picked[post.ID]; dup {
				continue
			}
			picked[post.ID] = struct{}{}
			feed = append(feed, post)
		}
	}

	for _, post := range feed {
		if post.Liked, err = s.postRepo.HasLiked(ctx, post.ID, viewerID); err != nil {
			return nil, err
		}
	}
	return feed, nil
}

func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return false, err
	}

	liked, err := s.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return false, err
	}

	if liked {
		s.publish(ctx, &event.Event{
			Type:      event.TypePostLiked,
			ActorID:   userID,
			SubjectID: post.AuthorID,
			ObjectID:  postID,
		})
	}
	return liked, nil
}

func (s *Service) AddComment(ctx context.Context, postID, userID string, req *structs.CreateCommentRequest) (*structs.Comment, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}

	if req.ParentID != "" {
		parent, err := s.postRepo.FindCommentByID(ctx, req.ParentID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, ErrCommentNotFound
		}
	}

	comment := &structs.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		ParentID:  req.ParentID,
		UserID:    userID,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := s.postRepo.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	s.publish(ctx, &event.Event{
		Type:      event.TypePostCommented,
		ActorID:   userID,
		SubjectID: post.AuthorID,
		ObjectID:  postID,
		Payload:   map[string]any{"comment_id": comment.ID},
	})
	return comment, nil
}

func (s *Service) ListComments(ctx context.Context, postID string, before time.Time, limit int) ([]*structs.Comment, error) {
	if _, err := s.find(ctx, postID); err != nil {
		return nil, err
	}
	return s.postRepo.ListComments(ctx, postID, before, limit)
}

// DeleteComment admits the comment author, the post author and admins.
func (s *Service) DeleteComment(ctx context.Context, commentID, callerID string, isAdmin bool) error {
	comment, err := s.postRepo.FindCommentByID(ctx, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCommentNotFound
	}
	if err != nil {
		return err
	}

	if comment.UserID != callerID && !isAdmin {
		post, err := s.find(ctx, comment.PostID)
		if err != nil {
			return err
		}
		if post.AuthorID != callerID {
			return ErrNotOwner
		}
	}
	return s.postRepo.DeleteComment(ctx, comment)
}

func (s *Service) SharePost(ctx context.Context, postID, userID string, req *structs.SharePostRequest) (*structs.Share, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}

	share := &structs.Share{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    userID,
		Caption:   req.Caption,
		CreatedAt: time.Now(),
	}
	if err := s.postRepo.AddShare(ctx, share); err != nil {
		return nil, err
	}

	s.publish(ctx, &event.Event{
		Type:      event.TypePostShared,
		ActorID:   userID,
		SubjectID: post.AuthorID,
		ObjectID:  postID,
	})
	return share, nil
}

// ToggleFollow follows or unfollows. Returns true when following.
func (s *Service) ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, ErrSelfFollow
	}

	following, err := s.followRepo.Toggle(ctx, followerID, followeeID)
	if err != nil {
		return false, err
	}

	if following {
		s.publish(ctx, &event.Event{
			Type:      event.TypeUserFollowed,
			ActorID:   followerID,
			SubjectID: followeeID,
		})
	}
	return following, nil
}

func (s *Service) ListFollowers(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.FollowUser, error) {
	return s.followRepo.ListFollowers(ctx, userID, before, limit)
}

func (s *Service) ListFollowing(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.FollowUser, error) {
	return s.followRepo.ListFollowing(ctx, userID, before, limit)
}

// UserStats aggregates counters for a profile page.
func (s *Service) UserStats(ctx context.Context, userID, viewerID string) (*structs.UserStats, error) {
	stats := &structs.UserStats{UserID: userID}

	var err error
	if stats.PostsCount, err = s.postRepo.CountByAuthor(ctx, userID); err != nil {
		return nil, err
	}
	if stats.FollowersCount, err = s.followRepo.CountFollowers(ctx, userID); err != nil {
		return nil, err
	}
	if stats.FollowingCount, err = s.followRepo.CountFollowing(ctx, userID); err != nil {
		return nil, err
	}
	if viewerID != "" && viewerID != userID {
		if stats.IsFollowing, err = s.followRepo.IsFollowing(ctx, viewerID, userID); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *Service) moderate(content string) structs.Status {
	if s.checker != nil && !s.checker.Allowed(content) {
		return structs.StatusRejected
	}
	return structs.StatusApproved
}

func (s *Service) find(ctx context.Context, postID string) (*structs.Post, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return post, err
}

func (s *Service) findVisible(ctx context.Context, postID, viewerID string) (*structs.Post, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != structs.StatusApproved && post.AuthorID != viewerID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *Service) publish(ctx context.Context, evt *event.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Warn(ctx, "Failed to publish event", "type", evt.Type, "error", err)
	}
}
