// Package handler provides post HTTP handlers.
package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/net/resp"
	"github.com/ncobase/ncore/paging"

	accounthandler "github.com/sohan284/social-media-go/core/account/handler"
	"github.com/sohan284/social-media-go/core/auth/middleware"

	"github.com/sohan284/social-media-go/biz/post/service"
	"github.com/sohan284/social-media-go/biz/post/structs"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) HandleCreate(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	post, err := h.service.CreatePost(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			resp.Fail(c.Writer, resp.Forbidden("monthly post quota exceeded"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to create post"))
		return
	}

	resp.WithStatusCode(c.Writer, 201, post)
}

func (h *Handler) HandleGet(c *gin.Context) {
	viewerID, _ := middleware.GetCurrentUserID(c)

	post, err := h.service.GetPost(c.Request.Context(), c.Param("post_id"), viewerID)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			resp.Fail(c.Writer, resp.NotFound("post not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to get post"))
		return
	}

	resp.Success(c.Writer, post)
}

func (h *Handler) HandleUpdate(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	post, err := h.service.UpdatePost(c.Request.Context(), c.Param("post_id"), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			resp.Fail(c.Writer, resp.NotFound("post not found"))
		case errors.Is(err, service.ErrNotOwner):
			resp.Fail(c.Writer, resp.Forbidden("not the post owner"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to update post"))
		}
		return
	}

	resp.Success(c.Writer, post)
}

func (h *Handler) HandleDelete(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	err := h.service.DeletePost(c.Request.Context(), c.Param("post_id"), userID, middleware.IsAdmin(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			resp.Fail(c.Writer, resp.NotFound("post not found"))
		case errors.Is(err, service.ErrNotOwner):
			resp.Fail(c.Writer, resp.Forbidden("not the post owner"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to delete post"))
		}
		return
	}

	resp.WithStatusCode(c.Writer, 204)
}

func (h *Handler) HandleListUserPosts(c *gin.Context) {
	viewerID, _ := middleware.GetCurrentUserID(c)
	authorID := c.Param("user_id")
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Post, int, string, error) {
		posts, err := h.service.ListUserPosts(c.Request.Context(), authorID, viewerID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(posts, limit, func(p *structs.Post) (string, time.Time) {
			return p.ID, p.CreatedAt
		})
		return posts, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list posts"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleNewsFeed(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	feed, err := h.service.NewsFeed(c.Request.Context(), userID)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to build feed"))
		return
	}

	resp.Success(c.Writer, map[string]any{
		"posts": feed,
		"count": len(feed),
	})
}

func (h *Handler) HandleToggleLike(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	liked, err := h.service.ToggleLike(c.Request.Context(), c.Param("post_id"), userID)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			resp.Fail(c.Writer, resp.NotFound("post not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to toggle like"))
		return
	}

	resp.Success(c.Writer, map[string]any{"liked": liked})
}

func (h *Handler) HandleAddComment(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	comment, err := h.service.AddComment(c.Request.Context(), c.Param("post_id"), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			resp.Fail(c.Writer, resp.NotFound("post not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to add comment"))
		return
	}

	resp.WithStatusCode(c.Writer, 201, comment)
}

func (h *Handler) HandleListComments(c *gin.Context) {
	postID := c.Param("post_id")
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Comment, int, string, error) {
		comments, err := h.service.ListComments(c.Request.Context(), postID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(comments, limit, func(cm *structs.Comment) (string, time.Time) {
			return cm.ID, cm.CreatedAt
		})
		return comments, 0, next, nil
	})
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			resp.Fail(c.Writer, resp.NotFound("post not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to list comments"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleDeleteComment(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	err := h.service.DeleteComment(c.Request.Context(), c.Param("comment_id"), userID, middleware.IsAdmin(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCommentNotFound):
			resp.Fail(c.Writer, resp.NotFound("comment not found"))
		case errors.Is(err, service.ErrNotOwner):
			resp.Fail(c.Writer, resp.Forbidden("cannot delete this comment"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to delete comment"))
		}
		return
	}

	resp.WithStatusCode(c.Writer, 204)
}

func (h *Handler) HandleShare(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.SharePostRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	share, err := h.service.SharePost(c.Request.Context(), c.Param("post_id"), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			resp.Fail(c.Writer, resp.NotFound("post not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to share post"))
		return
	}

	resp.WithStatusCode(c.Writer, 201, share)
}

func (h *Handler) HandleToggleFollow(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	following, err := h.service.ToggleFollow(c.Request.Context(), userID, c.Param("user_id"))
	if err != nil {
		if errors.Is(err, service.ErrSelfFollow) {
			resp.Fail(c.Writer, resp.BadRequest("cannot follow yourself"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to toggle follow"))
		return
	}

	resp.Success(c.Writer, map[string]any{"following": following})
}

func (h *Handler) HandleListFollowers(c *gin.Context) {
	h.listFollows(c, h.service.ListFollowers)
}

func (h *Handler) HandleListFollowing(c *gin.Context) {
	h.listFollows(c, h.service.ListFollowing)
}

func (h *Handler) HandleUserStats(c *gin.Context) {
	viewerID, _ := middleware.GetCurrentUserID(c)

	stats, err := h.service.UserStats(c.Request.Context(), c.Param("user_id"), viewerID)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to load stats"))
		return
	}

	resp.Success(c.Writer, stats)
}

func (h *Handler) HandleModerationQueue(c *gin.Context) {
	status := structs.Status(c.DefaultQuery("status", string(structs.StatusPending)))
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Post, int, string, error) {
		posts, err := h.service.ListByStatus(c.Request.Context(), status,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(posts, limit, func(p *structs.Post) (string, time.Time) {
			return p.ID, p.CreatedAt
		})
		return posts, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list posts"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleApprove(c *gin.Context) {
	h.setStatus(c, structs.StatusApproved)
}

func (h *Handler) HandleReject(c *gin.Context) {
	h.setStatus(c, structs.StatusRejected)
}

func (h *Handler) setStatus(c *gin.Context, status structs.Status) {
	post, err := h.service.SetStatus(c.Request.Context(), c.Param("post_id"), status)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			resp.Fail(c.Writer, resp.NotFound("post not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to update post status"))
		return
	}
	resp.Success(c.Writer, post)
}

type listFollowsFunc func(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.FollowUser, error)

func (h *Handler) listFollows(c *gin.Context, list listFollowsFunc) {
	userID := c.Param("user_id")
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.FollowUser, int, string, error) {
		users, err := list(c.Request.Context(), userID, accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(users, limit, func(u *structs.FollowUser) (string, time.Time) {
			return u.UserID, u.FollowedAt
		})
		return users, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list follows"))
		return
	}

	resp.Success(c.Writer, result)
}
