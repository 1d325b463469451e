// Package handler provides notification HTTP handlers.
package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/net/resp"
	"github.com/ncobase/ncore/paging"

	accounthandler "github.com/sohan284/social-media-go/core/account/handler"
	"github.com/sohan284/social-media-go/core/auth/middleware"

	"github.com/sohan284/social-media-go/biz/notification/service"
	"github.com/sohan284/social-media-go/biz/notification/structs"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) HandleList(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	unreadOnly := c.Query("unread") == "true"
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Notification, int, string, error) {
		notifications, err := h.service.List(c.Request.Context(), userID, unreadOnly,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(notifications, limit, func(n *structs.Notification) (string, time.Time) {
			return n.ID, n.CreatedAt
		})
		return notifications, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list notifications"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleUnreadCount(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to count notifications"))
		return
	}

	resp.Success(c.Writer, map[string]any{"unread": count})
}

func (h *Handler) HandleMarkRead(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), c.Param("notification_id"), userID); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			resp.Fail(c.Writer, resp.NotFound("notification not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to mark notification read"))
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "marked read"})
}

func (h *Handler) HandleDelete(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("notification_id"), userID); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			resp.Fail(c.Writer, resp.NotFound("notification not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to delete notification"))
		return
	}

	resp.WithStatusCode(c.Writer, 204, nil)
}

func (h *Handler) HandleMarkAllRead(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	if err := h.service.MarkAllRead(c.Request.Context(), userID); err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to mark notifications read"))
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "all marked read"})
}
