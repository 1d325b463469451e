// Package handler provides chat REST handlers.
package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/net/resp"
	"github.com/ncobase/ncore/paging"

	accounthandler "github.com/sohan284/social-media-go/core/account/handler"
	"github.com/sohan284/social-media-go/core/auth/middleware"

	"github.com/sohan284/social-media-go/biz/chat/service"
	"github.com/sohan284/social-media-go/biz/chat/structs"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) HandleCreateRoom(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrBadDirectRoom) {
			resp.Fail(c.Writer, resp.BadRequest(err.Error()))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to create room"))
		return
	}

	resp.WithStatusCode(c.Writer, 201, room)
}

func (h *Handler) HandleGetRoom(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	room, err := h.service.GetRoom(c.Request.Context(), c.Param("room_id"), userID)
	if err != nil {
		h.fail(c, err, "failed to get room")
		return
	}
	resp.Success(c.Writer, room)
}

func (h *Handler) HandleListRooms(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Room, int, string, error) {
		rooms, err := h.service.ListRooms(c.Request.Context(), userID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(rooms, limit, func(r *structs.Room) (string, time.Time) {
			return r.ID, r.CreatedAt
		})
		return rooms, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list rooms"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleListMessages(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}
	roomID := c.Param("room_id")
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Message, int, string, error) {
		messages, err := h.service.ListMessages(c.Request.Context(), roomID, userID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(messages, limit, func(m *structs.Message) (string, time.Time) {
			return m.ID, m.CreatedAt
		})
		return messages, 0, next, nil
	})
	if err != nil {
		h.fail(c, err, "failed to list messages")
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleSendMessage(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), c.Param("room_id"), userID, req.Content)
	if err != nil {
		h.fail(c, err, "failed to send message")
		return
	}

	resp.WithStatusCode(c.Writer, 201, message)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		resp.Fail(c.Writer, resp.NotFound("room not found"))
	case errors.Is(err, service.ErrNotMember):
		resp.Fail(c.Writer, resp.Forbidden("not a room member"))
	default:
		resp.Fail(c.Writer, resp.InternalServer(fallback))
	}
}
