// Package handler provides community HTTP handlers.
package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/net/resp"
	"github.com/ncobase/ncore/paging"

	accounthandler "github.com/sohan284/social-media-go/core/account/handler"
	"github.com/sohan284/social-media-go/core/auth/middleware"

	"github.com/sohan284/social-media-go/biz/community/service"
	"github.com/sohan284/social-media-go/biz/community/structs"
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

	var req structs.CreateCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	community, err := h.service.Create(c.Request.Context(), userID, &req)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to create community"))
		return
	}

	resp.WithStatusCode(c.Writer, 201, community)
}

func (h *Handler) HandleListPopular(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	communities, err := h.service.ListPopular(c.Request.Context(), limit)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list communities"))
		return
	}
	resp.Success(c.Writer, communities)
}

func (h *Handler) HandleGet(c *gin.Context) {
	community, err := h.service.Get(c.Request.Context(), c.Param("community_id"))
	if err != nil {
		if errors.Is(err, service.ErrCommunityNotFound) {
			resp.Fail(c.Writer, resp.NotFound("community not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to get community"))
		return
	}
	resp.Success(c.Writer, community)
}

func (h *Handler) HandleGetBySlug(c *gin.Context) {
	community, err := h.service.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrCommunityNotFound) {
			resp.Fail(c.Writer, resp.NotFound("community not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to get community"))
		return
	}
	resp.Success(c.Writer, community)
}

func (h *Handler) HandleList(c *gin.Context) {
	query := c.Query("search")
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Community, int, string, error) {
		communities, err := h.service.List(c.Request.Context(), query,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(communities, limit, func(cm *structs.Community) (string, time.Time) {
			return cm.ID, cm.CreatedAt
		})
		return communities, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list communities"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleListMine(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Community, int, string, error) {
		communities, err := h.service.ListMine(c.Request.Context(), userID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(communities, limit, func(cm *structs.Community) (string, time.Time) {
			return cm.ID, cm.CreatedAt
		})
		return communities, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list communities"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleUpdate(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.UpdateCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	community, err := h.service.Update(c.Request.Context(), c.Param("community_id"), userID, &req)
	if err != nil {
		h.fail(c, err, "failed to update community")
		return
	}
	resp.Success(c.Writer, community)
}

func (h *Handler) HandleDelete(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	err := h.service.Delete(c.Request.Context(), c.Param("community_id"), userID, middleware.IsAdmin(c))
	if err != nil {
		h.fail(c, err, "failed to delete community")
		return
	}
	resp.WithStatusCode(c.Writer, 204)
}

func (h *Handler) HandleJoin(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	request, err := h.service.Join(c.Request.Context(), c.Param("community_id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCommunityNotFound):
			resp.Fail(c.Writer, resp.NotFound("community not found"))
		case errors.Is(err, service.ErrAlreadyMember):
			resp.Fail(c.Writer, resp.BadRequest("already a member"))
		case errors.Is(err, service.ErrAlreadyRequested):
			resp.Fail(c.Writer, resp.BadRequest("join request already pending"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to join community"))
		}
		return
	}

	if request != nil {
		resp.WithStatusCode(c.Writer, 202, map[string]any{
			"message": "join request pending approval",
			"request": request,
		})
		return
	}
	resp.Success(c.Writer, map[string]any{"message": "joined"})
}

func (h *Handler) HandleLeave(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	if err := h.service.Leave(c.Request.Context(), c.Param("community_id"), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotMember):
			resp.Fail(c.Writer, resp.BadRequest("not a member"))
		case errors.Is(err, service.ErrOwnerCannotLeave):
			resp.Fail(c.Writer, resp.BadRequest("owner cannot leave the community"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to leave community"))
		}
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "left"})
}

func (h *Handler) HandleListMembers(c *gin.Context) {
	communityID := c.Param("community_id")
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Member, int, string, error) {
		members, err := h.service.ListMembers(c.Request.Context(), communityID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(members, limit, func(m *structs.Member) (string, time.Time) {
			return m.UserID, m.JoinedAt
		})
		return members, 0, next, nil
	})
	if err != nil {
		if errors.Is(err, service.ErrCommunityNotFound) {
			resp.Fail(c.Writer, resp.NotFound("community not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to list members"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleChangeMemberRole(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	err := h.service.ChangeMemberRole(c.Request.Context(), c.Param("community_id"),
		userID, c.Param("user_id"), req.Role)
	if err != nil {
		h.fail(c, err, "failed to change member role")
		return
	}
	resp.Success(c.Writer, map[string]any{"message": "role updated"})
}

func (h *Handler) HandleRemoveMember(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	err := h.service.RemoveMember(c.Request.Context(), c.Param("community_id"),
		userID, c.Param("user_id"))
	if err != nil {
		h.fail(c, err, "failed to remove member")
		return
	}
	resp.WithStatusCode(c.Writer, 204)
}

func (h *Handler) HandleListJoinRequests(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}
	communityID := c.Param("community_id")
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.JoinRequest, int, string, error) {
		requests, err := h.service.ListJoinRequests(c.Request.Context(), communityID, userID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(requests, limit, func(r *structs.JoinRequest) (string, time.Time) {
			return r.ID, r.CreatedAt
		})
		return requests, 0, next, nil
	})
	if err != nil {
		h.fail(c, err, "failed to list join requests")
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleApproveRequest(c *gin.Context) {
	h.resolveRequest(c, true)
}

func (h *Handler) HandleRejectRequest(c *gin.Context) {
	h.resolveRequest(c, false)
}

func (h *Handler) resolveRequest(c *gin.Context, approve bool) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	request, err := h.service.ResolveJoinRequest(c.Request.Context(), c.Param("request_id"), userID, approve)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRequestNotFound):
			resp.Fail(c.Writer, resp.NotFound("join request not found"))
		case errors.Is(err, service.ErrForbidden):
			resp.Fail(c.Writer, resp.Forbidden("insufficient community role"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to resolve join request"))
		}
		return
	}

	resp.Success(c.Writer, request)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrCommunityNotFound):
		resp.Fail(c.Writer, resp.NotFound("community not found"))
	case errors.Is(err, service.ErrNotMember):
		resp.Fail(c.Writer, resp.NotFound("member not found"))
	case errors.Is(err, service.ErrForbidden):
		resp.Fail(c.Writer, resp.Forbidden("insufficient community role"))
	default:
		resp.Fail(c.Writer, resp.InternalServer(fallback))
	}
}
