// Package handler provides account HTTP handlers.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/net/resp"
	"github.com/ncobase/ncore/paging"

	"github.com/sohan284/social-media-go/core/account/service"
	"github.com/sohan284/social-media-go/core/account/structs"
	"github.com/sohan284/social-media-go/core/auth/middleware"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) HandleSendOTP(c *gin.Context) {
	var req structs.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	if err := h.service.SendOTP(c.Request.Context(), req.Email); err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to send verification code"))
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "verification code sent"})
}

func (h *Handler) HandleVerifyOTP(c *gin.Context) {
	var req structs.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	if err := h.service.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			resp.Fail(c.Writer, resp.NotFound("user not found"))
		case errors.Is(err, service.ErrInvalidCode):
			resp.Fail(c.Writer, resp.BadRequest("invalid verification code"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to verify code"))
		}
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "email verified"})
}

func (h *Handler) HandleSetCredentials(c *gin.Context) {
	var req structs.SetCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	user, tokens, err := h.service.SetCredentials(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			resp.Fail(c.Writer, resp.NotFound("user not found"))
		case errors.Is(err, service.ErrEmailNotVerified):
			resp.Fail(c.Writer, resp.Forbidden("email not verified"))
		case errors.Is(err, service.ErrCredentialsSet):
			resp.Fail(c.Writer, resp.BadRequest("credentials already set"))
		case errors.Is(err, service.ErrUsernameTaken):
			resp.Fail(c.Writer, resp.BadRequest("username already taken"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to set credentials"))
		}
		return
	}

	resp.WithStatusCode(c.Writer, 201, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

func (h *Handler) HandleLogin(c *gin.Context) {
	var req structs.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), req.EmailOrUsername, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			resp.Fail(c.Writer, resp.UnAuthorized("invalid credentials"))
		case errors.Is(err, service.ErrEmailNotVerified):
			resp.Fail(c.Writer, resp.Forbidden("email not verified"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to log in"))
		}
		return
	}

	resp.Success(c.Writer, tokens)
}

func (h *Handler) HandleRefresh(c *gin.Context) {
	var req structs.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	tokens, err := h.service.RefreshToken(c.Request.Context(), req.Refresh)
	if err != nil {
		resp.Fail(c.Writer, resp.UnAuthorized("invalid or expired refresh token"))
		return
	}

	resp.Success(c.Writer, tokens)
}

func (h *Handler) HandleLogout(c *gin.Context) {
	var req structs.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.Refresh); err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to log out"))
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "logged out"})
}

func (h *Handler) HandleSendPasswordResetOTP(c *gin.Context) {
	var req structs.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	if err := h.service.SendPasswordResetOTP(c.Request.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			resp.Fail(c.Writer, resp.NotFound("user not found"))
		case errors.Is(err, service.ErrEmailNotVerified):
			resp.Fail(c.Writer, resp.Forbidden("email not verified"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to send reset code"))
		}
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "reset code sent"})
}

func (h *Handler) HandleVerifyPasswordResetOTP(c *gin.Context) {
	var req structs.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	if err := h.service.VerifyPasswordResetOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			resp.Fail(c.Writer, resp.NotFound("user not found"))
		case errors.Is(err, service.ErrInvalidCode):
			resp.Fail(c.Writer, resp.BadRequest("invalid reset code"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to verify reset code"))
		}
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "code valid"})
}

func (h *Handler) HandleResetPassword(c *gin.Context) {
	var req structs.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			resp.Fail(c.Writer, resp.NotFound("user not found"))
		case errors.Is(err, service.ErrInvalidCode):
			resp.Fail(c.Writer, resp.BadRequest("invalid reset code"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to reset password"))
		}
		return
	}

	resp.Success(c.Writer, map[string]any{"message": "password reset"})
}

func (h *Handler) HandleOAuthRegister(c *gin.Context) {
	var req structs.OAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	user, tokens, err := h.service.OAuthRegister(c.Request.Context(), req.Provider, req.AccessToken)
	if err != nil {
		resp.Fail(c.Writer, resp.UnAuthorized("provider token rejected"))
		return
	}

	resp.WithStatusCode(c.Writer, 201, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

func (h *Handler) HandleOAuthLogin(c *gin.Context) {
	var req structs.OAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	user, tokens, err := h.service.OAuthLogin(c.Request.Context(), req.Provider, req.AccessToken)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			resp.Fail(c.Writer, resp.NotFound("no account for this provider identity"))
			return
		}
		resp.Fail(c.Writer, resp.UnAuthorized("provider token rejected"))
		return
	}

	resp.Success(c.Writer, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

// HandleMe returns the authenticated user together with its profile.
func (h *Handler) HandleMe(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		resp.Fail(c.Writer, resp.NotFound("user not found"))
		return
	}
	profile, err := h.service.GetProfileByUserID(c.Request.Context(), userID)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to load profile"))
		return
	}

	resp.Success(c.Writer, map[string]any{
		"user":    user,
		"profile": profile,
	})
}

func (h *Handler) HandleGetProfile(c *gin.Context) {
	profileID := c.Param("profile_id")
	if profileID == "" {
		resp.Fail(c.Writer, resp.BadRequest("profile id is required"))
		return
	}

	profile, err := h.service.GetProfileByID(c.Request.Context(), profileID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			resp.Fail(c.Writer, resp.NotFound("profile not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to get profile"))
		return
	}

	resp.Success(c.Writer, profile)
}

func (h *Handler) HandleUpdateProfile(c *gin.Context) {
	profileID := c.Param("profile_id")
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), profileID, userID, &service.ProfileUpdate{
		DisplayName:   req.DisplayName,
		About:         req.About,
		SocialLink:    req.SocialLink,
		Avatar:        req.Avatar,
		CoverPhoto:    req.CoverPhoto,
		Subcategories: req.Subcategories,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			resp.Fail(c.Writer, resp.NotFound("profile not found"))
		case errors.Is(err, service.ErrNotProfileOwner):
			resp.Fail(c.Writer, resp.Forbidden("not the profile owner"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to update profile"))
		}
		return
	}

	resp.Success(c.Writer, profile)
}

func (h *Handler) HandleListProfiles(c *gin.Context) {
	params := PageParams(c)

	query := c.Query("search")
	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Profile, int, string, error) {
		before := CursorTime(cursor)
		var (
			profiles []*structs.Profile
			err      error
		)
		if query != "" {
			profiles, err = h.service.SearchProfiles(c.Request.Context(), query, before, limit)
		} else {
			profiles, err = h.service.ListProfiles(c.Request.Context(), before, limit)
		}
		if err != nil {
			return nil, 0, "", err
		}
		next := NextCursor(profiles, limit, func(p *structs.Profile) (string, time.Time) {
			return p.ID, p.CreatedAt
		})
		return profiles, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list profiles"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleListUsers(c *gin.Context) {
	params := PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.User, int, string, error) {
		users, err := h.service.ListUsers(c.Request.Context(), CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := NextCursor(users, limit, func(u *structs.User) (string, time.Time) {
			return u.ID, u.CreatedAt
		})
		return users, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list users"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleDeleteUser(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		resp.Fail(c.Writer, resp.BadRequest("user id is required"))
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			resp.Fail(c.Writer, resp.NotFound("user not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to delete user"))
		return
	}

	resp.WithStatusCode(c.Writer, 204)
}

// PageParams reads cursor and limit query parameters.
func PageParams(c *gin.Context) paging.Params {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return paging.Params{
		Cursor: c.Query("cursor"),
		Limit:  limit,
	}
}

// CursorTime decodes a cursor, falling back to now for the first page.
// Cursors carry "id:unixnano"; queries only need the timestamp.
func CursorTime(cursor string) time.Time {
	if cursor == "" {
		return time.Now().Add(time.Minute)
	}
	_, nanos, err := paging.DecodeCursor(cursor)
	if err != nil {
		return time.Now().Add(time.Minute)
	}
	return time.Unix(0, nanos)
}

// NextCursor builds the cursor for the page after items. List queries
// fetch one row beyond the page so Paginate can detect another page and
// trim the extra row; the cursor must point at the last row that stays
// on the page, never at the trimmed row, or that row is skipped.
func NextCursor[T any](items []T, fetched int, key func(T) (string, time.Time)) string {
	if len(items) < fetched || len(items) < 2 {
		return ""
	}
	id, t := key(items[len(items)-2])
	return paging.EncodeCursor(fmt.Sprintf("%s:%d", id, t.UnixNano()))
}
