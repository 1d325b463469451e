// Package middleware provides JWT middleware for the API.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/ncobase/ncore/logging/logger"
	"github.com/ncobase/ncore/net/resp"
	securityjwt "github.com/ncobase/ncore/security/jwt"
)

type Middleware struct {
	tokenManager *securityjwt.TokenManager
	logger       *logger.Logger
}

func NewMiddleware(tokenManager *securityjwt.TokenManager, log *logger.Logger) *Middleware {
	return &Middleware{
		tokenManager: tokenManager,
		logger:       log,
	}
}

// AuthMiddleware validates JWT tokens and adds user info to context.
func (m *Middleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			resp.Fail(c.Writer, resp.UnAuthorized("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			resp.Fail(c.Writer, resp.UnAuthorized("invalid authorization format"))
			c.Abort()
			return
		}

		claims, ok := m.decode(c, parts[1])
		if !ok {
			resp.Fail(c.Writer, resp.UnAuthorized("invalid or expired token"))
			c.Abort()
			return
		}

		userID := securityjwt.GetPayloadString(claims, "user_id")
		if userID == "" {
			userID = securityjwt.GetTokenID(claims)
		}
		if userID == "" {
			resp.Fail(c.Writer, resp.UnAuthorized("invalid token payload"))
			c.Abort()
			return
		}

		setIdentity(c, userID, claims)
		m.logger.Debug(c.Request.Context(), "User authenticated", "user_id", userID)
		c.Next()
	}
}

// OptionalAuth attempts to authenticate but doesn't require it.
func (m *Middleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}

		if claims, ok := m.decode(c, parts[1]); ok {
			userID := securityjwt.GetPayloadString(claims, "user_id")
			if userID == "" {
				userID = securityjwt.GetTokenID(claims)
			}
			if userID != "" {
				setIdentity(c, userID, claims)
			}
		}
		c.Next()
	}
}

// RequireRole ensures the user has one of the given roles.
func (m *Middleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("role")
		if !exists {
			resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
			c.Abort()
			return
		}

		roleStr, _ := userRole.(string)
		for _, required := range roles {
			if roleStr == required {
				c.Next()
				return
			}
		}

		m.logger.Warn(c.Request.Context(), "Access denied", "user_role", roleStr, "required_roles", roles)
		resp.Fail(c.Writer, resp.Forbidden("insufficient permissions"))
		c.Abort()
	}
}

// RequireAdmin ensures the user is an admin.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return m.RequireRole("admin")
}

// RequireModerator admits moderators and admins.
func (m *Middleware) RequireModerator() gin.HandlerFunc {
	return m.RequireRole("moderator", "admin")
}

// DecodeToken validates a raw token string. Used by the websocket
// endpoint, which carries the token as a query parameter.
func (m *Middleware) DecodeToken(token string) (jwtv5.MapClaims, bool) {
	tokenObj, err := m.tokenManager.ValidateToken(token)
	if err != nil {
		return nil, false
	}
	claims, ok := tokenObj.Claims.(jwtv5.MapClaims)
	if !ok || !securityjwt.IsAccessToken(claims) {
		return nil, false
	}
	return claims, true
}

func (m *Middleware) decode(c *gin.Context, token string) (jwtv5.MapClaims, bool) {
	tokenObj, err := m.tokenManager.ValidateToken(token)
	if err != nil {
		m.logger.Debug(c.Request.Context(), "Token validation failed", "error", err)
		return nil, false
	}
	claims, ok := tokenObj.Claims.(jwtv5.MapClaims)
	if !ok || !securityjwt.IsAccessToken(claims) {
		return nil, false
	}
	return claims, true
}

func setIdentity(c *gin.Context, userID string, claims jwtv5.MapClaims) {
	c.Set("user_id", userID)
	c.Set("username", securityjwt.GetPayloadString(claims, "username"))
	c.Set("email", securityjwt.GetPayloadString(claims, "email"))
	c.Set("role", securityjwt.GetPayloadString(claims, "role"))
}

// GetCurrentUserID gets the current user ID from context.
func GetCurrentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	userIDStr, ok := userID.(string)
	return userIDStr, ok
}

// GetCurrentRole gets the current user role from context.
func GetCurrentRole(c *gin.Context) (string, bool) {
	role, exists := c.Get("role")
	if !exists {
		return "", false
	}
	roleStr, ok := role.(string)
	return roleStr, ok
}

// IsAdmin checks if the current user is an admin.
func IsAdmin(c *gin.Context) bool {
	role, _ := GetCurrentRole(c)
	return role == "admin"
}
