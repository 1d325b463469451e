package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ncobase/ncore/logging/logger"
	"github.com/ncobase/ncore/net/resp"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TokenValidator resolves a raw access token to a user id.
type TokenValidator func(token string) (string, bool)

// Handler upgrades chat connections. Browsers cannot set headers on
// WebSocket requests, so the token rides in a query parameter.
type Handler struct {
	hub      *Hub
	validate TokenValidator
	logger   *logger.Logger
}

func NewHandler(hub *Hub, validate TokenValidator, log *logger.Logger) *Handler {
	return &Handler{
		hub:      hub,
		validate: validate,
		logger:   log,
	}
}

func (h *Handler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	userID, ok := h.validate(token)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("invalid or missing token"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to upgrade connection", "error", err)
		return
	}

	client := NewClient(h.hub, conn, userID, h.logger)
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) HandleStats(c *gin.Context) {
	resp.Success(c.Writer, h.hub.Stats())
}
