package handlers

import (
	"net/http"
	"slices"

	"github.com/campuspulse/campuspulse/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// newUpgrader accepts browsers from the allowed origins and non-browser
// clients, which send no Origin header.
func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		},
	}
}

// WebSocket upgrades the request and serves the client until it
// disconnects. Rooms are joined over the socket itself.
func (h *Handler) WebSocket(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Warningf("websocket upgrade failed: %v", err)
		return
	}

	client := realtime.NewClient(conn, h.hub)
	logger.Debugf("websocket client %s connected from %s", client.ID, ctx.ClientIP())

	if err := client.Run(); err != nil {
		logger.Debugf("websocket client %s: %v", client.ID, err)
	}

	logger.Debugf("websocket client %s disconnected", client.ID)
}
