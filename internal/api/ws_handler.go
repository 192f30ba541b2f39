package api

import (
	"net/http"

	"crew/internal/interfaces"
	internalws "crew/internal/websocket"
	"crew/pkg/config"
	"crew/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler 实时历史记录推送，?groupId= 和 ?userId= 为初始订阅条件
type WSHandler struct {
	hub interfaces.ConnectionManager
	cfg config.WebSocketConfig
}

func NewWSHandler(hub interfaces.ConnectionManager, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{hub: hub, cfg: cfg}
}

func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID, ok := actorFrom(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L.Error("Failed to upgrade WebSocket connection", zap.String("userID", userID), zap.Error(err))
		return
	}
	logger.L.Info("WebSocket connection upgraded", zap.String("userID", userID))

	sub := internalws.Subscription{GroupID: c.Query("groupId"), UserID: c.Query("userId")}
	client := internalws.NewClient(userID, conn, sub, h.hub, h.cfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
