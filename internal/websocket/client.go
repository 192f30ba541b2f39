package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"crew/internal/interfaces"
	"crew/internal/model"
	"crew/pkg/config"
	"crew/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrSendBufferFull = errors.New("client send buffer is full")

const sendBufferSize = 256

type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	mu        sync.RWMutex
	sub       Subscription
	closeOnce sync.Once
	closed    bool
	manager   interfaces.ConnectionManager

	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
}

func NewClient(userID string, conn *websocket.Conn, sub Subscription, manager interfaces.ConnectionManager, cfg config.WebSocketConfig) *Client {
	writeWait := secondsOr(cfg.WriteWaitSeconds, 10*time.Second)
	pongWait := secondsOr(cfg.PongWaitSeconds, 60*time.Second)
	maxMessageSize := int64(cfg.MaxMessageSize)
	if maxMessageSize <= 0 {
		maxMessageSize = 512
	}

	return &Client{
		UserID:         userID,
		Conn:           conn,
		Send:           make(chan []byte, sendBufferSize),
		sub:            sub,
		manager:        manager,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     (pongWait * 9) / 10,
		maxMessageSize: maxMessageSize,
	}
}

func secondsOr(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}

func (c *Client) GetUserID() string {
	return c.UserID
}

func (c *Client) Matches(event *model.HistoryEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub.Matches(event)
}

func (c *Client) QueueBytes(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("client is closed")
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 关闭发送通道，WritePump 随后发送关闭帧
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.Send)
		c.mu.Unlock()
	})
}

// ReadPump 读取客户端发来的订阅变更，连接断开时注销
func (c *Client) ReadPump() {
	defer func() {
		c.manager.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		messageType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L.Warn("Unexpected websocket close", zap.String("userID", c.UserID), zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			logger.L.Debug("Ignoring non-text message", zap.String("userID", c.UserID), zap.Int("type", messageType))
			continue
		}

		var sub Subscription
		if err := json.Unmarshal(data, &sub); err != nil {
			logger.L.Warn("Invalid subscription message", zap.String("userID", c.UserID), zap.Error(err))
			continue
		}
		c.mu.Lock()
		c.sub = sub
		c.mu.Unlock()
		logger.L.Debug("Subscription updated",
			zap.String("userID", c.UserID),
			zap.String("groupID", sub.GroupID),
			zap.String("subjectUserID", sub.UserID))
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				// Send 通道已关闭
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.L.Debug("Failed to write message", zap.String("userID", c.UserID), zap.Error(err))
				return
			}

			n := len(c.Send)
			for i := 0; i < n; i++ {
				batch, ok := <-c.Send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, batch); err != nil {
					logger.L.Debug("Failed to write batched message", zap.String("userID", c.UserID), zap.Error(err))
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.L.Debug("Failed to send ping", zap.String("userID", c.UserID), zap.Error(err))
				return
			}
		}
	}
}
