package websocket

import (
	"errors"
	"sync/atomic"
	"time"

	"crew/internal/interfaces"
	"crew/internal/metrics"
	"crew/internal/model"
	"crew/pkg/config"
	"crew/pkg/logger"

	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("hub is closed")

// Hub 单进程推送，clients 只由 Run 所在的 goroutine 访问
type Hub struct {
	clients    map[interfaces.Client]struct{}
	broadcast  chan *model.HistoryEvent
	register   chan interfaces.Client
	unregister chan interfaces.Client
	quit       chan struct{}
	closed     atomic.Bool
	count      atomic.Int64

	retryCount    int
	retryInterval time.Duration
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	retryCount := cfg.MessageRetryCount
	if retryCount <= 0 {
		retryCount = 3
		logger.L.Warn("Invalid retryCount, using default", zap.Int("default", retryCount))
	}

	retryInterval := time.Duration(cfg.MessageRetryIntervalMs) * time.Millisecond
	if retryInterval <= 0 {
		retryInterval = 100 * time.Millisecond
		logger.L.Warn("Invalid retryInterval, using default", zap.Duration("default", retryInterval))
	}

	broadcastBufferSize := cfg.BroadcastBufferSize
	if broadcastBufferSize <= 0 {
		broadcastBufferSize = 256
		logger.L.Warn("Invalid BroadcastBufferSize, using default", zap.Int("default", broadcastBufferSize))
	}

	return &Hub{
		clients:       make(map[interfaces.Client]struct{}),
		broadcast:     make(chan *model.HistoryEvent, broadcastBufferSize),
		register:      make(chan interfaces.Client),
		unregister:    make(chan interfaces.Client),
		quit:          make(chan struct{}),
		retryCount:    retryCount,
		retryInterval: retryInterval,
	}
}

func (h *Hub) Register(client interfaces.Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.Close()
	}
}

func (h *Hub) Unregister(client interfaces.Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

func (h *Hub) ConnectedClients() int {
	return int(h.count.Load())
}

// PublishHistory 非阻塞入队，队列满时返回错误
func (h *Hub) PublishHistory(event *model.HistoryEvent) error {
	if h.closed.Load() {
		return ErrHubClosed
	}
	select {
	case h.broadcast <- event:
		logger.L.Debug("History event queued for broadcast", zap.String("eventID", event.ID))
		return nil
	default:
		logger.L.Warn("Hub broadcast channel full. Dropping history event.", zap.String("eventID", event.ID))
		return errors.New("hub broadcast channel is full")
	}
}

func (h *Hub) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		close(h.quit)
	}
	return nil
}

func (h *Hub) trySendMessage(client interfaces.Client, data []byte) {
	if err := client.QueueBytes(data); err == nil {
		return
	}
	for i := 0; i < h.retryCount; i++ {
		logger.L.Warn("Client send buffer full, retry attempt",
			zap.String("userID", client.GetUserID()),
			zap.Int("attempt", i+1))
		time.Sleep(h.retryInterval)
		if err := client.QueueBytes(data); err == nil {
			return
		}
	}
	// 所有重试失败 关闭连接
	logger.L.Error("Client send buffer still full after retries, closing connection",
		zap.String("userID", client.GetUserID()),
		zap.Int("attempts", h.retryCount))
	h.remove(client)
}

func (h *Hub) remove(client interfaces.Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
		h.count.Store(int64(len(h.clients)))
		metrics.SetFeedClients(len(h.clients))
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			metrics.SetFeedClients(len(h.clients))
			logger.L.Info("Client registered", zap.String("userID", client.GetUserID()))

		case client := <-h.unregister:
			h.remove(client)
			logger.L.Info("Client unregistered", zap.String("userID", client.GetUserID()))

		case event := <-h.broadcast:
			data, err := encodeEvent(event)
			if err != nil {
				logger.L.Error("Failed to marshal history event", zap.Error(err))
				continue
			}
			for client := range h.clients {
				if client.Matches(event) {
					h.trySendMessage(client, data)
				}
			}

		case <-h.quit:
			for client := range h.clients {
				h.remove(client)
			}
			logger.L.Info("Hub stopped")
			return
		}
	}
}
