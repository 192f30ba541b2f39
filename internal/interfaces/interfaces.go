package interfaces

import "crew/internal/model"

type Client interface {
	GetUserID() string
	// Matches 判断客户端是否订阅了该事件
	Matches(event *model.HistoryEvent) bool
	QueueBytes(data []byte) error
	Close()
}

// 实时历史记录推送
// websocket.Hub 和 websocket.KafkaHub 实现
type ConnectionManager interface {
	Register(client Client)
	Unregister(client Client)
	PublishHistory(event *model.HistoryEvent) error
	ConnectedClients() int
	Close() error
}
