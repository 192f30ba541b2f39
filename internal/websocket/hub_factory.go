package websocket

import (
	"errors"

	"crew/internal/interfaces"
	"crew/pkg/config"
	"crew/pkg/logger"

	"go.uber.org/zap"
)

// CreateHub 根据配置创建相应的Hub实现
func CreateHub(messaging config.MessagingConfig, ws config.WebSocketConfig) (interfaces.ConnectionManager, error) {
	logger.L.Info("Creating hub with messaging provider", zap.String("provider", messaging.Provider))

	switch messaging.Provider {
	case "", "channel":
		return NewHub(ws), nil
	case "kafka":
		return NewKafkaHub(messaging.Kafka)
	default:
		return nil, errors.New("unsupported messaging provider")
	}
}

// 启动Hub
func StartHub(hub interfaces.ConnectionManager) error {
	switch h := hub.(type) {
	case *Hub:
		go h.Run()
		return nil
	case *KafkaHub:
		h.StartConsumer()
		return nil
	default:
		return errors.New("unknown hub type")
	}
}
