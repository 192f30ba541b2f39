package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crew/internal/interfaces"
	"crew/internal/metrics"
	"crew/internal/model"
	"crew/pkg/config"
	"crew/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KafkaHub 多实例部署时通过Kafka分发历史记录，每个实例消费全部事件并推送给本地客户端
type KafkaHub struct {
	clients    map[interfaces.Client]struct{}
	clientsMu  sync.RWMutex
	producer   sarama.SyncProducer
	consumer   sarama.ConsumerGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once

	topic string
}

// 创建一个新的KafkaHub
func NewKafkaHub(cfg config.KafkaConfig) (*KafkaHub, error) {
	kConfig := sarama.NewConfig()
	kConfig.Producer.RequiredAcks = sarama.WaitForAll
	kConfig.Producer.Return.Successes = true
	kConfig.Producer.Retry.Max = 3
	kConfig.Consumer.Return.Errors = true
	kConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kConfig.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka producer", zap.Error(err))
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}

	// 每个实例独立的消费者组，保证所有实例都收到每条事件
	groupID := fmt.Sprintf("%s-%s", cfg.ConsumerGroup, uuid.NewString()[:8])
	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka consumer group", zap.Error(err))
		producer.Close()
		return nil, fmt.Errorf("failed to start Kafka consumer group: %w", err)
	}

	return newKafkaHub(cfg.TopicPrefix, producer, consumer), nil
}

func newKafkaHub(topicPrefix string, producer sarama.SyncProducer, consumer sarama.ConsumerGroup) *KafkaHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaHub{
		clients:    make(map[interfaces.Client]struct{}),
		producer:   producer,
		consumer:   consumer,
		ctx:        ctx,
		cancelFunc: cancel,
		topic:      buildTopicName(topicPrefix, envelopeHistory),
	}
}

func buildTopicName(prefix, messageType string) string {
	return fmt.Sprintf("%s_%s", prefix, messageType)
}

func (h *KafkaHub) StartConsumer() {
	go h.consumeMessages()
}

func (h *KafkaHub) Close() error {
	h.closeOnce.Do(func() {
		h.cancelFunc()

		if err := h.producer.Close(); err != nil {
			logger.L.Error("Failed to close Kafka producer", zap.Error(err))
		}
		if h.consumer != nil {
			if err := h.consumer.Close(); err != nil {
				logger.L.Error("Failed to close Kafka consumer group", zap.Error(err))
			}
		}

		h.clientsMu.Lock()
		for client := range h.clients {
			client.Close()
			delete(h.clients, client)
		}
		h.clientsMu.Unlock()
	})
	return nil
}

func (h *KafkaHub) Register(client interfaces.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[client] = struct{}{}
	metrics.SetFeedClients(len(h.clients))
	logger.L.Info("Client registered with KafkaHub", zap.String("userID", client.GetUserID()))
}

func (h *KafkaHub) Unregister(client interfaces.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[client]; ok {
		client.Close()
		delete(h.clients, client)
		metrics.SetFeedClients(len(h.clients))
		logger.L.Info("Client unregistered from KafkaHub", zap.String("userID", client.GetUserID()))
	}
}

func (h *KafkaHub) ConnectedClients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// PublishHistory 发送到Kafka，按组ID分区保证同一组的事件有序
func (h *KafkaHub) PublishHistory(event *model.HistoryEvent) error {
	data, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal history event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: h.topic,
		Value: sarama.ByteEncoder(data),
	}
	if event.GroupID != nil {
		msg.Key = sarama.StringEncoder(*event.GroupID)
	}

	if _, _, err := h.producer.SendMessage(msg); err != nil {
		logger.L.Error("Failed to send history event to Kafka", zap.String("eventID", event.ID), zap.Error(err))
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	logger.L.Debug("History event sent to Kafka", zap.String("eventID", event.ID))
	return nil
}

func (h *KafkaHub) consumeMessages() {
	handler := &kafkaConsumerHandler{hub: h}
	topics := []string{h.topic}

	for {
		select {
		case <-h.ctx.Done():
			logger.L.Info("Stopping Kafka consumer")
			return
		default:
			if err := h.consumer.Consume(h.ctx, topics, handler); err != nil {
				logger.L.Error("Kafka consumer error", zap.Error(err))
				time.Sleep(5 * time.Second) // 失败时等待一段时间再重试
			}
		}
	}
}

// deliver 将Kafka中的事件推送给本地订阅的客户端
func (h *KafkaHub) deliver(data []byte) {
	event, err := decodeEvent(data)
	if err != nil {
		logger.L.Error("Failed to unmarshal history event", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	targets := make([]interfaces.Client, 0, len(h.clients))
	for client := range h.clients {
		if client.Matches(event) {
			targets = append(targets, client)
		}
	}
	h.clientsMu.RUnlock()

	for _, client := range targets {
		if err := client.QueueBytes(data); err != nil {
			logger.L.Warn("Failed to queue history event to client",
				zap.String("userID", client.GetUserID()), zap.Error(err))
		}
	}
}

type kafkaConsumerHandler struct {
	hub *KafkaHub
}

func (h *kafkaConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *kafkaConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *kafkaConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if message.Topic == h.hub.topic {
			h.hub.deliver(message.Value)
		}
		session.MarkMessage(message, "")
	}
	return nil
}
