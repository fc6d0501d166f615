package consumer

import (
	"context"
	"fmt"
	"time"

	"room-monitor/internal/config"
	mqttcommon "room-monitor/internal/mqtt"
	"room-monitor/internal/signal"

	"go.uber.org/zap"
)

// SignalQoS 信号主题订阅 QoS（exactly once）
const SignalQoS byte = 2

const submitTimeout = 5 * time.Second

// Subscriber MQTT 订阅接口（由 internal/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// SignalSink 信号接收方
type SignalSink interface {
	Submit(ctx context.Context, sig signal.Signal) error
}

// SignalConsumer 信号总线消费者：订阅信号主题，解析 JSON 帧后交给 SignalSink
type SignalConsumer struct {
	config     *config.Config
	mqttClient Subscriber
	sink       SignalSink
	logger     *zap.Logger
}

// NewSignalConsumer 创建信号消费者
func NewSignalConsumer(
	cfg *config.Config,
	mqttClient Subscriber,
	sink SignalSink,
	logger *zap.Logger,
) *SignalConsumer {
	return &SignalConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		sink:       sink,
		logger:     logger,
	}
}

// Start 订阅信号主题
func (c *SignalConsumer) Start(ctx context.Context) error {
	topic := c.config.MQTT.SignalTopic
	if topic == "" {
		return fmt.Errorf("signal topic not configured")
	}

	if err := c.mqttClient.Subscribe(topic, SignalQoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to signal topic: %w", err)
	}

	c.logger.Info("Signal consumer started", zap.String("topic", topic))
	return nil
}

// Stop 取消订阅
func (c *SignalConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.MQTT.SignalTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Signal consumer stopped")
	return nil
}

// handleMessage 处理信号帧
func (c *SignalConsumer) handleMessage(topic string, payload []byte) error {
	sig, err := signal.Decode(payload)
	if err != nil {
		c.logger.Warn("Dropping undecodable signal frame",
			zap.String("topic", topic),
			zap.Int("payload_size", len(payload)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to decode signal: %w", err)
	}

	c.logger.Debug("Signal received", zap.Stringer("signal", sig))

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if err := c.sink.Submit(ctx, sig); err != nil {
		return fmt.Errorf("failed to submit signal %d: %w", sig.Number(), err)
	}
	return nil
}
