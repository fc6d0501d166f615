package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"room-monitor/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTimeout 等待 broker 响应超时
var ErrTimeout = errors.New("mqtt operation timed out")

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// Client MQTT客户端封装（连接状态回调 + 带超时的发布/订阅）
type Client struct {
	client   mqtt.Client
	config   *config.MQTTConfig
	clientID string
	logger   *zap.Logger

	mu               sync.RWMutex
	onConnect        func()
	onConnectionLost func(error)
	subscriptions    map[string]subscription
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// NewClient 创建MQTT客户端（不连接）
// cfg.ClientID 为空时生成唯一的客户端ID
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) *Client {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}

	c := &Client{
		config:        cfg,
		clientID:      clientID,
		logger:        logger.With(zap.String("client_id", clientID)),
		subscriptions: make(map[string]subscription),
	}
	c.client = mqtt.NewClient(c.newClientOptions())
	return c
}

func (c *Client) newClientOptions() *mqtt.ClientOptions {
	cfg := c.config

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(c.clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	if cfg.ConnectRetryInterval > 0 {
		opts.SetConnectRetryInterval(cfg.ConnectRetryInterval)
	}
	if cfg.MaxReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(cfg.MaxReconnectInterval)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
		// CleanSession 下重连后需要重新订阅
		c.resubscribe()
		c.mu.RLock()
		onConnect := c.onConnect
		c.mu.RUnlock()
		if onConnect != nil {
			onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection closed, will auto-reconnect",
			zap.String("broker", cfg.Broker),
			zap.Error(err),
		)
		c.mu.RLock()
		onLost := c.onConnectionLost
		c.mu.RUnlock()
		if onLost != nil {
			onLost(err)
		}
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		c.logger.Info("MQTT reconnecting", zap.String("broker", cfg.Broker))
	})
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		c.logger.Debug("MQTT message received on unhandled topic",
			zap.String("topic", msg.Topic()),
			zap.Int("payload_size", len(msg.Payload())),
		)
	})

	return opts
}

// ClientID 客户端ID
func (c *Client) ClientID() string {
	return c.clientID
}

// SetConnectionHandlers 设置连接建立/断开回调
// 每次（重新）连接成功都会调用 onConnect
func (c *Client) SetConnectionHandlers(onConnect func(), onConnectionLost func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = onConnect
	c.onConnectionLost = onConnectionLost
}

// Connect 连接 broker；超时后客户端仍在后台重试
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to MQTT broker", zap.String("broker", c.config.Broker))

	if err := waitToken(ctx, c.client.Connect(), c.config.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Subscribe 订阅主题；未连接时记录下来，连接建立后自动订阅
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		c.logger.Debug("MQTT subscription deferred until connected", zap.String("topic", topic))
		return nil
	}
	return c.subscribe(topic, qos, handler)
}

func (c *Client) resubscribe() {
	c.mu.RLock()
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, sub := range c.subscriptions {
		subs[topic] = sub
	}
	c.mu.RUnlock()

	for topic, sub := range subs {
		if err := c.subscribe(topic, sub.qos, sub.handler); err != nil {
			c.logger.Error("Failed to resubscribe", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func (c *Client) subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断处理
			c.logger.Error("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if err := waitToken(context.Background(), token, c.config.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	fields := []zap.Field{zap.String("topic", topic), zap.Uint8("qos", qos)}
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		if granted, ok := st.Result()[topic]; ok {
			fields = append(fields, zap.Uint8("granted_qos", granted))
		}
	}
	c.logger.Info("MQTT subscription acknowledged", fields...)
	return nil
}

// Publish 发布消息，返回消息ID
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) (uint16, error) {
	token := c.client.Publish(topic, qos, retained, payload)
	if err := waitToken(ctx, token, c.config.PublishTimeout); err != nil {
		return 0, fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	var messageID uint16
	if pt, ok := token.(*mqtt.PublishToken); ok {
		messageID = pt.MessageID()
	}
	c.logger.Debug("MQTT publish acknowledged",
		zap.String("topic", topic),
		zap.Uint16("message_id", messageID),
		zap.Int("payload_size", len(payload)),
	)
	return messageID, nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subscriptions, topic)
	}
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}
	if err := waitToken(context.Background(), c.client.Unsubscribe(topics...), c.config.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// waitToken 等待 token 完成；timeout <= 0 时只受 ctx 约束
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-timer:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
