// Package publisher 将房间状态快照发布到 MQTT 遥测主题
//
// 发布在独立的 goroutine 中进行，信号处理不会被网络延迟阻塞。
// 发送失败的最新快照在下次连接成功后补发一次；快照是全量状态，
// 重复投递对下游是幂等的。
package publisher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"room-monitor/internal/config"
	"room-monitor/internal/dispatch"
	mqttcommon "room-monitor/internal/mqtt"

	"go.uber.org/zap"
)

// LivenessMessage 每次连接成功后发送的存活消息
var LivenessMessage = []byte("Test")

// SubscribeQoS 控制主题订阅使用 exactly once
const SubscribeQoS byte = 2

const defaultPublishTimeout = 5 * time.Second

var errNotConnected = errors.New("telemetry transport not connected")

// Transport MQTT 传输层（由 internal/mqtt.Client 实现）
type Transport interface {
	SetConnectionHandlers(onConnect func(), onConnectionLost func(error))
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) (uint16, error)
	IsConnected() bool
	Disconnect()
}

type message struct {
	payload  []byte
	snapshot bool
}

// Stats 发布统计
type Stats struct {
	Connected bool
	Published uint64
	Failed    uint64
	Dropped   uint64
	Pending   bool
}

// Publisher 遥测发布器
type Publisher struct {
	config    *config.MQTTConfig
	transport Transport
	logger    *zap.Logger
	queue     *dispatch.Queue[message]

	mu      sync.Mutex
	control mqttcommon.MessageHandler
	pending []byte

	connected atomic.Bool
	published atomic.Uint64
	failed    atomic.Uint64
}

// NewPublisher 创建遥测发布器
func NewPublisher(cfg *config.MQTTConfig, queueSize int, transport Transport, logger *zap.Logger) *Publisher {
	p := &Publisher{
		config:    cfg,
		transport: transport,
		logger:    logger,
	}
	p.queue = dispatch.NewQueue("telemetry", queueSize, p.send, logger)
	return p
}

// SetControlHandler 设置遥测主题入站消息的处理函数（需在 Start 之前调用）
func (p *Publisher) SetControlHandler(handler mqttcommon.MessageHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.control = handler
}

// Start 启动发送 goroutine 并连接 broker
// 连接失败只记录日志，传输层会在后台继续重试
func (p *Publisher) Start(ctx context.Context) {
	p.transport.SetConnectionHandlers(p.onConnectionUp, p.onConnectionLost)
	p.queue.Start()

	// 控制消息使用同一个固定主题
	if err := p.transport.Subscribe(p.config.Topic, SubscribeQoS, p.handleInbound); err != nil {
		p.logger.Error("Failed to subscribe to telemetry topic",
			zap.String("topic", p.config.Topic),
			zap.Error(err),
		)
	}

	p.logger.Info("Starting telemetry publisher",
		zap.String("broker", p.config.Broker),
		zap.String("topic", p.config.Topic),
	)

	if err := p.transport.Connect(ctx); err != nil {
		p.logger.Warn("Telemetry transport not connected, will retry in background", zap.Error(err))
	}
}

// Publish 异步发布一个完整状态快照，发送失败时在重连后补发
func (p *Publisher) Publish(payload []byte) error {
	return p.queue.Push(message{payload: payload, snapshot: true})
}

// PublishRoom 异步发布单个房间的状态（按需回复），失败不补发
func (p *Publisher) PublishRoom(payload []byte) error {
	return p.queue.Push(message{payload: payload})
}

// Stop 处理完队列中剩余的消息（或 ctx 结束）后断开连接
func (p *Publisher) Stop(ctx context.Context) error {
	err := p.queue.Close(ctx)
	p.transport.Disconnect()
	p.connected.Store(false)

	stats := p.Stats()
	p.logger.Info("Telemetry publisher stopped",
		zap.Uint64("published", stats.Published),
		zap.Uint64("failed", stats.Failed),
		zap.Uint64("dropped", stats.Dropped),
	)
	return err
}

// Stats 返回发布统计
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	pending := p.pending != nil
	p.mu.Unlock()

	return Stats{
		Connected: p.connected.Load(),
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.queue.Dropped(),
		Pending:   pending,
	}
}

// onConnectionUp 每次（重新）连接成功：发送存活消息、补发失败的快照
func (p *Publisher) onConnectionUp() {
	p.connected.Store(true)

	if err := p.queue.Push(message{payload: LivenessMessage}); err != nil {
		p.logger.Debug("Liveness message not queued", zap.Error(err))
	}

	p.mu.Lock()
	pending := p.pending
	p.mu.Unlock()
	if pending != nil {
		p.logger.Info("Republishing last undelivered snapshot", zap.Int("payload_size", len(pending)))
		if err := p.queue.Push(message{payload: pending, snapshot: true}); err != nil {
			p.logger.Debug("Pending snapshot not queued", zap.Error(err))
		}
	}
}

func (p *Publisher) onConnectionLost(err error) {
	p.connected.Store(false)
	p.logger.Warn("Telemetry connection lost", zap.Error(err))
}

func (p *Publisher) handleInbound(topic string, payload []byte) error {
	p.logger.Debug("Telemetry message received",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	p.mu.Lock()
	control := p.control
	p.mu.Unlock()
	if control == nil {
		return nil
	}
	return control(topic, payload)
}

// send 在发送 goroutine 中执行
func (p *Publisher) send(msg message) {
	if !p.transport.IsConnected() {
		p.fail(msg, errNotConnected)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout())
	defer cancel()

	messageID, err := p.transport.Publish(ctx, p.config.Topic, p.config.QoS, false, msg.payload)
	if err != nil {
		p.fail(msg, err)
		return
	}

	p.published.Add(1)
	if msg.snapshot {
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
	}

	p.logger.Debug("Telemetry published",
		zap.String("topic", p.config.Topic),
		zap.Uint16("message_id", messageID),
		zap.Bool("snapshot", msg.snapshot),
	)
}

func (p *Publisher) fail(msg message, err error) {
	p.failed.Add(1)
	if msg.snapshot {
		p.mu.Lock()
		p.pending = msg.payload
		p.mu.Unlock()
	}
	p.logger.Warn("Failed to publish telemetry",
		zap.String("topic", p.config.Topic),
		zap.Bool("snapshot", msg.snapshot),
		zap.Error(err),
	)
}

func (p *Publisher) publishTimeout() time.Duration {
	if p.config.PublishTimeout > 0 {
		return p.config.PublishTimeout
	}
	return defaultPublishTimeout
}
