package publisher

import (
	"context"
	"errors"
	"sync"

	mqttcommon "room-monitor/internal/mqtt"
)

// fakeTransport 仅用于单元测试（内存 MQTT 传输）
type fakeTransport struct {
	mu            sync.Mutex
	connected     bool
	connectErr    error
	publishErr    error
	onConnect     func()
	onLost        func(error)
	subscriptions map[string]byte
	handlers      map[string]mqttcommon.MessageHandler
	disconnected  bool

	published chan publishedMessage
}

type publishedMessage struct {
	topic   string
	qos     byte
	payload string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subscriptions: make(map[string]byte),
		handlers:      make(map[string]mqttcommon.MessageHandler),
		published:     make(chan publishedMessage, 64),
	}
}

func (f *fakeTransport) SetConnectionHandlers(onConnect func(), onLost func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = onConnect
	f.onLost = onLost
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	f.up()
	return nil
}

// up 模拟（重新）连接成功
func (f *fakeTransport) up() {
	f.mu.Lock()
	f.connected = true
	onConnect := f.onConnect
	f.mu.Unlock()
	if onConnect != nil {
		onConnect()
	}
}

// down 模拟连接断开
func (f *fakeTransport) down() {
	f.mu.Lock()
	f.connected = false
	onLost := f.onLost
	f.mu.Unlock()
	if onLost != nil {
		onLost(errors.New("connection reset"))
	}
}

func (f *fakeTransport) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[topic] = qos
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) (uint16, error) {
	f.mu.Lock()
	err := f.publishErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	f.published <- publishedMessage{topic: topic, qos: qos, payload: string(payload)}
	return 1, nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func (f *fakeTransport) deliver(topic string, payload []byte) error {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	if handler == nil {
		return errors.New("no subscription")
	}
	return handler(topic, payload)
}

func (f *fakeTransport) setPublishErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishErr = err
}
