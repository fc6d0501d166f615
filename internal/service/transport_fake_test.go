package service

import (
	"context"
	"errors"
	"sync"

	mqttcommon "room-monitor/internal/mqtt"
)

// fakeTransport 内存 MQTT 传输（Connect 立即成功）
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	onConnect func()
	handlers  map[string]mqttcommon.MessageHandler

	published chan publishedMessage
}

type publishedMessage struct {
	topic   string
	payload string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers:  make(map[string]mqttcommon.MessageHandler),
		published: make(chan publishedMessage, 64),
	}
}

func (f *fakeTransport) SetConnectionHandlers(onConnect func(), onLost func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = onConnect
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	onConnect := f.onConnect
	f.mu.Unlock()
	if onConnect != nil {
		onConnect()
	}
	return nil
}

func (f *fakeTransport) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.handlers, topic)
	}
	return nil
}

func (f *fakeTransport) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) (uint16, error) {
	f.published <- publishedMessage{topic: topic, payload: string(payload)}
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
