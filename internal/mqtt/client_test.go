package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"room-monitor/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeToken 实现 mqtt.Token
type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(complete bool, err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

func testConfig() *config.MQTTConfig {
	return &config.MQTTConfig{
		Broker:               "tcp://127.0.0.1:1",
		Username:             "monitor",
		Password:             "secret",
		Topic:                "/property",
		ConnectTimeout:       50 * time.Millisecond,
		ConnectRetryInterval: 3 * time.Second,
		MaxReconnectInterval: 45 * time.Second,
		PublishTimeout:       50 * time.Millisecond,
	}
}

func TestNewClient_GeneratesClientID(t *testing.T) {
	a := NewClient(testConfig(), zap.NewNop())
	b := NewClient(testConfig(), zap.NewNop())

	_, err := uuid.Parse(a.ClientID())
	require.NoError(t, err)
	assert.NotEqual(t, a.ClientID(), b.ClientID())
}

func TestNewClient_UsesConfiguredClientID(t *testing.T) {
	cfg := testConfig()
	cfg.ClientID = "room-monitor-lobby"

	c := NewClient(cfg, zap.NewNop())
	assert.Equal(t, "room-monitor-lobby", c.ClientID())
}

func TestNewClientOptions(t *testing.T) {
	c := NewClient(testConfig(), zap.NewNop())
	opts := c.newClientOptions()

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://127.0.0.1:1", opts.Servers[0].String())
	assert.Equal(t, c.ClientID(), opts.ClientID)
	assert.Equal(t, "monitor", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)
	assert.Equal(t, 3*time.Second, opts.ConnectRetryInterval)
	assert.Equal(t, 45*time.Second, opts.MaxReconnectInterval)
	assert.Equal(t, 50*time.Millisecond, opts.ConnectTimeout)
}

func TestClient_ConnectionHandlers(t *testing.T) {
	c := NewClient(testConfig(), zap.NewNop())

	var connected bool
	var lost error
	c.SetConnectionHandlers(func() { connected = true }, func(err error) { lost = err })

	opts := c.newClientOptions()
	opts.OnConnect(nil)
	opts.OnConnectionLost(nil, errors.New("eof"))

	assert.True(t, connected)
	assert.EqualError(t, lost, "eof")
}

func TestClient_PublishWhileDisconnected(t *testing.T) {
	c := NewClient(testConfig(), zap.NewNop())

	_, err := c.Publish(context.Background(), "/property", 2, false, []byte("Test"))
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
}

func TestWaitToken(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, waitToken(ctx, newFakeToken(true, nil), time.Second))

	err := waitToken(ctx, newFakeToken(true, errors.New("refused")), time.Second)
	assert.EqualError(t, err, "refused")

	err = waitToken(ctx, newFakeToken(false, nil), 10*time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = waitToken(cancelled, newFakeToken(false, nil), 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_SubscribeDeferredUntilConnected(t *testing.T) {
	c := NewClient(testConfig(), zap.NewNop())

	handler := func(topic string, payload []byte) error { return nil }
	require.NoError(t, c.Subscribe("/property", 2, handler))
	require.NoError(t, c.Subscribe("room-monitor/signals", 2, handler))

	c.mu.RLock()
	assert.Len(t, c.subscriptions, 2)
	assert.Equal(t, byte(2), c.subscriptions["/property"].qos)
	c.mu.RUnlock()

	require.NoError(t, c.Unsubscribe("/property"))

	c.mu.RLock()
	assert.Len(t, c.subscriptions, 1)
	_, ok := c.subscriptions["room-monitor/signals"]
	c.mu.RUnlock()
	assert.True(t, ok)
}
