// Package dispatch 提供有界的异步工作队列
//
// 队列满时丢弃最旧的一项再写入新的（drop-oldest），
// 保证生产方（信号处理循环）永远不会被慢速的消费方阻塞。
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("queue closed")

// Queue 单消费者的有界队列
type Queue[T any] struct {
	name    string
	items   chan T
	handler func(item T)
	logger  *zap.Logger

	mu      sync.Mutex
	closed  bool
	started bool
	done    chan struct{}

	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// NewQueue 创建队列，size 小于 1 时按 1 处理
func NewQueue[T any](name string, size int, handler func(item T), logger *zap.Logger) *Queue[T] {
	if size < 1 {
		size = 1
	}
	return &Queue[T]{
		name:    name,
		items:   make(chan T, size),
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start 启动消费 goroutine，重复调用无效
func (q *Queue[T]) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	go q.run()
}

func (q *Queue[T]) run() {
	defer close(q.done)
	for item := range q.items {
		q.handle(item)
	}
}

func (q *Queue[T]) handle(item T) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Recovered from panic in queue handler",
				zap.String("queue", q.name),
				zap.Any("panic", r),
			)
		}
	}()
	q.handler(item)
}

// Push 非阻塞写入；队列满时丢弃最旧的元素
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.pushed.Add(1)

	for {
		select {
		case q.items <- item:
			return nil
		default:
		}

		select {
		case <-q.items:
			q.dropped.Add(1)
			q.logger.Warn("Queue full, dropped oldest item",
				zap.String("queue", q.name),
				zap.Int("capacity", cap(q.items)),
			)
		default:
		}
	}
}

// Close 停止接收新元素并等待剩余元素处理完毕（或 ctx 结束）
func (q *Queue[T]) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len 当前排队数量
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Pushed 累计写入次数
func (q *Queue[T]) Pushed() uint64 {
	return q.pushed.Load()
}

// Dropped 累计丢弃次数
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
