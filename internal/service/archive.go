package service

import (
	"context"
	"time"

	"room-monitor/internal/dispatch"
	"room-monitor/internal/models"

	"go.uber.org/zap"
)

const archiveTimeout = 5 * time.Second

// SnapshotStore 物业快照缓存（由 internal/store.SnapshotStore 实现）
type SnapshotStore interface {
	Save(ctx context.Context, payload []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// EventAppender 房间事件流（由 internal/store.RoomEventStream 实现）
type EventAppender interface {
	Append(ctx context.Context, room models.RoomState, recordedAt time.Time) (string, error)
}

// HistoryRecorder 房间历史（由 internal/repository.RoomHistoryRepository 实现）
type HistoryRecorder interface {
	Record(ctx context.Context, room models.RoomState, recordedAt time.Time) error
}

// Sinks 可选的归档目标，未启用的保持 nil
type Sinks struct {
	Snapshots SnapshotStore
	Events    EventAppender
	History   HistoryRecorder
}

func (s Sinks) empty() bool {
	return s.Snapshots == nil && s.Events == nil && s.History == nil
}

type archiveRecord struct {
	room       models.RoomState
	snapshot   []byte
	recordedAt time.Time
}

// Archiver 已提交房间状态的异步归档
type Archiver struct {
	sinks  Sinks
	logger *zap.Logger
	queue  *dispatch.Queue[archiveRecord]
}

// NewArchiver 创建归档器
func NewArchiver(sinks Sinks, queueSize int, logger *zap.Logger) *Archiver {
	a := &Archiver{
		sinks:  sinks,
		logger: logger,
	}
	a.queue = dispatch.NewQueue("archive", queueSize, a.write, logger)
	return a
}

// Start 启动归档 goroutine
func (a *Archiver) Start() {
	a.queue.Start()
}

// Archive 异步归档一次提交；snapshot 为提交后的完整状态
func (a *Archiver) Archive(room models.RoomState, snapshot []byte, recordedAt time.Time) error {
	if a.sinks.empty() {
		return nil
	}
	return a.queue.Push(archiveRecord{room: room, snapshot: snapshot, recordedAt: recordedAt})
}

// Close 等待剩余记录写完（或 ctx 结束）
func (a *Archiver) Close(ctx context.Context) error {
	return a.queue.Close(ctx)
}

// write 在归档 goroutine 中执行，单个目标失败不影响其他目标
func (a *Archiver) write(rec archiveRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if a.sinks.Snapshots != nil && rec.snapshot != nil {
		if err := a.sinks.Snapshots.Save(ctx, rec.snapshot); err != nil {
			a.logger.Warn("Failed to cache property snapshot", zap.Error(err))
		}
	}

	if a.sinks.Events != nil {
		id, err := a.sinks.Events.Append(ctx, rec.room, rec.recordedAt)
		if err != nil {
			a.logger.Warn("Failed to append room event",
				zap.String("room", rec.room.Name),
				zap.Error(err),
			)
		} else {
			a.logger.Debug("Room event appended",
				zap.String("room", rec.room.Name),
				zap.String("message_id", id),
			)
		}
	}

	if a.sinks.History != nil {
		if err := a.sinks.History.Record(ctx, rec.room, rec.recordedAt); err != nil {
			a.logger.Warn("Failed to record room history",
				zap.String("room", rec.room.Name),
				zap.Error(err),
			)
		}
	}
}
