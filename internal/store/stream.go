package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"room-monitor/internal/models"

	"github.com/go-redis/redis/v8"
)

// roomEvent 房间事件流消息
type roomEvent struct {
	Room       models.RoomState `json:"room"`
	RecordedAt int64            `json:"recorded_at"`
}

// RoomEventStream 已提交房间状态的 Redis Streams 镜像
type RoomEventStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRoomEventStream 创建事件流；maxLen > 0 时近似裁剪到该长度
func NewRoomEventStream(client *redis.Client, stream string, maxLen int64) *RoomEventStream {
	return &RoomEventStream{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Append 追加一条房间事件，返回消息ID
func (s *RoomEventStream) Append(ctx context.Context, room models.RoomState, recordedAt time.Time) (string, error) {
	jsonBytes, err := json.Marshal(roomEvent{Room: room, RecordedAt: recordedAt.Unix()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal room event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"room":      room.Name,
			"data":      string(jsonBytes),
			"timestamp": recordedAt.Unix(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to stream %s: %w", s.stream, err)
	}
	return id, nil
}
