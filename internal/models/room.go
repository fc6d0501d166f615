package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout 遥测时间格式（ISO-8601，秒精度，不带时区）
const TimestampLayout = "2006-01-02T15:04:05"

// Timestamp 按 TimestampLayout 编解码的本地时间
type Timestamp time.Time

// MarshalJSON 实现 json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(TimestampLayout))
}

// UnmarshalJSON 实现 json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*t = Timestamp(parsed)
	return nil
}

// Time 返回 time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// RoomState 房间占用状态
// 提交到 Property 后不再修改，新的更新整体替换
type RoomState struct {
	Name         string    `json:"Name"`
	Occupied     bool      `json:"isOccupied"`
	LastOccupied Timestamp `json:"lastOccupied"`
}

// NewOccupiedRoom 创建占用状态的房间，lastOccupied 记为 at
func NewOccupiedRoom(at time.Time) RoomState {
	return RoomState{
		Occupied:     true,
		LastOccupied: Timestamp(at),
	}
}

// NewVacantRoom 创建空置状态的房间
func NewVacantRoom() RoomState {
	return RoomState{}
}
