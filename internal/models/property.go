package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrRoomNotFound 房间不存在
var ErrRoomNotFound = errors.New("room not found")

// Property 物业（所有房间）状态，按房间名唯一
type Property struct {
	mu    sync.RWMutex
	rooms map[string]RoomState
}

// propertyWire 遥测线格式
type propertyWire struct {
	Rooms map[string]RoomState `json:"rooms"`
}

// NewProperty 创建空的物业状态
func NewProperty() *Property {
	return &Property{
		rooms: make(map[string]RoomState),
	}
}

// UpdateRoom 按房间名插入或替换
func (p *Property) UpdateRoom(room RoomState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms[room.Name] = room
}

// GetRoom 获取房间状态，不存在时返回 ErrRoomNotFound
func (p *Property) GetRoom(name string) (RoomState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	room, ok := p.rooms[name]
	if !ok {
		return RoomState{}, fmt.Errorf("%w: %s", ErrRoomNotFound, name)
	}
	return room, nil
}

// Len 房间数量
func (p *Property) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms)
}

// Snapshot 返回房间状态的副本
func (p *Property) Snapshot() map[string]RoomState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rooms := make(map[string]RoomState, len(p.rooms))
	for name, room := range p.rooms {
		rooms[name] = room
	}
	return rooms
}

// Serialize 序列化完整状态：{"rooms": {"<name>": {...}}}
// encoding/json 对 map 键排序，输出是确定的
func (p *Property) Serialize() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, err := json.Marshal(propertyWire{Rooms: p.rooms})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal property: %w", err)
	}
	return data, nil
}

// SerializeRoom 序列化单个房间，格式与 Serialize 相同
func SerializeRoom(room RoomState) ([]byte, error) {
	data, err := json.Marshal(propertyWire{Rooms: map[string]RoomState{room.Name: room}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room %s: %w", room.Name, err)
	}
	return data, nil
}

// Restore 用序列化数据替换当前所有房间状态，空房间名的条目被丢弃
func (p *Property) Restore(data []byte) error {
	rooms, err := DecodeProperty(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = make(map[string]RoomState, len(rooms))
	for name, room := range rooms {
		if name == "" || room.Name != name {
			continue
		}
		p.rooms[name] = room
	}
	return nil
}

// DecodeProperty 解析 Serialize 的输出
func DecodeProperty(data []byte) (map[string]RoomState, error) {
	var wire propertyWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal property: %w", err)
	}
	if wire.Rooms == nil {
		wire.Rooms = make(map[string]RoomState)
	}
	return wire.Rooms, nil
}
