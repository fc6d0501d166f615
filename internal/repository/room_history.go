package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"room-monitor/internal/models"

	"go.uber.org/zap"
)

const createRoomHistoryTable = `
	CREATE TABLE IF NOT EXISTS room_occupancy_events (
		id            BIGSERIAL PRIMARY KEY,
		room_name     TEXT        NOT NULL,
		is_occupied   BOOLEAN     NOT NULL,
		last_occupied TIMESTAMP   NULL,
		recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// RoomHistoryRepository 房间占用历史仓库
type RoomHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoomHistoryRepository 创建房间历史仓库
func NewRoomHistoryRepository(db *sql.DB, logger *zap.Logger) *RoomHistoryRepository {
	return &RoomHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *RoomHistoryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRoomHistoryTable); err != nil {
		return fmt.Errorf("failed to create room_occupancy_events: %w", err)
	}
	return nil
}

// Record 写入一条已提交的房间状态
func (r *RoomHistoryRepository) Record(ctx context.Context, room models.RoomState, recordedAt time.Time) error {
	query := `
		INSERT INTO room_occupancy_events (room_name, is_occupied, last_occupied, recorded_at)
		VALUES ($1, $2, $3, $4)
	`

	// 空置状态没有 lastOccupied，写 NULL
	var lastOccupied sql.NullTime
	if t := room.LastOccupied.Time(); !t.IsZero() {
		lastOccupied = sql.NullTime{Time: t, Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, query, room.Name, room.Occupied, lastOccupied, recordedAt); err != nil {
		return fmt.Errorf("failed to insert room event for %s: %w", room.Name, err)
	}

	r.logger.Debug("Recorded room event",
		zap.String("room", room.Name),
		zap.Bool("occupied", room.Occupied),
	)
	return nil
}
