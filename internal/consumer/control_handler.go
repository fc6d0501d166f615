package consumer

import (
	"encoding/json"
	"errors"
	"fmt"

	"room-monitor/internal/models"

	"go.uber.org/zap"
)

// 控制请求类型
const (
	RequestPropertyStatus = "property_status"
	RequestRoomStatus     = "room_status"
)

// StatusPublisher 按需发布状态
type StatusPublisher interface {
	PublishPropertyStatus() error
	PublishRoomStatus(name string) error
}

type controlRequest struct {
	Request string `json:"request"`
	Room    string `json:"room,omitempty"`
}

// ControlHandler 遥测主题入站消息处理
// 主题上还会收到自己发布的快照和存活消息，这些只记录不处理
type ControlHandler struct {
	publisher StatusPublisher
	logger    *zap.Logger
}

// NewControlHandler 创建控制消息处理器
func NewControlHandler(publisher StatusPublisher, logger *zap.Logger) *ControlHandler {
	return &ControlHandler{
		publisher: publisher,
		logger:    logger,
	}
}

// Handle 实现 mqtt.MessageHandler
func (h *ControlHandler) Handle(topic string, payload []byte) error {
	var req controlRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Request == "" {
		h.logger.Debug("Message received",
			zap.String("topic", topic),
			zap.ByteString("payload", truncate(payload, 256)),
		)
		return nil
	}

	h.logger.Info("Control request received",
		zap.String("request", req.Request),
		zap.String("room", req.Room),
	)

	switch req.Request {
	case RequestPropertyStatus:
		return h.publisher.PublishPropertyStatus()

	case RequestRoomStatus:
		if req.Room == "" {
			return fmt.Errorf("room_status request without room")
		}
		err := h.publisher.PublishRoomStatus(req.Room)
		if errors.Is(err, models.ErrRoomNotFound) {
			// 已由发布方记录
			return nil
		}
		return err

	default:
		h.logger.Warn("Unknown control request", zap.String("request", req.Request))
		return nil
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
