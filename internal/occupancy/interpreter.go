// Package occupancy 将信号流解释为房间占用状态更新
//
// 一次“事件过程”（episode）由一对数字量信号界定：
// Occupancy_Detected/Vacancy_Detected 的上升沿开启，下降沿提交。
// 期间的 Motion_Location 串行量信号为房间命名。
// 全系统同时只允许一个事件过程，新的上升沿丢弃未完成的旧过程。
package occupancy

import (
	"errors"
	"fmt"
	"time"

	"room-monitor/internal/models"
	"room-monitor/internal/signal"

	"go.uber.org/zap"
)

var (
	// ErrNoOpenEpisode 没有进行中的事件过程（命名或提交的目标不存在）
	ErrNoOpenEpisode = errors.New("no open episode")
	// ErrUnnamedRoom 提交时房间名为空
	ErrUnnamedRoom = errors.New("episode has no room name")
)

// State 解释器状态
type State int

const (
	StateIdle State = iota
	StateOccupiedEpisodeOpen
	StateVacantEpisodeOpen
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOccupiedEpisodeOpen:
		return "occupied_episode_open"
	case StateVacantEpisodeOpen:
		return "vacant_episode_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Action 单个信号产生的动作
type Action int

const (
	ActionIgnored Action = iota
	ActionOpened
	ActionNamed
	ActionCommitted
)

// Result 信号处理结果
type Result struct {
	Action Action
	// Room 仅在 ActionCommitted 时有效
	Room models.RoomState
	// Publish 提交后是否需要发布完整状态
	Publish bool
}

type episode struct {
	state State
	room  models.RoomState
}

// Interpreter 信号解释器（非并发安全，由调用方串行调用）
type Interpreter struct {
	property         *models.Property
	logger           *zap.Logger
	now              func() time.Time
	publishOnVacancy bool

	current *episode
}

// Option 解释器选项
type Option func(*Interpreter)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

// WithPublishOnVacancy 空置过程提交后也发布
func WithPublishOnVacancy(enabled bool) Option {
	return func(i *Interpreter) { i.publishOnVacancy = enabled }
}

// NewInterpreter 创建解释器
func NewInterpreter(property *models.Property, logger *zap.Logger, opts ...Option) *Interpreter {
	i := &Interpreter{
		property: property,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// State 当前状态
func (i *Interpreter) State() State {
	if i.current == nil {
		return StateIdle
	}
	return i.current.state
}

// Handle 处理一个信号
func (i *Interpreter) Handle(sig signal.Signal) (Result, error) {
	switch s := sig.(type) {
	case signal.Digital:
		return i.handleDigital(s)
	case signal.Serial:
		return i.handleSerial(s)
	case signal.Analog:
		i.logger.Debug("Analog signal observed", zap.Stringer("signal", s))
		return Result{Action: ActionIgnored}, nil
	default:
		i.logger.Debug("Unknown signal observed", zap.Any("signal", sig))
		return Result{Action: ActionIgnored}, nil
	}
}

func (i *Interpreter) handleDigital(s signal.Digital) (Result, error) {
	switch s.ID {
	case signal.OccupancyDetected:
		if s.Value {
			// 开始接收占用信息
			return i.open(StateOccupiedEpisodeOpen, models.NewOccupiedRoom(i.now())), nil
		}
		// 占用信息接收完毕，提交并发布
		return i.commit(true)

	case signal.VacancyDetected:
		if s.Value {
			return i.open(StateVacantEpisodeOpen, models.NewVacantRoom()), nil
		}
		// 空置路径默认不发布
		return i.commit(i.publishOnVacancy)

	default:
		i.logger.Debug("Digital signal observed", zap.Stringer("signal", s))
		return Result{Action: ActionIgnored}, nil
	}
}

func (i *Interpreter) handleSerial(s signal.Serial) (Result, error) {
	if s.ID != signal.MotionLocation {
		i.logger.Debug("Serial signal observed", zap.Stringer("signal", s))
		return Result{Action: ActionIgnored}, nil
	}

	if i.current == nil {
		return Result{Action: ActionIgnored}, fmt.Errorf("%w: motion location %q", ErrNoOpenEpisode, s.Value)
	}

	i.current.room.Name = s.Value
	return Result{Action: ActionNamed}, nil
}

func (i *Interpreter) open(state State, room models.RoomState) Result {
	if i.current != nil {
		i.logger.Warn("Discarding unfinished episode",
			zap.Stringer("state", i.current.state),
			zap.String("room", i.current.room.Name),
		)
	}
	i.current = &episode{state: state, room: room}
	return Result{Action: ActionOpened}
}

// commit 提交当前过程；无论成功与否都回到 Idle
func (i *Interpreter) commit(publish bool) (Result, error) {
	ep := i.current
	if ep == nil {
		return Result{Action: ActionIgnored}, fmt.Errorf("%w: nothing to commit", ErrNoOpenEpisode)
	}
	i.current = nil

	if ep.room.Name == "" {
		return Result{Action: ActionIgnored}, fmt.Errorf("%w (%s)", ErrUnnamedRoom, ep.state)
	}

	i.property.UpdateRoom(ep.room)
	return Result{Action: ActionCommitted, Room: ep.room, Publish: publish}, nil
}
