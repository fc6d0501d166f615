package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"room-monitor/internal/config"
	"room-monitor/internal/consumer"
	"room-monitor/internal/database"
	"room-monitor/internal/models"
	mqttcommon "room-monitor/internal/mqtt"
	"room-monitor/internal/occupancy"
	"room-monitor/internal/publisher"
	"room-monitor/internal/repository"
	"room-monitor/internal/signal"
	"room-monitor/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrServiceStopped 服务已停止，不再接收信号
var ErrServiceStopped = errors.New("room monitor service stopped")

const (
	connectTimeout = 5 * time.Second
	restoreTimeout = 5 * time.Second
	// 事件流近似保留的条数
	eventStreamMaxLen = 10000
)

// Transport 服务使用的 MQTT 传输层（由 internal/mqtt.Client 实现）
type Transport interface {
	publisher.Transport
	Unsubscribe(topics ...string) error
}

// Option 服务选项
type Option func(*RoomMonitorService)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *RoomMonitorService) { s.now = now }
}

// RoomMonitorService 房间监控服务
// 信号在单个 goroutine 中按到达顺序处理，发布和归档都在各自的队列中异步进行
type RoomMonitorService struct {
	config *config.Config
	logger *zap.Logger
	now    func() time.Time

	db        *sql.DB
	redis     *redis.Client
	transport Transport
	sinks     Sinks

	property    *models.Property
	interpreter *occupancy.Interpreter
	publisher   *publisher.Publisher
	archiver    *Archiver
	consumer    *consumer.SignalConsumer

	signals  chan signal.Signal
	quit     chan struct{}
	loopDone chan struct{}

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once
}

// NewRoomMonitorService 创建房间监控服务，按配置连接 Redis 和数据库
func NewRoomMonitorService(cfg *config.Config, logger *zap.Logger) (*RoomMonitorService, error) {
	var (
		db          *sql.DB
		redisClient *redis.Client
		sinks       Sinks
	)

	// 初始化Redis
	if cfg.Redis.Enabled {
		redisClient = store.NewRedisClient(&cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		err := store.Ping(ctx, redisClient)
		cancel()
		if err != nil {
			store.Close(redisClient)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		sinks.Snapshots = store.NewSnapshotStore(store.NewRedisKVStore(redisClient), cfg.Monitor.SnapshotKey)
		sinks.Events = store.NewRoomEventStream(redisClient, cfg.Monitor.EventStream, eventStreamMaxLen)
	}

	// 初始化数据库
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		var err error
		db, err = database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			if redisClient != nil {
				store.Close(redisClient)
			}
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		historyRepo := repository.NewRoomHistoryRepository(db, logger)
		if err := historyRepo.EnsureSchema(ctx); err != nil {
			database.Close(db)
			if redisClient != nil {
				store.Close(redisClient)
			}
			return nil, err
		}
		sinks.History = historyRepo
	}

	mqttClient := mqttcommon.NewClient(&cfg.MQTT, logger)

	s := newRoomMonitorService(cfg, mqttClient, sinks, logger)
	s.db = db
	s.redis = redisClient
	return s, nil
}

func newRoomMonitorService(cfg *config.Config, transport Transport, sinks Sinks, logger *zap.Logger, opts ...Option) *RoomMonitorService {
	s := &RoomMonitorService{
		config:    cfg,
		logger:    logger,
		now:       time.Now,
		transport: transport,
		sinks:     sinks,
		property:  models.NewProperty(),
		signals:   make(chan signal.Signal, max(cfg.Monitor.SignalBuffer, 1)),
		quit:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.interpreter = occupancy.NewInterpreter(s.property, logger,
		occupancy.WithClock(s.now),
		occupancy.WithPublishOnVacancy(cfg.Monitor.PublishOnVacancy),
	)
	s.publisher = publisher.NewPublisher(&cfg.MQTT, cfg.Monitor.PublishQueueSize, transport, logger)
	s.publisher.SetControlHandler(consumer.NewControlHandler(s, logger).Handle)
	s.archiver = NewArchiver(sinks, cfg.Monitor.ArchiveQueueSize, logger)
	s.consumer = consumer.NewSignalConsumer(cfg, transport, s, logger)
	return s
}

// Start 启动服务
func (s *RoomMonitorService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("room monitor service already started")
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("Starting room monitor service components")

	if s.config.Monitor.RestoreSnapshot {
		s.restoreSnapshot(ctx)
	}

	s.archiver.Start()
	go s.run(ctx)

	// 先订阅信号主题，连接建立后由传输层统一订阅
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start signal consumer: %w", err)
	}
	s.publisher.Start(ctx)

	s.logger.Info("Room monitor service started successfully",
		zap.Int("rooms", s.property.Len()),
		zap.Bool("publish_on_vacancy", s.config.Monitor.PublishOnVacancy),
	)
	return nil
}

// Stop 停止服务：先处理完已接收的信号，再清空发布和归档队列
func (s *RoomMonitorService) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		stopErr = s.stop(ctx)
	})
	return stopErr
}

func (s *RoomMonitorService) stop(ctx context.Context) error {
	s.logger.Info("Stopping room monitor service")

	s.mu.Lock()
	started := s.started
	s.stopped = true
	s.mu.Unlock()

	if started {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping signal consumer", zap.Error(err))
		}
	}

	close(s.quit)
	if started {
		select {
		case <-s.loopDone:
		case <-ctx.Done():
			s.logger.Warn("Timed out waiting for signal loop", zap.Error(ctx.Err()))
		}
	}

	var errs []error
	if err := s.publisher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if err := s.archiver.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("archiver: %w", err))
	}

	// 关闭Redis
	if s.redis != nil {
		store.Close(s.redis)
	}

	// 关闭数据库
	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Room monitor service stopped", zap.Int("rooms", s.property.Len()))
	return errors.Join(errs...)
}

// Submit 将信号放入处理通道，只在通道满时阻塞
func (s *RoomMonitorService) Submit(ctx context.Context, sig signal.Signal) error {
	select {
	case <-s.quit:
		return ErrServiceStopped
	default:
	}

	select {
	case s.signals <- sig:
		return nil
	case <-s.quit:
		return ErrServiceStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishPropertyStatus 发布完整状态
func (s *RoomMonitorService) PublishPropertyStatus() error {
	payload, err := s.property.Serialize()
	if err != nil {
		return err
	}
	return s.publisher.Publish(payload)
}

// PublishRoomStatus 发布单个房间状态
func (s *RoomMonitorService) PublishRoomStatus(name string) error {
	room, err := s.property.GetRoom(name)
	if err != nil {
		s.logger.Warn("Room status requested for unknown room", zap.String("room", name))
		return err
	}

	payload, err := models.SerializeRoom(room)
	if err != nil {
		return err
	}
	return s.publisher.PublishRoom(payload)
}

// Stats 发布统计
func (s *RoomMonitorService) Stats() publisher.Stats {
	return s.publisher.Stats()
}

// run 信号处理循环
func (s *RoomMonitorService) run(ctx context.Context) {
	defer close(s.loopDone)

	for {
		select {
		case sig := <-s.signals:
			s.handleSignal(sig)
		case <-s.quit:
			s.drain()
			return
		case <-ctx.Done():
			s.drain()
			return
		}
	}
}

// drain 处理通道中剩余的信号
func (s *RoomMonitorService) drain() {
	for {
		select {
		case sig := <-s.signals:
			s.handleSignal(sig)
		default:
			return
		}
	}
}

func (s *RoomMonitorService) handleSignal(sig signal.Signal) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from panic while handling signal",
				zap.Stringer("signal", sig),
				zap.Any("panic", r),
			)
		}
	}()

	result, err := s.interpreter.Handle(sig)
	if err != nil {
		s.logger.Warn("Dropping malformed episode update",
			zap.Uint32("signal_id", sig.Number()),
			zap.Stringer("signal", sig),
			zap.Stringer("state", s.interpreter.State()),
			zap.Error(err),
		)
		return
	}
	if result.Action != occupancy.ActionCommitted {
		return
	}

	room := result.Room
	s.logger.Info("Room state committed",
		zap.String("room", room.Name),
		zap.Bool("occupied", room.Occupied),
		zap.Uint32("signal_id", sig.Number()),
		zap.Bool("publish", result.Publish),
	)

	var snapshot []byte
	if result.Publish || s.sinks.Snapshots != nil {
		snapshot, err = s.property.Serialize()
		if err != nil {
			s.logger.Error("Failed to serialize property",
				zap.String("room", room.Name),
				zap.Error(err),
			)
			return
		}
	}

	if result.Publish {
		if err := s.publisher.Publish(snapshot); err != nil {
			s.logger.Warn("Failed to queue telemetry",
				zap.String("room", room.Name),
				zap.Error(err),
			)
		}
	}

	if err := s.archiver.Archive(room, snapshot, s.now()); err != nil {
		s.logger.Warn("Failed to queue room archive",
			zap.String("room", room.Name),
			zap.Error(err),
		)
	}
}

// restoreSnapshot 从 Redis 恢复上次的房间状态
func (s *RoomMonitorService) restoreSnapshot(ctx context.Context) {
	if s.sinks.Snapshots == nil {
		s.logger.Warn("Snapshot restore requested but redis is disabled")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	data, err := s.sinks.Snapshots.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			s.logger.Info("No property snapshot to restore")
			return
		}
		s.logger.Warn("Failed to load property snapshot", zap.Error(err))
		return
	}

	if err := s.property.Restore(data); err != nil {
		s.logger.Warn("Failed to restore property snapshot", zap.Error(err))
		return
	}
	s.logger.Info("Property snapshot restored", zap.Int("rooms", s.property.Len()))
}
