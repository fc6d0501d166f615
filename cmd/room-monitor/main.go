package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"room-monitor/internal/config"
	"room-monitor/internal/logger"
	"room-monitor/internal/service"

	"go.uber.org/zap"
)

const (
	serviceName     = "room-monitor"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// 先注册退出信号，启动阶段阻塞时也能收到
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// 加载配置；失败时使用默认日志配置继续运行（降级）
	cfg, cfgErr := config.Load()
	level, format := "info", "json"
	if cfgErr == nil {
		level, format = cfg.Log.Level, cfg.Log.Format
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(level, format, serviceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitorService := startService(ctx, cfg, cfgErr, zapLogger)

	// 等待中断信号
	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	if monitorService != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := monitorService.Stop(stopCtx); err != nil {
			zapLogger.Error("Error during shutdown", zap.Error(err))
		}
		stopCancel()
	}
	cancel()

	zapLogger.Info("Service stopped")
}

// startService 创建并启动服务；任何失败只记录日志，返回 nil 表示降级运行
func startService(ctx context.Context, cfg *config.Config, cfgErr error, zapLogger *zap.Logger) *service.RoomMonitorService {
	if cfgErr != nil {
		zapLogger.Error("Failed to load config, running degraded", zap.Error(cfgErr))
		return nil
	}

	zapLogger.Info("Starting room-monitor service",
		zap.String("version", "1.0.0"),
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("mqtt_topic", cfg.MQTT.Topic),
		zap.String("signal_topic", cfg.MQTT.SignalTopic),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("db_enabled", cfg.Database.Enabled),
	)

	monitorService, err := service.NewRoomMonitorService(cfg, zapLogger)
	if err != nil {
		zapLogger.Error("Failed to create room monitor service, running degraded", zap.Error(err))
		return nil
	}

	// 启动失败时仍返回服务，退出时释放已建立的连接
	if err := monitorService.Start(ctx); err != nil {
		zapLogger.Error("Failed to start room monitor service, running degraded", zap.Error(err))
	}
	return monitorService
}
