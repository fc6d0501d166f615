package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置（房间历史记录，可选）
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置（快照缓存与事件流，可选）
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string // 为空时启动时生成唯一ID
	Username string
	Password string
	QoS      byte

	// Topic 固定的遥测主题（同时用于接收控制消息）
	Topic string
	// SignalTopic 传感器信号主题
	SignalTopic string

	ConnectTimeout       time.Duration
	ConnectRetryInterval time.Duration
	MaxReconnectInterval time.Duration
	PublishTimeout       time.Duration
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Config 房间监控服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 房间监控特定配置
	Monitor struct {
		SignalBuffer     int  // 信号接收通道容量
		PublishQueueSize int  // 遥测发布队列容量
		ArchiveQueueSize int  // 归档队列容量
		PublishOnVacancy bool // 空置事件结束时是否也发布（默认不发布）
		RestoreSnapshot  bool // 启动时从 Redis 恢复房间状态

		SnapshotKey string // Redis 快照键
		EventStream string // Redis 房间事件流
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	var err error

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://broker.hivemq.com:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "/264b17c7-3fde-46bc-b46f-8af76ee6d445")
	cfg.MQTT.SignalTopic = getEnv("SIGNAL_TOPIC", "room-monitor/signals")

	qos, err := getEnvInt("MQTT_QOS", 2)
	if err != nil {
		return nil, err
	}
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("invalid MQTT_QOS %d: must be 0, 1 or 2", qos)
	}
	cfg.MQTT.QoS = byte(qos)

	if cfg.MQTT.ConnectTimeout, err = getEnvDuration("MQTT_CONNECT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.MQTT.ConnectTimeout <= 0 {
		return nil, fmt.Errorf("invalid MQTT_CONNECT_TIMEOUT %s: must be positive", cfg.MQTT.ConnectTimeout)
	}
	if cfg.MQTT.ConnectRetryInterval, err = getEnvDuration("MQTT_CONNECT_RETRY_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.MQTT.MaxReconnectInterval, err = getEnvDuration("MQTT_MAX_RECONNECT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.MQTT.PublishTimeout, err = getEnvDuration("PUBLISH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", false)
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	if cfg.Database.Port, err = getEnvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "roommonitor")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 4
	cfg.Database.MaxIdle = 2

	if cfg.Monitor.SignalBuffer, err = getEnvInt("SIGNAL_BUFFER", 64); err != nil {
		return nil, err
	}
	if cfg.Monitor.PublishQueueSize, err = getEnvInt("PUBLISH_QUEUE_SIZE", 16); err != nil {
		return nil, err
	}
	if cfg.Monitor.ArchiveQueueSize, err = getEnvInt("ARCHIVE_QUEUE_SIZE", 128); err != nil {
		return nil, err
	}
	cfg.Monitor.PublishOnVacancy = getEnvBool("PUBLISH_ON_VACANCY", false)
	cfg.Monitor.RestoreSnapshot = getEnvBool("ROOM_RESTORE_SNAPSHOT", false)
	cfg.Monitor.SnapshotKey = getEnv("ROOM_SNAPSHOT_KEY", "room-monitor:property:snapshot")
	cfg.Monitor.EventStream = getEnv("ROOM_EVENT_STREAM", "room-monitor:room:stream")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
