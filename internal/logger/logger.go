// Package logger 构建服务使用的 zap Logger
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger 按级别和格式创建 Logger
// format 为 "console" 时输出便于阅读的开发格式，其余情况输出 JSON 到 stdout
func NewLogger(level string, format string, serviceName string) (*zap.Logger, error) {
	cfg := productionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	var fields []zap.Field
	if serviceName != "" {
		fields = append(fields, zap.String("service_name", serviceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields = append(fields, zap.String("hostname", hostname))
	}
	return l.With(fields...), nil
}

func productionConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

// ParseLevel 解析日志级别（大小写不敏感），无法识别时使用 info
func ParseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
