package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New 按级别和格式创建结构化日志
// format 为 "json" 时输出JSON，否则输出文本
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter 输出到指定 writer
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel 解析日志级别，无法识别时为 info
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component 为组件日志附加 component 字段
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// Discard 丢弃所有输出，测试用
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CronLogger 适配 robfig/cron 的 Logger 接口
type CronLogger struct {
	logger *slog.Logger
}

// NewCronLogger 创建 cron 日志适配器
func NewCronLogger(logger *slog.Logger) CronLogger {
	return CronLogger{logger: Component(logger, "cron")}
}

// Info 记录 cron 常规日志
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

// Error 记录 cron 错误
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(fmt.Sprintf("%s: %v", msg, err), keysAndValues...)
}
