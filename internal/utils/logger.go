package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// MainLogFile 主日志文件名
	MainLogFile = "sitesnap.log"
	// ErrorLogFile 错误日志文件名
	ErrorLogFile = "sitesnap_error.log"
)

// Logger 全局日志器
var Logger = zerolog.Nop()

// LogConfig 日志配置
type LogConfig struct {
	Level      string // 日志级别: trace, debug, info, warn, error, fatal, panic
	LogDir     string // 日志目录
	MaxSize    int    // 单个日志文件最大大小(MB)
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩旧日志

	// ConsoleLevel 控制台最低级别, 为空时与Level相同
	// 显示进度条时设为warn, 避免日志打断进度条
	ConsoleLevel string
	NoConsole    bool
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// parseLevel 解析日志级别, 无效或为空时返回def
func parseLevel(s string, def zerolog.Level) zerolog.Level {
	if s == "" {
		return def
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return def
	}
	return level
}

// rotatingFile 创建带轮转的日志文件
func rotatingFile(config LogConfig, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, name),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// InitLogger 初始化日志系统
// 输出: 主日志文件(所有级别), 错误日志文件(error及以上), 彩色控制台(ConsoleLevel及以上, stderr)
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level := parseLevel(config.Level, zerolog.InfoLevel)
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{
		rotatingFile(config, MainLogFile),
		&FilteredWriter{Writer: rotatingFile(config, ErrorLogFile), MinLevel: zerolog.ErrorLevel},
	}
	if !config.NoConsole {
		writers = append(writers, &FilteredWriter{
			Writer:   zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
			MinLevel: parseLevel(config.ConsoleLevel, level),
		})
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Caller().
		Logger()

	// 设置全局logger
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")

	return nil
}

// FilteredWriter 过滤写入器,仅写入指定级别及以上的日志
// 需配合 zerolog.MultiLevelWriter 使用, 否则级别信息不可见
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 实现io.Writer接口, 无级别信息时丢弃
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// WriteLevel 实现zerolog.LevelWriter接口
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel && level != zerolog.NoLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

// JobLogger 返回带任务ID字段的子日志器
func JobLogger(jobID string) zerolog.Logger {
	return Logger.With().Str("job", jobID).Logger()
}

// Info 快捷方法: 信息日志
func Info(msg string) {
	Logger.Info().Msg(msg)
}

// Infof 快捷方法: 格式化信息日志
func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

// Error 快捷方法: 错误日志
func Error(err error, msg string) {
	Logger.Error().Err(err).Msg(msg)
}

// Errorf 快捷方法: 格式化错误日志
func Errorf(format string, args ...interface{}) {
	Logger.Error().Msgf(format, args...)
}

// Warn 快捷方法: 警告日志
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

// Warnf 快捷方法: 格式化警告日志
func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}

// Debug 快捷方法: 调试日志
func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

// Debugf 快捷方法: 格式化调试日志
func Debugf(format string, args ...interface{}) {
	Logger.Debug().Msgf(format, args...)
}

// Fatal 快捷方法: 致命错误日志(会导致程序退出)
func Fatal(err error, msg string) {
	Logger.Fatal().Err(err).Msg(msg)
}
