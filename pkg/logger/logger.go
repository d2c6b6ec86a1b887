// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu         sync.Mutex
	configured bool
	logger     = zerolog.Nop()
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `mapstructure:"level" yaml:"level" json:"level"`
	Format     string `mapstructure:"format" yaml:"format" json:"format"` // json/console
	Output     string `mapstructure:"output" yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `mapstructure:"file_path" yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器，只有第一次显式调用生效
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if configured {
		return
	}
	setup(cfg)
	configured = true
}

func setup(cfg Config) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		if cfg.FilePath != "" {
			f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err == nil {
				output = f
			} else {
				output = os.Stdout
			}
		} else {
			output = os.Stdout
		}
	default:
		output = os.Stdout
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	logger = zerolog.New(output).With().Timestamp().Logger()
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
//
// 未显式初始化时临时使用默认配置，之后的 Init 仍然生效。
func Get() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !configured && logger.GetLevel() == zerolog.Disabled {
		setup(DefaultConfig())
	}
	return &logger
}

// ctxKey 上下文键类型
type ctxKey string

const (
	// RequestIDKey 请求ID上下文键
	RequestIDKey ctxKey = "request_id"
	// RunIDKey 求解运行ID上下文键
	RunIDKey ctxKey = "run_id"
)

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	// 添加运行ID
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		l = l.With().Str("run_id", runID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// PlannerLogger 选址/分区规划专用日志器
type PlannerLogger struct {
	base *zerolog.Logger
}

// NewPlannerLogger 创建规划日志器
func NewPlannerLogger() *PlannerLogger {
	l := Get().With().Str("component", "planner").Logger()
	return &PlannerLogger{base: &l}
}

// StartRun 记录一次求解运行开始
func (l *PlannerLogger) StartRun(runID, variant string, cities, facilities int) {
	l.base.Info().
		Str("run_id", runID).
		Str("variant", variant).
		Int("cities", cities).
		Int("facilities", facilities).
		Msg("开始建模")
}

// ModelBuilt 记录模型规模
func (l *PlannerLogger) ModelBuilt(runID string, variables, constraints int) {
	l.base.Debug().
		Str("run_id", runID).
		Int("variables", variables).
		Int("constraints", constraints).
		Msg("模型构建完成")
}

// SolverFinished 记录求解器返回状态
func (l *PlannerLogger) SolverFinished(runID, backend, status string, duration time.Duration) {
	l.base.Info().
		Str("run_id", runID).
		Str("backend", backend).
		Str("status", status).
		Dur("duration", duration).
		Msg("求解器返回")
}

// InvariantViolation 记录解的不变量违反
func (l *PlannerLogger) InvariantViolation(runID, invariant, details string) {
	l.base.Error().
		Str("run_id", runID).
		Str("invariant", invariant).
		Str("details", details).
		Msg("解不变量违反")
}

// RunComplete 记录运行完成
func (l *PlannerLogger) RunComplete(runID string, duration time.Duration, objective float64) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Float64("objective", objective).
		Msg("求解运行完成")
}

// RunFailed 记录运行失败
func (l *PlannerLogger) RunFailed(runID string, err error) {
	l.base.Warn().
		Str("run_id", runID).
		Err(err).
		Msg("求解运行失败")
}
