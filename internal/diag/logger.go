package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions: 日志器构造参数。
type LoggerOptions struct {
	// Level: 文件日志级别（debug|info|warn|error），默认 info。
	Level string
	// Dir: 轮转日志目录；为空则不写文件。
	Dir string
	// MaxBytes: 单个日志文件上限；<=0 取 10MiB。
	MaxBytes int64
	// Console: 人类可读输出目标；nil 取 stderr。
	Console io.Writer
	// Verbose: 控制台输出 debug 及以上；否则仅 warn 及以上。
	Verbose bool
}

// Logger: 基于 zap 的事件式结构化日志器。
// 每条事件带 comp/stage 与可选 code/file_id；corr_id 贯穿整次运行。
// 所有方法对 nil 接收者为 no-op。
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

// NewLogger 组装控制台 core 与（可选）轮转文件 JSON core。
func NewLogger(corrID string, opts LoggerOptions) *Logger {
	lvl := parseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLvl := zapcore.WarnLevel
	if opts.Verbose {
		consoleLvl = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), consoleLvl),
	}
	var sink *RotatingFile
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		sink = NewRotatingFile(dir, opts.MaxBytes)
		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.TimeKey = "ts"
		jsonCfg.EncodeTime = zapcore.RFC3339TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), sink, lvl))
	}
	z := zap.New(zapcore.NewTee(cores...))
	if corrID != "" {
		z = z.With(zap.String("corr_id", corrID))
	}
	return &Logger{z: z, sink: sink}
}

// NewWithCore 使用外部 core（测试中配合 zaptest/observer）。
func NewWithCore(core zapcore.Core) *Logger { return &Logger{z: zap.New(core)} }

// Nop 返回丢弃一切输出的日志器。
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func eventFields(comp, stage, code, fileID string, kv map[string]string) []zap.Field {
	fs := make([]zap.Field, 0, 5)
	fs = append(fs, zap.String("comp", comp), zap.String("stage", stage))
	if code != "" {
		fs = append(fs, zap.String("code", code))
	}
	if fileID != "" {
		fs = append(fs, zap.String("file_id", fileID))
	}
	if len(kv) > 0 {
		fs = append(fs, zap.Any("kv", kv))
	}
	return fs
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "")
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	if l == nil {
		return nil
	}
	l.z.Info(msg, eventFields(comp, "start", "", fileID, nil)...)
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// DebugEnabled 报告 debug 事件是否会被任一 core 接收；热路径据此跳过字段构造。
func (l *Logger) DebugEnabled() bool {
	return l != nil && l.z.Core().Enabled(zapcore.DebugLevel)
}

// Debug 输出调试事件（仅在 debug 级别生效）。
func (l *Logger) Debug(comp, msg, fileID string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Debug(msg, eventFields(comp, "progress", "", fileID, kv)...)
}

// Warn 记录可恢复的问题（文件被跳过、事件被丢弃等）。
func (l *Logger) Warn(comp, code, msg, fileID string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Warn(msg, eventFields(comp, "warn", code, fileID, kv)...)
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "")
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	if l == nil {
		return
	}
	fs := eventFields(comp, "error", code, fileID, nil)
	if durSince != nil {
		fs = append(fs, zap.Int64("dur_ms", time.Since(*durSince).Milliseconds()))
	}
	l.z.Error(msg, fs...)
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64, kv map[string]string) {
	if l == nil {
		return
	}
	fs := eventFields(comp, "finish", "", "", kv)
	fs = append(fs, zap.Int64("dur_ms", time.Since(start).Milliseconds()), zap.Int64("count", count))
	l.z.Info(msg, fs...)
}

// Sync 刷新缓冲。控制台为 stderr 时 Sync 可能返回 EINVAL，调用方忽略即可。
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}

// Close 刷新并关闭文件 sink。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish；可选 count（例如提交的事件数）。
func (t *Timer) Finish(msg string, count int64) {
	t.FinishKV(msg, count, nil)
}

// FinishKV 记录带键值的 finish。
func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	fs := eventFields(t.comp, "finish", "", t.fileID, kv)
	fs = append(fs, zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()), zap.Int64("count", count))
	t.l.z.Info(msg, fs...)
}
