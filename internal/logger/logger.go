package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// LogChan carries log entries to the dashboard.
	// Buffered so a slow TUI does not block request handling.
	LogChan = make(chan LogEntry, 100)

	mu     sync.RWMutex
	global = zap.NewNop()
)

type LogEntry struct {
	Level     string
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Options selects where logs go.
type Options struct {
	Level string
	// File receives JSON lines; empty disables the file sink.
	File string
	// TUI sends entries to LogChan instead of the console.
	TUI bool
}

// InitLogger builds the global logger.
func InitLogger(opts Options) error {
	level := ParseLevel(opts.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("mkdir log dir: %w", err)
		}
		file, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(file),
			level,
		))
	}

	if opts.TUI {
		cores = append(cores, NewTUICore(level))
	} else {
		consoleConfig := zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	Set(zap.New(zapcore.NewTee(cores...), zap.AddCaller()))
	return nil
}

// L returns the global logger. It is a no-op logger until InitLogger runs.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Set replaces the global logger. Tests use it to install an observer.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

// ParseLevel maps a config string to a zap level. Unknown values mean info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "all", "trace":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// TUICore is a zapcore that sends typed LogEntry values to LogChan.
type TUICore struct {
	zapcore.LevelEnabler
	fields []zapcore.Field
}

func NewTUICore(level zapcore.LevelEnabler) *TUICore {
	return &TUICore{LevelEnabler: level}
}

func (c *TUICore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &TUICore{LevelEnabler: c.LevelEnabler, fields: merged}
}

func (c *TUICore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *TUICore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	entry := LogEntry{
		Level:     ent.Level.CapitalString(),
		Message:   ent.Message,
		Timestamp: ent.Time,
		Fields:    enc.Fields,
	}
	select {
	case LogChan <- entry:
	default:
		// dashboard is behind; drop rather than stall the caller
	}
	return nil
}

func (c *TUICore) Sync() error {
	return nil
}
