// Package logging owns the process-wide zap logger.
package logging

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/msalah0e/trustmap/internal/config"
)

var (
	global atomic.Pointer[zap.Logger]
	once   sync.Once
)

// Init builds the global logger once. Console output goes to stderr so
// command output on stdout stays machine readable.
func Init(cfg config.LogConfig) *zap.Logger {
	return InitWith(cfg, zapcore.Lock(os.Stderr))
}

// InitWith is Init with an explicit console writer.
func InitWith(cfg config.LogConfig, console zapcore.WriteSyncer) *zap.Logger {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}

		cores := []zapcore.Core{zapcore.NewCore(encoder(cfg.Format), console, level)}
		if cfg.File != "" {
			file := zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
			})
			cores = append(cores, zapcore.NewCore(encoder("json"), file, level))
		}

		logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("trustmap")
		global.Store(logger)
		zap.ReplaceGlobals(logger)
	})
	return L()
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeCaller = nil
	ec.EncodeName = zapcore.FullNameEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// L returns the global logger, or a no-op logger before Init.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func Sync() {
	if l := global.Load(); l != nil {
		_ = l.Sync()
	}
}

// ResetForTest clears the global logger so Init can run again.
func ResetForTest() {
	global.Store(nil)
	once = sync.Once{}
}
