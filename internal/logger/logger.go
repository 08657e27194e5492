// Package logger provides structured logging for the install service.
package logger

import (
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/obot-platform/shopinstall/internal/config"
)

// Logger wraps zap.Logger with service-specific methods.
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger
}

// New creates a new Logger from configuration.
func New(cfg config.LoggingConfig) (*Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var output zapcore.WriteSyncer
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, err
		}
		output = zapcore.AddSync(file)
	} else {
		output = zapcore.AddSync(os.Stdout)
	}

	return wrap(zap.New(zapcore.NewCore(encoder, output, level))), nil
}

// NewNop returns a Logger that discards everything. Used in tests.
func NewNop() *Logger {
	return wrap(zap.NewNop())
}

// FromZap wraps an existing zap.Logger.
func FromZap(z *zap.Logger) *Logger {
	return wrap(z)
}

func wrap(z *zap.Logger) *Logger {
	return &Logger{zap: z, sugar: z.Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	sugar := l.sugar.With(keysAndValues...)
	return &Logger{zap: sugar.Desugar(), sugar: sugar}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Fatal logs a message and exits the process.
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

// LogRequest logs a completed inbound HTTP request. The path must already
// have sensitive query values redacted.
func (l *Logger) LogRequest(r *http.Request, reqID, path string, status, bytes int, duration time.Duration) {
	l.sugar.Infow("request",
		"request_id", reqID,
		"method", r.Method,
		"host", r.Host,
		"path", path,
		"proto", r.Proto,
		"remote", r.RemoteAddr,
		"status", status,
		"bytes", bytes,
		"duration", duration,
	)
}

// LogUpstream logs an outbound call to the storefront platform.
func (l *Logger) LogUpstream(op, shop string, status int, duration time.Duration, err error) {
	if err != nil {
		l.sugar.Warnw("upstream",
			"op", op,
			"shop", shop,
			"status", status,
			"duration", duration,
			"error", err,
		)
		return
	}
	l.sugar.Infow("upstream",
		"op", op,
		"shop", shop,
		"status", status,
		"duration", duration,
	)
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.zap.Sync()
}
