package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.SugaredLogger to the Logger interface.
type ZapLogger struct {
	l *zap.SugaredLogger
}

func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{l: l.Sugar()}
}

func (z *ZapLogger) Info(ctx context.Context, msg string, args ...any) {
	z.l.Infow(msg, contextArgs(ctx, args)...)
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.l.Warnw(msg, contextArgs(ctx, args)...)
}

func (z *ZapLogger) Error(ctx context.Context, msg string, args ...any) {
	z.l.Errorw(msg, contextArgs(ctx, args)...)
}

func (z *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{l: z.l.With(args...)}
}

// Sync flushes buffered zap entries.
func (z *ZapLogger) Sync() error {
	return z.l.Sync()
}

// New builds a Logger for the given format writing to w.
// An empty format selects the slog JSON handler.
func New(format string, w io.Writer) (Logger, error) {
	switch format {
	case "", FormatJSON:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil))), nil
	case FormatZap, FormatZapDev:
		var cfg zapcore.EncoderConfig
		level := zapcore.InfoLevel
		if format == FormatZap {
			cfg = zap.NewProductionEncoderConfig()
		} else {
			cfg = zap.NewDevelopmentEncoderConfig()
			cfg.EncodeLevel = zapcore.CapitalLevelEncoder
			level = zapcore.DebugLevel
		}
		cfg.TimeKey = "timestamp"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder

		var enc zapcore.Encoder
		if format == FormatZap {
			enc = zapcore.NewJSONEncoder(cfg)
		} else {
			enc = zapcore.NewConsoleEncoder(cfg)
		}
		core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
		return NewZapLogger(zap.New(core, zap.AddCaller())), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
