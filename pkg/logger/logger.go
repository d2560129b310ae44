// Package logger provides a slog.Handler that writes through a zap core.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Handler adapts a zapcore.Core to slog.
type Handler struct {
	core   zapcore.Core
	level  slog.Leveler
	fields []zapcore.Field
	group  string
}

// NewHandler builds a JSON production handler on stdout. A nil opts logs at info.
func NewHandler(opts *slog.HandlerOptions) *Handler {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), zapcore.DebugLevel)

	return NewHandlerWithCore(core, opts)
}

// NewHandlerWithCore wraps an existing core.
func NewHandlerWithCore(core zapcore.Core, opts *slog.HandlerOptions) *Handler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &Handler{core: core, level: level}
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}

	return l
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.core.Enabled(zapLevel(level))
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]zapcore.Field, 0, len(h.fields)+r.NumAttrs())
	fields = append(fields, h.fields...)
	r.Attrs(func(a slog.Attr) bool {
		if f, ok := h.field(a); ok {
			fields = append(fields, f)
		}

		return true
	})

	ent := zapcore.Entry{
		Level:   zapLevel(r.Level),
		Time:    r.Time,
		Message: r.Message,
	}
	if ent.Time.IsZero() {
		ent.Time = time.Now()
	}

	if ce := h.core.Check(ent, nil); ce != nil {
		ce.Write(fields...)
	}

	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.fields = append([]zapcore.Field(nil), h.fields...)
	for _, a := range attrs {
		if f, ok := h.field(a); ok {
			cp.fields = append(cp.fields, f)
		}
	}

	return &cp
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	if cp.group != "" {
		cp.group += "." + name
	} else {
		cp.group = name
	}

	return &cp
}

// Sync flushes buffered entries.
func (h *Handler) Sync() error {
	return h.core.Sync()
}

func (h *Handler) field(a slog.Attr) (zapcore.Field, bool) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return zapcore.Field{}, false
	}

	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return zap.String(key, a.Value.String()), true
	case slog.KindInt64:
		return zap.Int64(key, a.Value.Int64()), true
	case slog.KindUint64:
		return zap.Uint64(key, a.Value.Uint64()), true
	case slog.KindFloat64:
		return zap.Float64(key, a.Value.Float64()), true
	case slog.KindBool:
		return zap.Bool(key, a.Value.Bool()), true
	case slog.KindDuration:
		return zap.Duration(key, a.Value.Duration()), true
	case slog.KindTime:
		return zap.Time(key, a.Value.Time()), true
	case slog.KindGroup:
		m := make(map[string]any, len(a.Value.Group()))
		for _, ga := range a.Value.Group() {
			m[ga.Key] = ga.Value.Resolve().Any()
		}

		return zap.Any(key, m), true
	default:
		if err, ok := a.Value.Any().(error); ok {
			return zap.NamedError(key, err), true
		}

		return zap.Any(key, a.Value.Any()), true
	}
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
