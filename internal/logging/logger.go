package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"cotas/internal/config"
)

// New builds the process logger: a size-bounded rotating file with one
// "<time> - <LEVEL> - <message>" line per record, mirrored to stdout through
// tint when cfg.Console is set. The returned closer releases the log file.
func New(cfg config.Log) (*slog.Logger, io.Closer, error) {
	level, err := config.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	sink := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: 1,
		LocalTime:  true,
	}

	var h slog.Handler = NewLineHandler(sink, level)
	if cfg.Console {
		h = teeHandler{h, tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})}
	}

	return slog.New(h), sink, nil
}

// teeHandler fans every record out to all of its handlers
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
