//go:build !avr

package xosc32k

import (
	"context"
	"log/slog"
)

// levelTrace logs every register write. Enabled by passing a handler with level LevelDebug-1.
const levelTrace slog.Level = slog.LevelDebug - 1

// Config configures a Device.
type Config struct {
	// Logger receives bring-up progress. Nil disables logging.
	Logger *slog.Logger
}

type logger struct {
	l             *slog.Logger
	_traceenabled bool
}

func newLogger(cfg Config) logger {
	return logger{
		l:             cfg.Logger,
		_traceenabled: cfg.Logger != nil && cfg.Logger.Handler().Enabled(context.Background(), levelTrace),
	}
}

func (d *Device) info(msg string) {
	d.logattrs(slog.LevelInfo, msg)
}

func (d *Device) infoPin(msg, pin string) {
	d.logattrs(slog.LevelInfo, msg, slog.String("pin", pin))
}

func (d *Device) debug(msg string) {
	d.logattrs(slog.LevelDebug, msg)
}

func (d *Device) trace(msg string, addr uint16, v uint8) {
	if !d.log._traceenabled {
		return
	}
	d.logattrs(levelTrace, msg, slog.Uint64("addr", uint64(addr)), slog.Uint64("val", uint64(v)))
}

func (d *Device) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if d.log.l == nil {
		return
	}
	d.log.l.LogAttrs(context.Background(), level, msg, attrs...)
}
