package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

// Handler routes slog records into a Logger so that ambient slog calls are
// attributed like direct ones. Every record is handled; there is no level
// threshold.
type Handler struct {
	l      *Logger
	pre    []string // rendered key=value pairs from WithAttrs
	prefix string   // open groups, dot separated with trailing dot
}

// NewHandler returns a handler writing into l.
func NewHandler(l *Logger) *Handler {
	return &Handler{l: l}
}

// LevelFromSlog maps slog levels onto record levels.
func LevelFromSlog(lv slog.Level) record.Level {
	switch {
	case lv >= slog.LevelError:
		return record.Critical
	case lv >= slog.LevelWarn:
		return record.Warning
	case lv >= slog.LevelInfo:
		return record.Info
	default:
		return record.Debug
	}
}

func (h *Handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	parts := append([]string(nil), h.pre...)
	r.Attrs(func(a slog.Attr) bool {
		parts = appendAttr(parts, h.prefix, a)
		return true
	})
	msg := r.Message
	if len(parts) > 0 {
		msg += " " + strings.Join(parts, " ")
	}
	site := ""
	if r.PC != 0 {
		fr, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		site = frameString(fr.PC, fr.File, fr.Line)
	}
	h.l.emit(LevelFromSlog(r.Level), site, true, msg)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	c.pre = append([]string(nil), h.pre...)
	for _, a := range attrs {
		c.pre = appendAttr(c.pre, h.prefix, a)
	}
	return &c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func appendAttr(dst []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			dst = appendAttr(dst, p, ga)
		}
		return dst
	}
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " =\"\n\t") {
		v = strconv.Quote(v)
	}
	return append(dst, prefix+a.Key+"="+v)
}
