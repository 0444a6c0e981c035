package diag

import (
	"context"
	"log/slog"
)

// slogHandler 把第三方库的 slog 记录转发为 diag 事件。
// 仅转发 warn 及以上；低于 Logger 级别的记录被丢弃。
type slogHandler struct {
	l      *Logger
	comp   string
	attrs  []slog.Attr
	prefix string
}

// Slog 返回写入本 Logger 的 *slog.Logger，comp 作为事件组件名。
func (l *Logger) Slog(comp string) *slog.Logger {
	return slog.New(&slogHandler{l: l, comp: comp})
}

func (h *slogHandler) Enabled(_ context.Context, lv slog.Level) bool {
	if lv < slog.LevelWarn {
		return false
	}
	return h.l.Enabled(fromSlog(lv))
}

func (h *slogHandler) Handle(_ context.Context, r slog.Record) error {
	kv := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		kv[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		kv[h.prefix+a.Key] = a.Value.String()
		return true
	})
	if len(kv) == 0 {
		kv = nil
	}
	lv := fromSlog(r.Level)
	stage := "warn"
	if lv == Error {
		stage = "error"
	}
	h.l.log(lv, Event{Comp: h.comp, Stage: stage, Msg: r.Message, KV: kv})
	return nil
}

func (h *slogHandler) WithAttrs(as []slog.Attr) slog.Handler {
	n := *h
	n.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range as {
		n.attrs = append(n.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &n
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	n := *h
	n.prefix = h.prefix + name + "."
	return &n
}

func fromSlog(lv slog.Level) Level {
	switch {
	case lv >= slog.LevelError:
		return Error
	case lv >= slog.LevelWarn:
		return Warn
	case lv >= slog.LevelInfo:
		return Info
	default:
		return Debug
	}
}
