package logcontext

import (
	"context"
	"log/slog"
)

type ctxKey string

// Fields is the context key under which correlation attributes are stored.
const Fields ctxKey = "slog_fields"

// ContextHandler adds the attributes stored in the record's context.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(Fields).([]slog.Attr); ok {
		for _, v := range attrs {
			r.AddAttrs(v)
		}
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// AppendCtx returns a copy of parent carrying attrs in addition to any
// attributes already attached.
func AppendCtx(parent context.Context, attrs ...slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	var merged []slog.Attr
	if v, ok := parent.Value(Fields).([]slog.Attr); ok {
		merged = append(merged, v...)
	}
	merged = append(merged, attrs...)

	return context.WithValue(parent, Fields, merged)
}

// Attrs returns the attributes attached to ctx.
func Attrs(ctx context.Context) []slog.Attr {
	if v, ok := ctx.Value(Fields).([]slog.Attr); ok {
		return v
	}
	return nil
}
