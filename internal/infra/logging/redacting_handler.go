package logging

import (
	"context"
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of sensitive attributes.
const RedactedValue = "[REDACTED]"

//nolint:gochecknoglobals
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"oldpassword":   {},
	"newpassword":   {},
	"passwordhash":  {},
	"passwordsalt":  {},
	"hash":          {},
	"salt":          {},
	"secret":        {},
	"secretkey":     {},
	"authorization": {},
}

// RedactingHandler wraps another slog.Handler and masks credential material
// in attribute values, including attributes nested in groups.
type RedactingHandler struct {
	h slog.Handler
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler creates a new RedactingHandler wrapping the given handler.
func NewRedactingHandler(h slog.Handler) *RedactingHandler {
	return &RedactingHandler{h: h}
}

// IsSensitiveKey reports whether values logged under key are masked.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(key))
	_, ok := sensitiveKeys[key]

	return ok
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))

		return true
	})

	//nolint:wrapcheck
	return h.h.Handle(ctx, redacted)
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, redactAttr(a))
	}

	return NewRedactingHandler(h.h.WithAttrs(out))
}

// WithGroup implements slog.Handler.WithGroup.
func (h *RedactingHandler) WithGroup(name string) Handler {
	return NewRedactingHandler(h.h.WithGroup(name))
}

// Enabled implements slog.Handler.Enabled.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func redactAttr(a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactedValue)
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]any, 0, len(group))

		for _, ga := range group {
			out = append(out, redactAttr(ga))
		}

		return slog.Group(a.Key, out...)
	}

	return a
}
