// Package logging carries per-invocation correlation (verb, ring, key name)
// through context into slog records. Secret payloads are never attached.
package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	verbKey ctxKey = iota
	ringKey
	keyNameKey
)

// WithVerb returns a context with the command verb set.
func WithVerb(ctx context.Context, verb string) context.Context {
	return context.WithValue(ctx, verbKey, verb)
}

// WithRing returns a context with the ring name set.
func WithRing(ctx context.Context, ring string) context.Context {
	return context.WithValue(ctx, ringKey, ring)
}

// WithKeyName returns a context with the lookup key set. The key names an
// entry; it is not the secret.
func WithKeyName(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyNameKey, key)
}

// Verb extracts the command verb from the context, or "" if absent.
func Verb(ctx context.Context) string {
	v, _ := ctx.Value(verbKey).(string)
	return v
}

// Ring extracts the ring name from the context, or "" if absent.
func Ring(ctx context.Context) string {
	v, _ := ctx.Value(ringKey).(string)
	return v
}

// KeyName extracts the lookup key from the context, or "" if absent.
func KeyName(ctx context.Context) string {
	v, _ := ctx.Value(keyNameKey).(string)
	return v
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation attributes from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and the attributes appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := Verb(ctx); v != "" {
		r.AddAttrs(slog.String("verb", v))
	}
	if v := Ring(ctx); v != "" {
		r.AddAttrs(slog.String("ring", v))
	}
	if v := KeyName(ctx); v != "" {
		r.AddAttrs(slog.String("key", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
