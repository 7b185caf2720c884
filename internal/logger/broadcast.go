package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

// SendFunc delivers one formatted log record to the registered chats. It is
// usually bot.Bot.SendMessage with default options.
type SendFunc func(ctx context.Context, text string) error

// BroadcastHandler is an slog.Handler that forwards every record at or above
// its level through a SendFunc, so the hosting process can use a chat bot as
// a logging back-end. Send failures are dropped; a logging back-end must not
// take down its host.
type BroadcastHandler struct {
	send  SendFunc
	level slog.Leveler

	mu    *sync.Mutex
	buf   *bytes.Buffer
	inner slog.Handler
}

var _ slog.Handler = (*BroadcastHandler)(nil)

// NewBroadcastHandler creates a BroadcastHandler delivering records through
// send. Records below minLevel are ignored.
func NewBroadcastHandler(send SendFunc, minLevel slog.Leveler) *BroadcastHandler {
	if minLevel == nil {
		minLevel = slog.LevelInfo
	}

	buf := &bytes.Buffer{}
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: minLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Timestamps add noise in a chat window.
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	return &BroadcastHandler{
		send:  send,
		level: minLevel,
		mu:    &sync.Mutex{},
		buf:   buf,
		inner: inner,
	}
}

// Enabled reports whether records at the given level are forwarded.
func (h *BroadcastHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats the record and forwards it through the SendFunc.
func (h *BroadcastHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	h.buf.Reset()
	err := h.inner.Handle(ctx, record)
	text := strings.TrimRight(h.buf.String(), "\n")
	h.mu.Unlock()

	if err != nil {
		return err
	}

	// Best effort: the host keeps logging even if the chat transport is down.
	_ = h.send(ctx, text)
	return nil
}

// WithAttrs returns a handler whose forwarded records carry the given attrs.
func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BroadcastHandler{
		send:  h.send,
		level: h.level,
		mu:    h.mu,
		buf:   h.buf,
		inner: h.inner.WithAttrs(attrs),
	}
}

// WithGroup returns a handler that starts the given group.
func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	return &BroadcastHandler{
		send:  h.send,
		level: h.level,
		mu:    h.mu,
		buf:   h.buf,
		inner: h.inner.WithGroup(name),
	}
}
