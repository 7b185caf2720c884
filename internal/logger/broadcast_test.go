package logger_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/edgard/telegram-utils/internal/logger"
)

func TestBroadcastHandlerForwardsRecords(t *testing.T) {
	t.Parallel()

	var sent []string
	send := func(_ context.Context, text string) error {
		sent = append(sent, text)
		return nil
	}

	log := slog.New(logger.NewBroadcastHandler(send, slog.LevelInfo))
	log.Info("disk almost full", "free_gb", 2)

	if len(sent) != 1 {
		t.Fatalf("expected 1 forwarded record, got %d", len(sent))
	}
	if !strings.Contains(sent[0], "disk almost full") {
		t.Errorf("forwarded text %q should contain the message", sent[0])
	}
	if !strings.Contains(sent[0], "free_gb=2") {
		t.Errorf("forwarded text %q should contain the attributes", sent[0])
	}
	if !strings.Contains(sent[0], "level=INFO") {
		t.Errorf("forwarded text %q should contain the level", sent[0])
	}
	if strings.Contains(sent[0], "time=") {
		t.Errorf("forwarded text %q should not contain a timestamp", sent[0])
	}
}

func TestBroadcastHandlerRespectsLevel(t *testing.T) {
	t.Parallel()

	var sent []string
	send := func(_ context.Context, text string) error {
		sent = append(sent, text)
		return nil
	}

	log := slog.New(logger.NewBroadcastHandler(send, slog.LevelWarn))
	log.Info("too quiet to forward")
	log.Warn("loud enough")

	if len(sent) != 1 {
		t.Fatalf("expected 1 forwarded record, got %d", len(sent))
	}
	if !strings.Contains(sent[0], "loud enough") {
		t.Errorf("forwarded text %q, want the warning", sent[0])
	}
}

func TestBroadcastHandlerWithAttrs(t *testing.T) {
	t.Parallel()

	var sent []string
	send := func(_ context.Context, text string) error {
		sent = append(sent, text)
		return nil
	}

	log := slog.New(logger.NewBroadcastHandler(send, slog.LevelInfo)).With("host", "backup-1")
	log.Error("job failed")

	if len(sent) != 1 {
		t.Fatalf("expected 1 forwarded record, got %d", len(sent))
	}
	if !strings.Contains(sent[0], "host=backup-1") {
		t.Errorf("forwarded text %q should carry attached attrs", sent[0])
	}
}

func TestBroadcastHandlerIgnoresSendFailure(t *testing.T) {
	t.Parallel()

	send := func(context.Context, string) error {
		return context.DeadlineExceeded
	}

	log := slog.New(logger.NewBroadcastHandler(send, slog.LevelInfo))
	// Must not panic or propagate the transport failure.
	log.Info("still standing")
}
