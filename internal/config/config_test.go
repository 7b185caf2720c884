package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/edgard/telegram-utils/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file failed: %v", err)
	}

	if cfg.Log.Level != config.DefaultLogLevel {
		t.Errorf("log level %q, want %q", cfg.Log.Level, config.DefaultLogLevel)
	}
	if cfg.Store.Path != config.DefaultStorePath {
		t.Errorf("store path %q, want %q", cfg.Store.Path, config.DefaultStorePath)
	}
	if cfg.Telegram.AcceptedReply != config.DefaultAcceptedReply {
		t.Errorf("accepted reply %q, want %q", cfg.Telegram.AcceptedReply, config.DefaultAcceptedReply)
	}
	if cfg.Telegram.RejectedReply != config.DefaultRejectedReply {
		t.Errorf("rejected reply %q, want %q", cfg.Telegram.RejectedReply, config.DefaultRejectedReply)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
  format: json
store:
  path: /var/lib/telegram-utils/telegram.db
telegram:
  accepted_reply: "OK"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("log level %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.Store.Path != "/var/lib/telegram-utils/telegram.db" {
		t.Errorf("store path %q, want the configured path", cfg.Store.Path)
	}
	if cfg.Telegram.AcceptedReply != "OK" {
		t.Errorf("accepted reply %q, want %q", cfg.Telegram.AcceptedReply, "OK")
	}
	// Unset keys keep their defaults.
	if cfg.Telegram.RejectedReply != config.DefaultRejectedReply {
		t.Errorf("rejected reply %q, want default", cfg.Telegram.RejectedReply)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
	}{
		{
			name:    "bad log level",
			content: "log:\n  level: loud\n",
		},
		{
			name:    "bad log format",
			content: "log:\n  format: xml\n",
		},
		{
			name:    "empty store path",
			content: "store:\n  path: \"\"\n",
		},
		{
			name:    "unparseable yaml",
			content: "log: [unterminated\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}

			_, err := config.Load(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BOT_LOG_LEVEL", "warn")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level %q, want %q (from environment)", cfg.Log.Level, "warn")
	}
}
