package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/turn-memory/internal/config"
	"github.com/rcliao/turn-memory/internal/model"
)

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":  7 * 24 * time.Hour,
		"24h": 24 * time.Hour,
		"30m": 30 * time.Minute,
		"60s": time.Minute,
	}
	for in, want := range cases {
		got, err := parseTTL(in)
		if err != nil {
			t.Errorf("parseTTL(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseTTL(%q) = %v, want %v", in, got, want)
		}
	}

	for _, bad := range []string{"", "7", "d7", "1w", "-1h"} {
		if _, err := parseTTL(bad); err == nil {
			t.Errorf("parseTTL(%q): expected error", bad)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"decide", "turn", "put", "get", "list", "search", "context", "update",
		"rm", "forget", "history", "access", "stats", "export", "import"}
	have := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestImportParamsSkipsInactiveAndExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	memories := []model.Memory{
		{Type: model.TypeFact, Key: "workplace", Value: "Acme", IsActive: true, Confidence: 1, Importance: 0.5},
		{Type: model.TypeFact, Key: "old", Value: "gone", IsActive: false},
		{Type: model.TypeTemporaryState, Key: "mood", Value: "tired", IsActive: true, ExpiresAt: &past},
		{Type: model.TypeTemporaryState, Key: "trip", Value: "Rome", IsActive: true, ExpiresAt: &future},
	}

	writes, skipped := importParams(memories, "u9", now)
	if skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", skipped)
	}
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}
	for _, w := range writes {
		if w.UserID != "u9" {
			t.Errorf("expected import to target u9, got %q", w.UserID)
		}
	}
	if writes[0].Key != "workplace" || writes[1].Key != "trip" {
		t.Errorf("unexpected keys: %q, %q", writes[0].Key, writes[1].Key)
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turn-memory.log")
	cfg := config.Default()
	cfg.Log.File = path
	cfg.Log.Source = true

	newLogger(cfg).Info("logged to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "logged to file") {
		t.Errorf("expected message in log file, got %q", data)
	}
	if !strings.Contains(string(data), "source=") {
		t.Errorf("expected source location in log file, got %q", data)
	}
}
