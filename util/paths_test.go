package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := ResolveFilePath(":memory:"); got != ":memory:" {
		t.Errorf("Expected :memory: to be kept, got '%s'", got)
	}

	abs := filepath.Join(home, "data.db")
	if got := ResolveFilePath(abs); got != abs {
		t.Errorf("Expected absolute path to be kept, got '%s'", got)
	}

	want := filepath.Join(home, AppConfigDir, "missing-fedsync.db")
	if got := ResolveFilePath("missing-fedsync.db"); got != want {
		t.Errorf("Expected '%s', got '%s'", want, got)
	}
	if _, err := os.Stat(filepath.Join(home, AppConfigDir)); err != nil {
		t.Errorf("Expected config directory to be created: %v", err)
	}

	if err := os.WriteFile("local-fedsync.db", nil, 0600); err != nil {
		t.Fatalf("Failed to create local file: %v", err)
	}
	defer os.Remove("local-fedsync.db")
	if got := ResolveFilePath("local-fedsync.db"); got != "local-fedsync.db" {
		t.Errorf("Expected local file to win, got '%s'", got)
	}
}
