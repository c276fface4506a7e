package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "deployer.log")

	log, cleanup, err := New(Config{Level: "error", File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Debugw("package start", "name", "nginx")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "package start" {
		t.Errorf("msg = %v, want %q", entry["msg"], "package start")
	}
	if entry["name"] != "nginx" {
		t.Errorf("name = %v, want %q", entry["name"], "nginx")
	}
	if entry["logger"] != "orlo-deployer" {
		t.Errorf("logger = %v, want %q", entry["logger"], "orlo-deployer")
	}
}

func TestNop(t *testing.T) {
	Nop().Infow("discarded")
}
