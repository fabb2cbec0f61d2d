package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriterLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("component", "engine"))

	l.Info("alert emitted",
		String("symbol", "TNSR"),
		Float64("net_spread_pct", 3.5),
		Uint64("seq", 7),
		Duration("cooldown", 5*time.Minute),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if got["component"] != "engine" || got["symbol"] != "TNSR" {
		t.Fatalf("missing fields: %v", got)
	}
	if got["net_spread_pct"] != 3.5 {
		t.Fatalf("net_spread_pct = %v", got["net_spread_pct"])
	}
	if got["cooldown"] != float64(300000) {
		t.Fatalf("cooldown = %v, want ms", got["cooldown"])
	}
	if got["error"] != "boom" {
		t.Fatalf("error = %v", got["error"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "info")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello")
	if _, err := filepath.Glob(path); err != nil {
		t.Fatalf("glob: %v", err)
	}
}

func TestNopDiscards(t *testing.T) {
	Nop().Error("nothing", String("k", "v"))
}
