package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"invalid", LevelInfo}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelWarn, &buf, "")

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("Lines below warn level were written: %q", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Errorf("Expected warn and error lines in output, got %q", out)
	}
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelInfo, &buf, "server")

	l.WithPrefix("hub").Info("registered")

	if !strings.Contains(buf.String(), "[server:hub]") {
		t.Errorf("Expected combined prefix in output, got %q", buf.String())
	}
}

func TestNewFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "chatraum.log")

	l, err := NewFile(LevelInfo, logPath, "test")
	if err != nil {
		t.Fatalf("Failed to create file logger: %v", err)
	}

	l.Info("hello from file")
	if err := l.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from file") {
		t.Errorf("Log file missing message: %q", string(data))
	}
}

func TestLevelNoneDiscards(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelNone, &buf, "")

	l.Error("should not appear")

	if buf.Len() != 0 {
		t.Errorf("LevelNone logger wrote output: %q", buf.String())
	}
}
