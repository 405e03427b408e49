package clog

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"err", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger()
	l.SetFileOutput(&buf)
	l.SetErrOutput(nil)
	l.SetLevel(LevelWarn)

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	if strings.Contains(out, "debug msg") || strings.Contains(out, "info msg") {
		t.Errorf("below-level messages logged: %q", out)
	}
	if !strings.Contains(out, "warn msg") || !strings.Contains(out, "error msg") {
		t.Errorf("at-level messages missing: %q", out)
	}
}

func TestLoggerDaemonModeSuppressesStderr(t *testing.T) {
	var file, errOut bytes.Buffer
	l := NewLogger()
	l.SetFileOutput(&file)
	l.SetErrOutput(&errOut)
	l.SetDaemonMode(true)

	l.Error("something failed")

	if !strings.Contains(file.String(), "something failed") {
		t.Errorf("file output missing message: %q", file.String())
	}
	if errOut.Len() != 0 {
		t.Errorf("daemon mode wrote to stderr: %q", errOut.String())
	}
}

func TestLoggerStderrFormat(t *testing.T) {
	var errOut bytes.Buffer
	l := NewLogger()
	l.SetErrOutput(&errOut)

	l.Warn("watch out")

	got := errOut.String()
	if !strings.HasPrefix(got, "[WARN] ") {
		t.Errorf("stderr line = %q, want [WARN] prefix without timestamp", got)
	}
}

func TestOpenLogFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "remctld.log")
	f, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile() error = %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString("line\n"); err != nil {
		t.Errorf("write to log file: %v", err)
	}
}

func TestReplaceGlobal(t *testing.T) {
	var buf bytes.Buffer
	old := ReplaceGlobal(TestLogger(&buf))
	defer ReplaceGlobal(old)

	Info("global message")

	if !strings.Contains(buf.String(), "global message") {
		t.Errorf("global logger output = %q", buf.String())
	}
}
