package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, level Level, maxSize int64) (*DefaultLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")

	l, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: maxSize,
		MaxBackups:  3,
		Level:       level,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewDefaultLogger_CreatesFile(t *testing.T) {
	_, logPath := newTestLogger(t, LevelDebug, 1024)

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestLogLevels(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 1024*1024)

	l.Debug("debug message", String("key", "value"))
	l.Info("info message", Int("count", 42))
	l.Warn("warn message", Bool("flag", true))
	l.Error("error message", errors.New("test error"), Page(3))

	logStr := readLog(t, logPath)
	for _, want := range []string{
		"[DEBUG]", "debug message", "key=value",
		"[INFO]", "info message", "count=42",
		"[WARN]", "flag=true",
		"[ERROR]", `error="test error"`, "page=3", "Stack trace:",
	} {
		if !strings.Contains(logStr, want) {
			t.Errorf("Log missing %q", want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	l, logPath := newTestLogger(t, LevelWarn, 1024*1024)

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")

	logStr := readLog(t, logPath)
	if strings.Contains(logStr, "hidden") {
		t.Error("Messages below the level should be filtered")
	}
	if !strings.Contains(logStr, "visible warn") {
		t.Error("Warn message should be logged")
	}

	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	if !strings.Contains(readLog(t, logPath), "now visible") {
		t.Error("SetLevel should enable debug output")
	}
}

func TestWith_PrependsFields(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 1024*1024)

	child := l.With(String("doc", "paper.pdf")).With(Page(2))
	child.Info("block translated", Duration("elapsed", 1500*time.Millisecond))

	logStr := readLog(t, logPath)
	if !strings.Contains(logStr, "block translated doc=paper.pdf page=2 elapsed=1500ms") {
		t.Errorf("Unexpected entry: %s", logStr)
	}
}

func TestFormatValue_QuotesSpaces(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 1024*1024)

	l.Info("text", String("sample", "hello world"), Float64("ratio", 0.12345))

	logStr := readLog(t, logPath)
	if !strings.Contains(logStr, `sample="hello world"`) {
		t.Errorf("Expected quoted value, got: %s", logStr)
	}
	if !strings.Contains(logStr, "ratio=0.123") {
		t.Errorf("Expected rounded float, got: %s", logStr)
	}
}

func TestLogRotation(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 200)

	for i := 0; i < 20; i++ {
		l.Info("rotation test message with some padding", Int("i", i))
	}

	if _, err := os.Stat(logPath + ".1"); os.IsNotExist(err) {
		t.Error("Expected a rotated backup file")
	}
	if _, err := os.Stat(logPath + ".5"); !os.IsNotExist(err) {
		t.Error("Backups beyond MaxBackups should be removed")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warning ", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGlobalLogger(t *testing.T) {
	defer Close()

	// no-op before Init
	Info("dropped")
	With(String("k", "v")).Warn("dropped too")

	logPath := filepath.Join(t.TempDir(), "global.log")
	if err := Init(&Config{LogFilePath: logPath, MaxFileSize: 1024 * 1024, MaxBackups: 1, Level: LevelDebug}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Info("global message", String("stage", "detect"))
	Close()

	logStr := readLog(t, logPath)
	if !strings.Contains(logStr, "global message stage=detect") {
		t.Errorf("Global logger did not write entry: %s", logStr)
	}
	if strings.Contains(logStr, "dropped") {
		t.Error("Messages before Init should be discarded")
	}
}
