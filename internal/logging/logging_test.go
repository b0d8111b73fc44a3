package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"obsnapshots/internal/config"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func TestConfigureLevelAndFormat(t *testing.T) {
	logger := New()
	if err := Configure(logger, config.LogConfig{Level: "DEBUG", Format: "text", Output: "stderr"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %s, want debug", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("formatter = %T, want text", logger.Formatter)
	}
	if logger.Out != os.Stderr {
		t.Error("output is not stderr")
	}
}

func TestConfigureRejectsInvalid(t *testing.T) {
	if err := Configure(New(), config.LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if err := Configure(New(), config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.log")
	logger := New()
	if err := Configure(logger, config.LogConfig{Level: "info", Format: "json", Output: path, MaxAgeDays: 3}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	out, ok := logger.Out.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("output = %T, want lumberjack", logger.Out)
	}
	t.Cleanup(func() { _ = out.Close() })

	logger.WithField("component", "test").Info("written")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"message":"written"`) {
		t.Errorf("log file = %s", data)
	}
}
