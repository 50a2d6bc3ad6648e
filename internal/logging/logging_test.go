package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/config"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
		wantErr  bool
	}{
		{"info", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(config.LogConfig{Level: tt.level})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if err == nil && logger.GetLevel() != tt.expected {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.expected)
			}
		})
	}
}

func TestNew_WritesLogFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	logger, err := New(config.LogConfig{Level: "info", File: file})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.WithField("profile_id", "abc12345").Info("profile saved")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "profile saved") || !strings.Contains(string(data), "abc12345") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestLogger_Default(t *testing.T) {
	if Logger() == nil {
		t.Fatal("expected default logger")
	}

	custom := Discard()
	SetDefault(custom)
	defer SetDefault(nil)

	if Logger() != custom {
		t.Error("expected SetDefault to replace the package logger")
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithRequestID(logger, ctx).Info("hello")
	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Errorf("expected request id in output, got %s", buf.String())
	}

	buf.Reset()
	WithRequestID(logger, context.Background()).Info("hello")
	if !strings.Contains(buf.String(), `"request_id":"unknown"`) {
		t.Errorf("expected unknown request id, got %s", buf.String())
	}
}
