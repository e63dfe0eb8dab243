package main

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Setenv("LOG_LEVEL", tt.value)
		if got := logLevel(); got != tt.want {
			t.Errorf("logLevel() with LOG_LEVEL=%q = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestDurationEnv(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset uses default", "", 5 * time.Minute},
		{"valid duration", "45s", 45 * time.Second},
		{"invalid falls back", "banana", 5 * time.Minute},
		{"negative falls back", "-10s", 5 * time.Minute},
		{"zero falls back", "0s", 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_DURATION", tt.value)
			}
			got := durationEnv("TEST_DURATION", 5*time.Minute, logger)
			if got != tt.want {
				t.Errorf("durationEnv(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
