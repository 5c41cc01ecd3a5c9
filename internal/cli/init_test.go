package cli

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetupLoggerReadsEnv(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	logger := SetupLogger("worker")
	if logger.Component() != "worker" {
		t.Fatalf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug level not applied")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("logger not installed as default")
	}
}
