package main

import (
	"log/slog"
	"os"

	"go-session-agent/internal/app"
	"go-session-agent/internal/logger"
)

func main() {
	logHandler := logger.NewConsoleHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize agent", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("agent run failed", "error", err)
		os.Exit(1)
	}
}
