package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/meeting-notes/internal/adapters/mcp"
	"github.com/kirillkom/meeting-notes/internal/bootstrap"
	"github.com/kirillkom/meeting-notes/internal/config"
	"github.com/kirillkom/meeting-notes/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the MCP protocol, so logs go to stderr.
	logger := logging.NewConsoleLogger("meeting-mcp", cfg.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := server.ServeStdio(mcpadapter.NewServer(app.Meetings)); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
