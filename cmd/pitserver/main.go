package main

import (
	"flag"
	"log/slog"
	"os"

	"pitpipe/internal/app"
)

func main() {
	configPath := flag.String("config", os.Getenv("PIT_CONFIG"), "path to config.yaml")
	flag.Parse()

	// Create application instance
	application, err := app.NewApplication(*configPath)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start application
	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
