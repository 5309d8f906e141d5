// Command agora-reconcile runs one notifications pass against the configured
// database and exits. It is meant to be scheduled by cron or a job runner.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/nasermirzaei89/agora"
)

func main() {
	ctx := context.Background()

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.ErrorContext(ctx, "failed to load .env file", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: agora.GetLogLevelFromEnv()})))

	app, err := agora.NewApp(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create app", "error", err)
		os.Exit(1)
	}

	report, err := app.Reconcile(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to reconcile notifications", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "notifications reconciled",
		"inserted", report.Inserted,
		"updated", report.Updated,
		"deleted", report.Deleted,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
	)

	if report.Failed > 0 {
		os.Exit(1)
	}
}
