package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/lessontutor/internal/app"
	"github.com/markdave123-py/lessontutor/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer application.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- application.Server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			application.Log.Error("server error", "error", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Server.Shutdown(shutdownCtx); err != nil {
			application.Log.Error("graceful shutdown failed", "error", err)
		}
	}
	application.Log.Info("lessontutor stopped")
}
