// Command auditlog consumes the auth.security queue and appends each event
// to a log file, one line per event.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/mosque-manager/internal/logger"
	"github.com/iliyamo/mosque-manager/internal/queue"
)

func main() {
	path := flag.String("log", queue.DefaultLogPath, "file the events are appended to")
	flag.Parse()

	_ = godotenv.Load()
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		log.Fatal("missing required env var: RABBITMQ_URL")
	}
	lg, err := logger.New(os.Getenv("LOG_LEVEL"), "auditlog", false)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.SecurityConsumer{URL: url, LogPath: *path, Logger: lg}
	lg.Info("consuming", "queue", queue.SecurityQueue, "file", *path)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}
