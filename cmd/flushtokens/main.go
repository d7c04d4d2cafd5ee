// Command flushtokens deletes ledger rows of refresh tokens whose lifetime
// has ended.  Such tokens are rejected on expiry alone, so their revocation
// entries only take up space.  Intended to run from cron.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/iliyamo/mosque-manager/internal/config"
	"github.com/iliyamo/mosque-manager/internal/database"
	"github.com/iliyamo/mosque-manager/internal/logger"
	"github.com/iliyamo/mosque-manager/internal/repository"
)

func main() {
	lg, err := logger.New(os.Getenv("LOG_LEVEL"), "flushtokens", false)
	if err != nil {
		log.Fatal(err)
	}
	dbc := config.LoadDB()

	db, err := database.Open(dbc.User, dbc.Pass, dbc.Host, dbc.Port, dbc.Name)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		lg.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	n, err := repository.NewTokenRepo(db).FlushExpired(ctx, time.Now())
	if err != nil {
		lg.Error("flush failed", "error", err, "deleted", n)
		os.Exit(1)
	}
	lg.Info("expired tokens flushed", "deleted", n)
}
