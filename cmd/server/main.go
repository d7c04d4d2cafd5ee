package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/mosque-manager/internal/config"
	"github.com/iliyamo/mosque-manager/internal/database"
	"github.com/iliyamo/mosque-manager/internal/handler"
	"github.com/iliyamo/mosque-manager/internal/logger"
	"github.com/iliyamo/mosque-manager/internal/middleware"
	"github.com/iliyamo/mosque-manager/internal/readiness"
	"github.com/iliyamo/mosque-manager/internal/repository"
	"github.com/iliyamo/mosque-manager/internal/router"
	"github.com/iliyamo/mosque-manager/internal/service"
	"github.com/iliyamo/mosque-manager/internal/session"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply the embedded schema before serving")
	flag.Parse()

	cfg := config.Load()
	lg, err := logger.New(cfg.LogLevel, cfg.ServiceName, cfg.IsProduction())
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Nothing is served until MySQL answers; exhaustion exits with status 3.
	gate := readiness.New(readiness.SQLProbe(db), logger.WithComponent(lg, "readiness"))
	gate.MustAwaitReady(cfg.DBWaitRetries, cfg.DBWaitDelay)

	if *migrate {
		if err := database.ApplySchema(context.Background(), db); err != nil {
			lg.Error("apply schema failed", "error", err)
			os.Exit(1)
		}
		lg.Info("schema applied")
	}

	// Redis is optional unless it backs the revocation set.
	var rdb redis.UniversalClient
	if c := config.NewRedisClient(); c != nil {
		rdb = c
		defer c.Close()
	}

	store, err := tokenStore(cfg, db, rdb)
	if err != nil {
		lg.Error("token store unavailable", "error", err)
		os.Exit(1)
	}

	users := repository.NewUserRepo(db, cfg.BcryptCost)
	opts := []session.Option{session.WithLogger(logger.WithComponent(lg, "session"))}
	if pub := service.NewEventPublisher(cfg.RabbitMQURL, logger.WithComponent(lg, "events")); pub != nil {
		opts = append(opts, session.WithPublisher(pub))
	}
	auth, err := session.New(session.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}, users, store, opts...)
	if err != nil {
		log.Fatal(err)
	}

	var scripter redis.Scripter
	if rdb != nil {
		scripter = rdb
	}
	limiter := middleware.RateLimit(config.LoadRateLimitConfig(), scripter, logger.WithComponent(lg, "ratelimit"))

	e := router.New(cfg, logger.WithComponent(lg, "http"))
	router.RegisterRoutes(e, cfg.ServiceName)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, users, lg), auth, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", "addr", addr, "env", cfg.Env, "revocation", cfg.Revocation)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", "error", err)
	}
}

func tokenStore(cfg config.Config, db *sql.DB, rdb redis.UniversalClient) (session.TokenStore, error) {
	switch cfg.Revocation {
	case "", "sql":
		return repository.NewTokenRepo(db), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("REVOCATION_BACKEND=redis but redis is unreachable")
		}
		return repository.NewRedisTokenStore(rdb, "tok"), nil
	}
	return nil, errors.New("unknown REVOCATION_BACKEND " + cfg.Revocation)
}
