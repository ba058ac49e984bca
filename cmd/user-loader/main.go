package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/internal/migrations"
	"github.com/radieske/inhouse-points/internal/shared/config"
	"github.com/radieske/inhouse-points/internal/shared/db"
	"github.com/radieske/inhouse-points/internal/shared/logger"
	"github.com/radieske/inhouse-points/internal/users"
	usersrepo "github.com/radieske/inhouse-points/internal/users/repo"
)

func main() {
	cfg := config.Load()
	path := flag.String("file", cfg.UsersFile, "users JSON file")
	flag.Parse()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := migrations.Run(pg.DB, log); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal("open users file", zap.String("file", *path), zap.Error(err))
	}
	defer f.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loader := &users.Loader{Log: log, Store: usersrepo.NewPostgres(pg)}
	res, err := loader.Load(ctx, f)
	if err != nil {
		log.Fatal("load users", zap.Error(err))
	}
	log.Info("users loaded",
		zap.String("file", *path),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("errors", len(res.Errors)),
	)
	if len(res.Errors) > 0 {
		_ = log.Sync()
		os.Exit(1)
	}
}
