package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/list-importer/internal/api"
	"github.com/ignite/list-importer/internal/config"
	"github.com/ignite/list-importer/internal/etl"
	"github.com/ignite/list-importer/internal/pkg/logger"
	"github.com/ignite/list-importer/internal/session"
	"github.com/ignite/list-importer/internal/source"
	"github.com/ignite/list-importer/internal/store"
	"github.com/ignite/list-importer/internal/uploader"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "path", *configPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis unavailable", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	var contacts *store.ContactStore
	if cfg.Database.URL != "" {
		contacts, err = store.Open(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer contacts.Close()
	} else {
		logger.Warn("no database configured, dedup runs against the file only")
	}

	svc := api.NewService(cfg, session.NewStore(rdb), contacts)

	if cfg.S3Watch.Enabled {
		watcher, err := source.NewWatcher(cfg.S3Watch,
			etl.NewPipeline(cfg.Import.Required()...),
			uploader.New(cfg.Upload.Endpoint,
				uploader.WithBatchSize(cfg.Upload.BatchSize),
				uploader.WithBatchTimeout(cfg.Upload.BatchTimeout())))
		if err != nil {
			logger.Error("s3 watcher init failed", "error", err)
			os.Exit(1)
		}
		watcher.Start()
		defer watcher.Stop()
		logger.Info("s3 drop-folder watcher started",
			"bucket", cfg.S3Watch.Bucket, "interval", cfg.S3Watch.Interval())
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      svc.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
