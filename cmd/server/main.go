package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"

	"github.com/danakeller/parley/internal/chat"
	"github.com/danakeller/parley/internal/config"
	"github.com/danakeller/parley/internal/message"
	"github.com/danakeller/parley/internal/ratelimit"
	"github.com/danakeller/parley/internal/server"
	"github.com/danakeller/parley/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		hclog.Default().Error("load config", "error", err)
		os.Exit(1)
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:  "parley",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	var store message.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			cancel()
			log.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		cancel()
		log.Info("using redis message store", "addr", cfg.RedisAddr)
		store = message.NewRedisStore(rdb, cfg.MaxRoomMessages, log.Named("store"))
	} else {
		log.Info("using in-memory message store")
		store = message.NewStore(cfg.MaxRoomMessages)
	}

	mgr := ws.NewConnManager(log.Named("conns"), ws.WithMaxConns(cfg.MaxConns))
	hub := ws.NewHub(mgr, log.Named("hub"))

	svc := chat.New(chat.Config{
		Store:              store,
		Emitter:            hub,
		Logger:             log.Named("chat"),
		PageSize:           cfg.HistoryPageSize,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
	})

	var limiter *ratelimit.Limiter
	if cfg.ConnectsPerMinute > 0 {
		limiter = ratelimit.New(cfg.ConnectsPerMinute, time.Minute)
	}
	wsHandler := ws.NewHandler(hub, svc, limiter, log.Named("ws"))

	srv := server.New(cfg.ListenAddr, svc, wsHandler, server.WithLogger(log.Named("http")))

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("shutdown", "error", err)
		}
		mgr.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		log.Error("server", "error", err)
		os.Exit(1)
	}
}
