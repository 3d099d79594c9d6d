package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"comfyworker/internal/config"
	"comfyworker/internal/httpapi"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/pkg/shutdown"
	"comfyworker/internal/worker/queue"
)

func main() {
	cfg := config.Load()
	cfg.Log.ServiceName = "comfy-worker-api"
	log := logger.New(cfg.Log)

	log.Info("starting job API", "addr", cfg.API.Addr)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, cfg.API.ShutdownTimeout)

	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	router := httpapi.NewRouter(httpapi.Deps{
		Queue:       queue.NewRedisQueue(rdb, cfg.Queue.Name),
		Results:     queue.NewResultStore(rdb, cfg.Queue.ResultPrefix, cfg.Queue.ResultTTL),
		Log:         log,
		CORSOrigins: cfg.API.CORSOrigins,
	})

	server := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Registrado después de Redis: se apaga primero (LIFO)
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
