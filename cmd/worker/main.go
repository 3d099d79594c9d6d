package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"comfyworker/internal/config"
	"comfyworker/internal/metrics"
	"comfyworker/internal/pkg/logger"
	"comfyworker/internal/pkg/shutdown"
	"comfyworker/internal/storage"
	"comfyworker/internal/worker"
	"comfyworker/internal/worker/processor"
	"comfyworker/internal/worker/queue"
	"comfyworker/internal/worker/renderer"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log)

	log.Info("starting ComfyUI worker",
		"comfy_host", cfg.Engine.Host,
		"queue", cfg.Queue.Name,
		"refresh_worker", cfg.Worker.RefreshWorker,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Redis: cola de jobs y resultados
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err, "addr", cfg.Queue.RedisAddr)
	}
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	log.Info("Redis connected")

	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	if sp != nil {
		log.Info("storage provider initialized", "provider", sp.Provider())
	} else {
		log.Info("no external storage configured, images are returned as base64")
	}

	var trace *logger.Logger
	if cfg.Engine.WebsocketTrace {
		trace = log.WithComponent("websocket-trace")
	}

	proc := processor.New(processor.Deps{
		Engine:  renderer.NewHTTPClient(cfg.Engine.BaseURL()),
		Dialer:  renderer.NewDialer(cfg.Engine.WebsocketURL, trace),
		Storage: sp,
		Config:  cfg.Engine,
		TempDir: os.TempDir(),
		Log:     log,
	})

	if cfg.Worker.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv := &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		shutdownMgr.Register("metrics-server", func(ctx context.Context) error {
			return metricsSrv.Shutdown(ctx)
		})
		go func() {
			log.Info("metrics server listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err.Error())
			}
		}()
	}

	done := make(chan struct{})
	shutdownMgr.Register("worker", func(sctx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	})

	exited, stopWaiting := context.WithCancel(context.Background())
	go func() {
		err := worker.Run(ctx, worker.Deps{
			Queue:   queue.NewRedisQueue(rdb, cfg.Queue.Name),
			Results: queue.NewResultStore(rdb, cfg.Queue.ResultPrefix, cfg.Queue.ResultTTL),
			Runner:  proc,
			Worker:  cfg.Worker,
			Log:     log,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker stopped with error", "error", err.Error())
		}
		close(done)
		stopWaiting()
	}()

	// Espera señal o salida propia del worker (REFRESH_WORKER)
	shutdownMgr.WaitWithContext(exited)
}
