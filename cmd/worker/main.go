// Command worker runs the Transcode Worker (§4.3): it pops Transcode Jobs
// from the queue, drives ffmpeg through either the HLS ladder or the
// single-MP4 path, and publishes progress back to the Media Record Store
// and the Live Status Store as it goes.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"mediapipeline/internal/app"
	"mediapipeline/internal/logging"
	"mediapipeline/internal/metrics"
	redisqueue "mediapipeline/internal/queue/redis"
	mongorepo "mediapipeline/internal/repository/mongo"
	"mediapipeline/internal/services/ffprobe"
	"mediapipeline/internal/services/worker"
	"mediapipeline/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "mediapipeline-worker")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "worker"),
		slog.String("mongoDatabase", cfg.MongoDatabase),
		slog.String("hlsDir", cfg.HLSDir),
		slog.String("ffmpegPath", cfg.FFMPEGPath),
		slog.Duration("popTimeout", cfg.JobQueuePopTimeout),
		slog.Duration("heartbeatInterval", cfg.HeartbeatInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(connectCtx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo := mongorepo.NewRepository(mongoClient, cfg.MongoDatabase, cfg.MongoCollection)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}

	redisClient := app.NewRedisClient(cfg)
	queue := redisqueue.NewQueue(redisClient)
	liveStatus := redisqueue.NewLiveStatusStore(redisClient)
	prober := ffprobe.New(cfg.FFProbePath)
	encoder := worker.FFmpegEncoder{Path: cfg.FFMPEGPath}

	w := worker.New(repo, queue, liveStatus, prober, encoder, worker.OSFileSystem{}, logger, cfg.HLSDir, cfg.JobQueuePopTimeout, cfg.HeartbeatInterval)

	logger.Info("worker started")
	w.Run(rootCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis close error", slog.String("error", err.Error()))
	}

	logger.Info("worker stopped")
}
