// Command monitor runs the Download Monitor (§4.2): the periodic
// reconciliation loop that watches the downloader's active/stopped queues,
// records download progress on Media Records, moves them to TRANSCODING and
// enqueues Transcode Jobs once a download is ready to transcode, and marks
// them READY once every rung playlist on disk is closed.
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
	"mediapipeline/internal/downloader/aria2"
	"mediapipeline/internal/logging"
	"mediapipeline/internal/metrics"
	redisqueue "mediapipeline/internal/queue/redis"
	mongorepo "mediapipeline/internal/repository/mongo"
	"mediapipeline/internal/services/monitor"
	"mediapipeline/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "mediapipeline-monitor")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "monitor"),
		slog.String("mongoDatabase", cfg.MongoDatabase),
		slog.String("downloaderRPCURL", cfg.DownloaderRPCURL),
		slog.String("hlsDir", cfg.HLSDir),
		slog.Duration("tickInterval", cfg.MonitorTickInterval),
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
	downloaderClient := aria2.New(cfg.DownloaderRPCURL, cfg.DownloaderSecret)

	mon := monitor.New(repo, queue, downloaderClient, monitor.OSFileSystem{}, logger, cfg.HLSDir, cfg.MonitorTickInterval)

	if err := mon.Restore(rootCtx); err != nil {
		logger.Warn("monitor restore failed", slog.String("error", err.Error()))
	}

	logger.Info("monitor started", slog.Duration("tickInterval", cfg.MonitorTickInterval))
	mon.Run(rootCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis close error", slog.String("error", err.Error()))
	}

	logger.Info("monitor stopped")
}
