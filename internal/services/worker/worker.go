// Package worker implements the Transcode Worker (§4.3): it consumes
// Transcode Jobs from the Job Queue, drives the external encoder through
// one of two dispatch paths, and publishes progress — structured after the
// teacher's hlsManager job-execution loop (internal/api/http/hls_encoding.go).
package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mediapipeline/internal/domain"
	"mediapipeline/internal/domain/ports"
	"mediapipeline/internal/metrics"
)

// Worker owns the main consume loop, both job dispatch paths, the startup
// recovery sweep, and the periodic heartbeat.
type Worker struct {
	Store      ports.MediaRecordStore
	Queue      ports.JobQueue
	LiveStatus ports.LiveStatusStore
	Prober     ports.Prober
	Encoder    Encoder
	FS         FileSystem
	Logger     *slog.Logger
	HLSDir     string

	PopTimeout        time.Duration
	HeartbeatInterval time.Duration
}

func New(store ports.MediaRecordStore, queue ports.JobQueue, liveStatus ports.LiveStatusStore, prober ports.Prober, encoder Encoder, fs FileSystem, logger *slog.Logger, hlsDir string, popTimeout, heartbeatInterval time.Duration) *Worker {
	if popTimeout <= 0 {
		popTimeout = 10 * time.Second
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Worker{
		Store:             store,
		Queue:             queue,
		LiveStatus:        liveStatus,
		Prober:            prober,
		Encoder:           encoder,
		FS:                fs,
		Logger:            logger,
		HLSDir:            hlsDir,
		PopTimeout:        popTimeout,
		HeartbeatInterval: heartbeatInterval,
	}
}

// Run performs the startup recovery sweep (§4.3.3), then enters the main
// consume loop: blocking pop from the Job Queue with a timeout, dispatching
// by job kind on success, looping on timeout (§4.3). A heartbeat goroutine
// runs alongside (§4.3.4).
func (w *Worker) Run(ctx context.Context) {
	if err := w.RecoverySweep(ctx); err != nil {
		w.Logger.Warn("worker: recovery sweep failed", slog.String("error", err.Error()))
	}

	go w.heartbeatLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := w.Queue.Pop(ctx, w.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.Logger.Warn("worker: queue pop failed", slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}

		w.dispatch(ctx, job)
	}
}

func (w *Worker) dispatch(ctx context.Context, job domain.Job) {
	switch job.Kind {
	case domain.JobKindHLSLadder:
		w.runLadder(ctx, job)
	case domain.JobKindSingleMP4:
		w.runSingleMP4(ctx, job)
	default:
		w.Logger.Warn("worker: unknown job kind", slog.String("id", string(job.ItemID)), slog.String("kind", string(job.Kind)))
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := domain.Heartbeat{Status: "healthy", LastSeen: time.Now().UTC().Unix()}
			if err := w.LiveStatus.PublishHeartbeat(ctx, hb); err != nil {
				w.Logger.Warn("worker: heartbeat publish failed", slog.String("error", err.Error()))
				continue
			}
			metrics.HeartbeatsPublishedTotal.Inc()
		}
	}
}

// probeFailureMessage turns a Prober error into the item's error_message
// (§7, E2). §7 forbids surfacing raw external text, but "moov atom not
// found" is a known, named INPUT_CORRUPT cause (§7's error taxonomy) worth
// keeping rather than collapsing into the generic message.
func probeFailureMessage(err error) string {
	if strings.Contains(strings.ToLower(err.Error()), "moov atom") {
		return "file may be corrupted: moov atom not found"
	}
	return "file may be corrupted"
}

// failJob marks an item ERROR and publishes the failure, used by both
// dispatch paths for their fatal conditions (§4.3.1, §4.3.2).
func (w *Worker) failJob(ctx context.Context, id domain.MediaID, cause error, message string) {
	w.Logger.Warn("worker: job failed", slog.String("id", string(id)), slog.String("error", cause.Error()))

	errored := domain.StatusError
	msg := message
	if err := w.Store.UpdateProgress(ctx, id, domain.ProgressUpdate{
		Status:       &errored,
		ErrorMessage: &msg,
	}); err != nil {
		w.Logger.Warn("worker: record error update failed", slog.String("id", string(id)), slog.String("error", err.Error()))
	}

	_ = w.LiveStatus.Publish(ctx, id, domain.LiveStatus{
		Status:  errored,
		Message: message,
		Error:   &domain.LiveError{Code: "TRANSCODE_FAILED", Message: message},
	})
}
