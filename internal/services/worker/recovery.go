package worker

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"mediapipeline/internal/domain"
	"mediapipeline/internal/metrics"
)

// RecoverySweep implements §4.3.3: items left in TRANSCODING with
// progress < 100 after an unclean Worker exit are cleaned up and either
// re-enqueued directly onto the Job Queue (§2's crash-safe resumability
// guarantee, E4) or failed to ERROR if they have no source video path
// recorded (whether the source file still exists on disk is not
// checked). Re-enqueuing here, rather than relying on the Monitor to notice, matters because a
// recovered item is already in the Monitor's single-flight set (seeded by
// Monitor.Restore from this same TRANSCODING record), which would make the
// Monitor's own transitionToTranscoding a permanent no-op for it.
func (w *Worker) RecoverySweep(ctx context.Context) error {
	status := domain.StatusTranscoding
	records, err := w.Store.List(ctx, domain.Filter{Status: &status})
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.TranscodeProgress >= 100 {
			continue
		}

		outputDir := filepath.Join(w.HLSDir, string(rec.ID)+"_hls")
		w.clearHLSArtifacts(outputDir)

		if rec.SourceVideoPath == "" {
			errored := domain.StatusError
			msg := "source video missing on recovery"
			if err := w.Store.UpdateProgress(ctx, rec.ID, domain.ProgressUpdate{Status: &errored, ErrorMessage: &msg}); err != nil {
				w.Logger.Warn("worker: recovery error mark failed", slog.String("id", string(rec.ID)), slog.String("error", err.Error()))
			}
			continue
		}

		zero := 0.0
		if err := w.Store.UpdateProgress(ctx, rec.ID, domain.ProgressUpdate{TranscodeProgress: &zero}); err != nil {
			w.Logger.Warn("worker: recovery reset failed", slog.String("id", string(rec.ID)), slog.String("error", err.Error()))
			continue
		}

		job := domain.Job{
			Kind:      domain.JobKindHLSLadder,
			ItemID:    rec.ID,
			InputPath: rec.SourceVideoPath,
			OutputDir: outputDir,
			Options:   domain.DefaultJobOptions(),
		}
		if err := w.Queue.Push(ctx, job); err != nil {
			w.Logger.Warn("worker: recovery re-enqueue failed", slog.String("id", string(rec.ID)), slog.String("error", err.Error()))
			continue
		}
		metrics.RecoverySweepRequeuedTotal.Inc()
		w.Logger.Info("worker: recovery sweep re-enqueued item", slog.String("id", string(rec.ID)))
	}
	return nil
}

func (w *Worker) clearHLSArtifacts(outputDir string) {
	entries, err := w.FS.ListDir(outputDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name))
		if ext == ".ts" || ext == ".m3u8" || ext == ".vtt" {
			_ = w.FS.Remove(filepath.Join(outputDir, e.Name))
		}
	}
}
