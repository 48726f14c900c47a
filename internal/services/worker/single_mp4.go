package worker

import (
	"context"
	"log/slog"
	"path/filepath"

	"mediapipeline/internal/domain"
	"mediapipeline/internal/metrics"
)

// runSingleMP4 implements the SINGLE_MP4 dispatch path (§4.3.2): a single
// 720p MP4 at CRF 23, written to a temp path then atomically renamed.
func (w *Worker) runSingleMP4(ctx context.Context, job domain.Job) {
	size, exists := w.FS.Stat(job.InputPath)
	if !exists || size == 0 {
		w.failJob(ctx, job.ItemID, domain.ErrMissingSource, "input file missing or empty")
		return
	}

	probe, err := w.Prober.Probe(ctx, job.InputPath)
	if err != nil {
		w.failJob(ctx, job.ItemID, err, probeFailureMessage(err))
		return
	}
	if !probe.Valid() {
		w.failJob(ctx, job.ItemID, domain.ErrInputCorrupt, "file may be corrupted")
		return
	}

	if err := w.FS.MkdirAll(job.OutputDir); err != nil {
		w.failJob(ctx, job.ItemID, err, "failed to prepare output directory")
		return
	}

	finalPath := filepath.Join(job.OutputDir, "output.mp4")
	tempPath := finalPath + ".tmp"
	args := buildSingleMP4Args(job.InputPath, tempPath)

	durationUs := probe.DurationSeconds * 1e6
	onProgress := func(outTimeUs int64) {
		if durationUs <= 0 {
			return
		}
		frac := float64(outTimeUs) / durationUs
		if frac > 1 {
			frac = 1
		}
		if frac < 0 {
			frac = 0
		}
		w.publishProgress(ctx, job.ItemID, frac*100)
	}

	if err := w.Encoder.Run(ctx, args, onProgress); err != nil {
		metrics.EncodeFailuresTotal.WithLabelValues("single_mp4", "encode_error").Inc()
		w.failJob(ctx, job.ItemID, err, "transcode failed")
		return
	}

	if err := w.FS.Rename(tempPath, finalPath); err != nil {
		w.failJob(ctx, job.ItemID, err, "failed to finalize output file")
		return
	}

	ready := domain.StatusReady
	full := 100.0
	fullyTranscoded := true
	if err := w.Store.UpdateProgress(ctx, job.ItemID, domain.ProgressUpdate{
		Status:            &ready,
		TranscodeProgress: &full,
		TranscodedPath:    &finalPath,
		FullyTranscoded:   &fullyTranscoded,
	}); err != nil {
		w.Logger.Warn("worker: single mp4 finalize update failed", slog.String("id", string(job.ItemID)), slog.String("error", err.Error()))
	}
	_ = w.LiveStatus.Publish(ctx, job.ItemID, domain.LiveStatus{Status: ready, Progress: full, AvailableForStream: true})
	w.Logger.Info("worker: single mp4 job finalized", slog.String("id", string(job.ItemID)), slog.String("path", finalPath))
}

// buildSingleMP4Args constructs the ffmpeg argument list for §4.3.2.
func buildSingleMP4Args(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vf", "scale=1280:720:force_original_aspect_ratio=decrease",
		"-c:v", "libx264",
		"-profile:v", "main",
		"-pix_fmt", "yuv420p",
		"-crf", "23",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", "44100",
		"-ac", "2",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		outputPath,
	}
}
