package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"mediapipeline/internal/domain"
	"mediapipeline/internal/metrics"
)

const progressSampleInterval = 5 * time.Second

// runLadder implements the HLS_LADDER dispatch path (§4.3.1).
func (w *Worker) runLadder(ctx context.Context, job domain.Job) {
	log := w.Logger.With(slog.String("id", string(job.ItemID)))

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
	if metaBytes, err := json.MarshalIndent(probe, "", "  "); err == nil {
		if err := w.FS.WriteFile(filepath.Join(job.OutputDir, "metadata.json"), metaBytes); err != nil {
			log.Warn("worker: metadata.json write failed", slog.String("error", err.Error()))
		}
	}

	opts := job.Options
	if opts.SegmentSeconds <= 0 {
		opts = domain.DefaultJobOptions()
	}
	ladder := opts.Rungs
	if len(ladder) == 0 {
		ladder = domain.DefaultLadder()
	}
	selected := domain.SelectRungs(probe, ladder)
	if len(selected) == 0 {
		w.failJob(ctx, job.ItemID, domain.ErrNoRungsSucceeded, "no rungs fit the source resolution")
		return
	}
	ordered := domain.InterleaveOrder(selected)

	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}

	totalRungs := len(ordered)
	progress := newLadderProgress(totalRungs)

	var mu sync.Mutex
	var succeeded []string
	firstPublished := false

	for batchStart := 0; batchStart < totalRungs; batchStart += maxParallel {
		batchEnd := batchStart + maxParallel
		if batchEnd > totalRungs {
			batchEnd = totalRungs
		}
		batch := ordered[batchStart:batchEnd]

		var wg sync.WaitGroup
		for _, rung := range batch {
			rung := rung
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok := w.encodeRung(ctx, job, probe, rung, opts, progress)

				mu.Lock()
				if ok {
					succeeded = append(succeeded, rung.Name)
				}
				publishFirst := ok && !firstPublished
				if publishFirst {
					firstPublished = true
				}
				mu.Unlock()

				if publishFirst {
					w.publishFirstRung(ctx, job.ItemID, rung.Name)
				}
			}()
		}
		wg.Wait()
	}

	mu.Lock()
	final := append([]string(nil), succeeded...)
	mu.Unlock()

	if len(final) == 0 {
		w.failJob(ctx, job.ItemID, domain.ErrNoRungsSucceeded, "no rungs succeeded")
		return
	}

	if opts.EnableThumbnails {
		w.generateThumbnails(ctx, job, probe)
	}

	w.finalizeLadder(ctx, job.ItemID, final)
}

// encodeRung drives a single rung's ffmpeg invocation and its 5-second
// progress sampler (§4.3.1 steps 7-8).
func (w *Worker) encodeRung(ctx context.Context, job domain.Job, probe domain.Probe, rung domain.Rung, opts domain.JobOptions, progress *ladderProgress) bool {
	segDur := opts.SegmentSeconds
	if segDur <= 0 {
		segDur = 10
	}
	expectedSegments := int(math.Ceil(probe.DurationSeconds / float64(segDur)))
	if expectedSegments <= 0 {
		expectedSegments = 1
	}

	sampleDone := make(chan struct{})
	go w.sampleRungProgress(ctx, job, rung, expectedSegments, progress, sampleDone)
	defer close(sampleDone)

	args := buildLadderArgs(job.InputPath, job.OutputDir, rung, opts)

	start := time.Now()
	err := w.Encoder.Run(ctx, args, nil)
	duration := time.Since(start)

	if err != nil {
		w.Logger.Warn("worker: rung encode failed",
			slog.String("id", string(job.ItemID)), slog.String("rung", rung.Name), slog.String("error", err.Error()))
		metrics.EncodeFailuresTotal.WithLabelValues(rung.Name, "encode_error").Inc()
		return false
	}

	metrics.EncodeDuration.WithLabelValues(rung.Name).Observe(duration.Seconds())
	metrics.RungsAvailableTotal.Inc()
	pct := progress.set(rung.Name, 1.0)
	w.publishProgress(ctx, job.ItemID, pct)
	return true
}

func (w *Worker) sampleRungProgress(ctx context.Context, job domain.Job, rung domain.Rung, expectedSegments int, progress *ladderProgress, done <-chan struct{}) {
	ticker := time.NewTicker(progressSampleInterval)
	defer ticker.Stop()

	prefix := fmt.Sprintf("output_%s_", rung.Name)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			entries, err := w.FS.ListDir(job.OutputDir)
			if err != nil {
				continue
			}
			count := 0
			for _, e := range entries {
				if !e.IsDir && strings.HasPrefix(e.Name, prefix) && strings.HasSuffix(e.Name, ".ts") {
					count++
				}
			}
			frac := float64(count) / float64(expectedSegments)
			pct := progress.set(rung.Name, frac)
			w.publishProgress(ctx, job.ItemID, pct)
		}
	}
}

// ladderProgress tracks each rung's completion fraction and derives the
// overall item progress per §4.3.1 step 8's formula, capped at 80% until
// finalization.
type ladderProgress struct {
	mu         sync.Mutex
	totalRungs int
	fraction   map[string]float64
}

func newLadderProgress(totalRungs int) *ladderProgress {
	return &ladderProgress{totalRungs: totalRungs, fraction: make(map[string]float64)}
}

func (p *ladderProgress) set(rung string, frac float64) float64 {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fraction[rung] = frac
	sum := 0.0
	for _, f := range p.fraction {
		sum += f
	}
	pct := 10 + (sum/float64(p.totalRungs))*70
	if pct > 80 {
		pct = 80
	}
	return pct
}

func (w *Worker) publishProgress(ctx context.Context, id domain.MediaID, pct float64) {
	if err := w.Store.UpdateProgress(ctx, id, domain.ProgressUpdate{TranscodeProgress: &pct}); err != nil {
		w.Logger.Warn("worker: progress update failed", slog.String("id", string(id)), slog.String("error", err.Error()))
	}
	_ = w.LiveStatus.Publish(ctx, id, domain.LiveStatus{Status: domain.StatusTranscoding, Progress: pct})
}

// publishFirstRung implements §4.3.1 step 9: the item becomes streamable as
// soon as its first rung finishes, even while later rungs continue.
func (w *Worker) publishFirstRung(ctx context.Context, id domain.MediaID, rungName string) {
	rungs := []string{rungName}
	if err := w.Store.UpdateProgress(ctx, id, domain.ProgressUpdate{AvailableRungs: &rungs}); err != nil {
		w.Logger.Warn("worker: first-rung record update failed", slog.String("id", string(id)), slog.String("error", err.Error()))
	}
	_ = w.LiveStatus.Publish(ctx, id, domain.LiveStatus{
		Status:             domain.StatusReady,
		AvailableForStream: true,
		AvailableRungs:     rungs,
	})
	w.Logger.Info("worker: first rung ready", slog.String("id", string(id)), slog.String("rung", rungName))
}

const (
	minThumbnails = 3
	maxThumbnails = 10
)

// generateThumbnails produces between 3 and 10 uniformly spaced preview
// images across the source's duration (§4.3.1 step 10), written under the
// output dir's thumbnails/ subdirectory per §3.4's on-disk layout.
func (w *Worker) generateThumbnails(ctx context.Context, job domain.Job, probe domain.Probe) {
	count := minThumbnails
	if probe.DurationSeconds > 600 {
		count = maxThumbnails
	}
	if count < minThumbnails {
		count = minThumbnails
	}
	if count > maxThumbnails {
		count = maxThumbnails
	}

	thumbsDir := filepath.Join(job.OutputDir, "thumbnails")
	if err := w.FS.MkdirAll(thumbsDir); err != nil {
		w.Logger.Warn("worker: thumbnails dir creation failed",
			slog.String("id", string(job.ItemID)), slog.String("error", err.Error()))
		return
	}

	interval := probe.DurationSeconds / float64(count+1)
	for i := 1; i <= count; i++ {
		ts := interval * float64(i)
		outPath := filepath.Join(thumbsDir, fmt.Sprintf("thumb_%03d.png", i))
		args := []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
			"-i", job.InputPath,
			"-frames:v", "1",
			"-q:v", "2",
			outPath,
		}
		if err := w.Encoder.Run(ctx, args, nil); err != nil {
			w.Logger.Warn("worker: thumbnail generation failed",
				slog.String("id", string(job.ItemID)), slog.Int("index", i), slog.String("error", err.Error()))
		}
	}
}

// finalizeLadder implements §4.3.1 step 10's final publish.
func (w *Worker) finalizeLadder(ctx context.Context, id domain.MediaID, availableRungs []string) {
	ready := domain.StatusReady
	full := 100.0
	if err := w.Store.UpdateProgress(ctx, id, domain.ProgressUpdate{
		Status:            &ready,
		TranscodeProgress: &full,
		AvailableRungs:    &availableRungs,
	}); err != nil {
		w.Logger.Warn("worker: finalize record update failed", slog.String("id", string(id)), slog.String("error", err.Error()))
	}
	_ = w.LiveStatus.Publish(ctx, id, domain.LiveStatus{
		Status:             ready,
		Progress:           full,
		AvailableForStream: true,
		AvailableRungs:     availableRungs,
	})
	w.Logger.Info("worker: ladder job finalized", slog.String("id", string(id)), slog.Any("rungs", availableRungs))
}

// buildLadderArgs constructs the per-rung ffmpeg argument list described in
// §4.3.1 step 7, adapted from the teacher's HLS arg-building in
// internal/api/http/hls_encoding.go.
func buildLadderArgs(inputPath, outputDir string, rung domain.Rung, opts domain.JobOptions) []string {
	segDur := opts.SegmentSeconds
	if segDur <= 0 {
		segDur = 10
	}
	preset := opts.Preset
	if preset == "" {
		preset = "veryfast"
	}
	crf := opts.CRF
	if crf <= 0 {
		crf = 28
	}

	playlistPath := filepath.Join(outputDir, fmt.Sprintf("output_%s.m3u8", rung.Name))
	segmentPattern := filepath.Join(outputDir, fmt.Sprintf("output_%s_%%03d.ts", rung.Name))

	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", rung.Width, rung.Height),
		"-c:v", "libx264",
		"-profile:v", "main",
		"-level", "4.0",
		"-pix_fmt", "yuv420p",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-b:v", rung.VideoBitrate,
		"-c:a", "aac",
		"-b:a", rung.AudioBitrate,
		"-ar", "44100",
		"-ac", "2",
		"-movflags", "+faststart",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segDur),
		"-hls_playlist_type", "event",
		"-hls_flags", "independent_segments+append_list",
		"-hls_segment_filename", segmentPattern,
		playlistPath,
	}
}
