// Package monitor implements the Download Monitor (§4.2): a periodic
// scheduler that reconciles Downloader state with Media Records and
// enqueues Transcode Jobs, structured after the teacher's usecase.SyncState
// ticker-reconciliation loop.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"mediapipeline/internal/domain"
	"mediapipeline/internal/domain/ports"
	"mediapipeline/internal/metrics"
)

const (
	progressiveThresholdFraction = 0.05
	progressiveThresholdMinBytes = 100 * 1024 * 1024  // 100 MiB
	missedCompletionFraction     = 0.99
	missedCompletionMinBytes     = 100 * 1024 * 1024
	minVideoFileBytes            = 10 * 1024 * 1024 // 10 MiB
	titleOverlapMinChars         = 10
)

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true,
}

// FileSystem abstracts the filesystem calls the Monitor needs, so tests can
// substitute an in-memory fake instead of touching disk.
type FileSystem interface {
	Stat(path string) (size int64, exists bool)
	ListDir(path string) ([]Entry, error)
}

// Entry is one directory entry as seen by FileSystem.ListDir.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

type Monitor struct {
	Store      ports.MediaRecordStore
	Queue      ports.JobQueue
	Downloader ports.Downloader
	FS         FileSystem
	Logger     *slog.Logger
	HLSDir     string
	Interval   time.Duration

	mu         sync.Mutex
	inFlight   map[domain.MediaID]struct{}
}

func New(store ports.MediaRecordStore, queue ports.JobQueue, downloader ports.Downloader, fs FileSystem, logger *slog.Logger, hlsDir string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		Store:      store,
		Queue:      queue,
		Downloader: downloader,
		FS:         fs,
		Logger:     logger,
		HLSDir:     hlsDir,
		Interval:   interval,
		inFlight:   make(map[domain.MediaID]struct{}),
	}
}

// Restore reconstructs the single-flight set from Media Records currently in
// TRANSCODING, as required on Monitor start (§4.2).
func (m *Monitor) Restore(ctx context.Context) error {
	status := domain.StatusTranscoding
	records, err := m.Store.List(ctx, domain.Filter{Status: &status})
	if err != nil {
		return err
	}
	m.mu.Lock()
	for _, r := range records {
		m.inFlight[r.ID] = struct{}{}
	}
	metrics.JobsInFlight.Set(float64(len(m.inFlight)))
	m.mu.Unlock()
	return nil
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.MonitorTicksTotal.Inc()
		metrics.MonitorTickDuration.Observe(time.Since(start).Seconds())
	}()

	m.missedCompletionSweep(ctx)
	m.completionSweep(ctx)
	m.errorSweep(ctx)
	m.activeReconciliation(ctx)
	m.stoppedReconciliation(ctx)
}

// errorSweep implements the other half of §4.2's single-flight removal
// rule: entries are removed "only on Worker-published ready or error".
// completionSweep above handles ready via its own disk-based READY
// detection; this handles error by polling the Store for items the Worker
// has already marked ERROR, the same poll-the-Store technique
// completionSweep uses rather than wiring a LiveStatusStore dependency into
// the Monitor for a one-off check. Idempotent: clearing an id already
// absent from inFlight is a no-op.
func (m *Monitor) errorSweep(ctx context.Context) {
	status := domain.StatusError
	records, err := m.Store.List(ctx, domain.Filter{Status: &status})
	if err != nil {
		m.Logger.Warn("monitor: error sweep list failed", slog.String("error", err.Error()))
		return
	}
	for _, rec := range records {
		m.clearInFlight(rec.ID)
	}
}

// missedCompletionSweep implements step 1 of §4.2's tick order.
func (m *Monitor) missedCompletionSweep(ctx context.Context) {
	status := domain.StatusDownloading
	records, err := m.Store.List(ctx, domain.Filter{Status: &status})
	if err != nil {
		m.Logger.Warn("monitor: missed-completion list failed", slog.String("error", err.Error()))
		return
	}
	for _, rec := range records {
		if rec.SourceVideoPath == "" {
			continue
		}
		size, exists := m.FS.Stat(rec.SourceVideoPath)
		if !exists {
			continue
		}
		if crossedThreshold(size, rec.TotalBytes, missedCompletionFraction, missedCompletionMinBytes) {
			m.transitionToTranscoding(ctx, rec)
		}
	}
}

// completionSweep implements step 2: on-disk completeness check for items
// already TRANSCODING — every output_<rung>.m3u8 in the item's HLS directory
// must end with #EXT-X-ENDLIST (I3/R2: idempotent — a steady-state READY item
// is never revisited since the filter excludes it).
func (m *Monitor) completionSweep(ctx context.Context) {
	status := domain.StatusTranscoding
	records, err := m.Store.List(ctx, domain.Filter{Status: &status})
	if err != nil {
		m.Logger.Warn("monitor: completion sweep list failed", slog.String("error", err.Error()))
		return
	}
	for _, rec := range records {
		complete, rungs := m.rungsComplete(rec.ID)
		if !complete {
			continue
		}
		ready := domain.StatusReady
		full := 100.0
		if err := m.Store.UpdateProgress(ctx, rec.ID, domain.ProgressUpdate{Status: &ready}); err != nil {
			m.Logger.Warn("monitor: completion transition failed", slog.String("id", string(rec.ID)), slog.String("error", err.Error()))
			continue
		}
		rec.Status = ready
		rec.TranscodeProgress = full
		rec.AvailableRungs = rungs
		if err := m.Store.Update(ctx, rec); err != nil {
			m.Logger.Warn("monitor: completion record update failed", slog.String("id", string(rec.ID)), slog.String("error", err.Error()))
		}
		m.clearInFlight(rec.ID)
		metrics.MonitorTransitionsTotal.WithLabelValues(string(domain.StatusTranscoding), string(ready)).Inc()
	}
}

func (m *Monitor) rungsComplete(id domain.MediaID) (bool, []string) {
	dir := filepath.Join(m.HLSDir, string(id)+"_hls")
	entries, err := m.FS.ListDir(dir)
	if err != nil {
		return false, nil
	}
	var rungs []string
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".m3u8") || !strings.HasPrefix(e.Name, "output_") {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, e.Name))
		if err != nil || !strings.Contains(string(body), "#EXT-X-ENDLIST") {
			return false, nil
		}
		rungs = append(rungs, strings.TrimSuffix(strings.TrimPrefix(e.Name, "output_"), ".m3u8"))
	}
	return len(rungs) > 0, rungs
}

// activeReconciliation implements step 3.
func (m *Monitor) activeReconciliation(ctx context.Context) {
	active, err := m.Downloader.Active(ctx)
	if err != nil {
		m.Logger.Warn("monitor: active list failed", slog.String("error", err.Error()))
		return
	}
	var totalSpeed int64
	for _, status := range active {
		totalSpeed += status.DownloadSpeed
		rec, err := m.findByHandle(ctx, status.Handle)
		if err != nil {
			continue
		}
		downloaded := status.CompletedLength
		total := status.TotalLength
		update := domain.ProgressUpdate{
			DownloadedBytes: &downloaded,
			TotalBytes:      &total,
		}

		videoPath := m.locateVideoFile(status, rec)
		if videoPath != "" {
			update.SourceVideoPath = &videoPath
		}

		if err := m.Store.UpdateProgress(ctx, rec.ID, update); err != nil {
			m.Logger.Warn("monitor: active update failed", slog.String("id", string(rec.ID)), slog.String("error", err.Error()))
			continue
		}

		if rec.Status == domain.StatusDownloading && videoPath != "" &&
			crossedThreshold(downloaded, total, progressiveThresholdFraction, progressiveThresholdMinBytes) {
			rec.SourceVideoPath = videoPath
			m.transitionToTranscoding(ctx, rec)
		}
	}
	metrics.DownloadSpeedBytes.Set(float64(totalSpeed))
}

// stoppedReconciliation implements step 4.
func (m *Monitor) stoppedReconciliation(ctx context.Context) {
	stopped, err := m.Downloader.Stopped(ctx, 0, 1000)
	if err != nil {
		m.Logger.Warn("monitor: stopped list failed", slog.String("error", err.Error()))
		return
	}
	for _, status := range stopped {
		if status.Status != ports.DownloadComplete {
			continue
		}
		rec, err := m.findByHandle(ctx, status.Handle)
		if err != nil || rec.Status == domain.StatusReady {
			continue
		}
		videoPath := m.locateVideoFile(status, rec)
		if videoPath == "" {
			continue
		}
		rec.SourceVideoPath = videoPath
		m.transitionToTranscoding(ctx, rec)
	}
}

func (m *Monitor) findByHandle(ctx context.Context, handle ports.Handle) (domain.MediaRecord, error) {
	records, err := m.Store.List(ctx, domain.Filter{})
	if err != nil {
		return domain.MediaRecord{}, err
	}
	for _, r := range records {
		if r.DownloaderHandle == string(handle) {
			return r, nil
		}
	}
	return domain.MediaRecord{}, domain.ErrNotFound
}

// transitionToTranscoding applies the single-flight rule and, on first
// enqueue for an item, moves it to TRANSCODING and pushes a Transcode Job.
func (m *Monitor) transitionToTranscoding(ctx context.Context, rec domain.MediaRecord) {
	if rec.SourceVideoPath == "" {
		return
	}
	m.mu.Lock()
	if _, ok := m.inFlight[rec.ID]; ok {
		m.mu.Unlock()
		return
	}
	m.inFlight[rec.ID] = struct{}{}
	metrics.JobsInFlight.Set(float64(len(m.inFlight)))
	m.mu.Unlock()

	if !domain.CanTransition(rec.Status, domain.StatusTranscoding) {
		m.clearInFlight(rec.ID)
		return
	}

	transcoding := domain.StatusTranscoding
	videoPath := rec.SourceVideoPath
	if err := m.Store.UpdateProgress(ctx, rec.ID, domain.ProgressUpdate{
		Status:          &transcoding,
		SourceVideoPath: &videoPath,
	}); err != nil {
		m.Logger.Warn("monitor: transition failed", slog.String("id", string(rec.ID)), slog.String("error", err.Error()))
		m.clearInFlight(rec.ID)
		return
	}

	job := domain.Job{
		Kind:      domain.JobKindHLSLadder,
		ItemID:    rec.ID,
		InputPath: rec.SourceVideoPath,
		OutputDir: filepath.Join(m.HLSDir, string(rec.ID)+"_hls"),
		Options:   domain.DefaultJobOptions(),
	}
	if err := m.Queue.Push(ctx, job); err != nil {
		m.Logger.Warn("monitor: enqueue failed", slog.String("id", string(rec.ID)), slog.String("error", err.Error()))
		m.clearInFlight(rec.ID)
		return
	}

	metrics.MonitorTransitionsTotal.WithLabelValues(string(rec.Status), string(transcoding)).Inc()
	metrics.JobsEnqueuedTotal.WithLabelValues(string(job.Kind)).Inc()
	m.Logger.Info("monitor: enqueued transcode job", slog.String("id", string(rec.ID)))
}

// clearInFlight is called when the Worker publishes "ready" or "error" for
// an item (§4.2's single-flight removal rule).
func (m *Monitor) clearInFlight(id domain.MediaID) {
	m.mu.Lock()
	delete(m.inFlight, id)
	metrics.JobsInFlight.Set(float64(len(m.inFlight)))
	m.mu.Unlock()
}

func crossedThreshold(have, total int64, fraction float64, minBytes int64) bool {
	if have >= minBytes {
		return true
	}
	if total <= 0 {
		return false
	}
	return float64(have) >= float64(total)*fraction
}

// locateVideoFile implements the two video-file location heuristics of §4.2.
func (m *Monitor) locateVideoFile(status ports.DownloadStatus, rec domain.MediaRecord) string {
	if path := announcedFilesPath(status); path != "" {
		return path
	}
	return m.titleDirectedWalk(status.Dir, rec.Title)
}

func announcedFilesPath(status ports.DownloadStatus) string {
	for _, f := range status.Files {
		if f.Length <= minVideoFileBytes {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Path))
		if videoExtensions[ext] {
			return f.Path
		}
	}
	return ""
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

func normalize(s string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "")
}

func (m *Monitor) titleDirectedWalk(downloadPath, title string) string {
	if downloadPath == "" || title == "" {
		return ""
	}
	entries, err := m.FS.ListDir(downloadPath)
	if err != nil {
		return ""
	}
	normalizedTitle := normalize(title)
	var bestPath string
	var bestSize int64
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		if !overlapsByAtLeast(normalize(e.Name), normalizedTitle, titleOverlapMinChars) {
			continue
		}
		sub, err := m.FS.ListDir(filepath.Join(downloadPath, e.Name))
		if err != nil {
			continue
		}
		for _, f := range sub {
			if f.IsDir || f.Size <= minVideoFileBytes {
				continue
			}
			ext := strings.ToLower(filepath.Ext(f.Name))
			if !videoExtensions[ext] {
				continue
			}
			if f.Size > bestSize {
				bestSize = f.Size
				bestPath = filepath.Join(downloadPath, e.Name, f.Name)
			}
		}
	}
	return bestPath
}

// overlapsByAtLeast reports whether a and b share a contiguous run of at
// least minChars characters as a naive substring overlap check.
func overlapsByAtLeast(a, b string, minChars int) bool {
	if len(a) < minChars || len(b) < minChars {
		return false
	}
	shorter, longer := a, b
	if len(longer) < len(shorter) {
		shorter, longer = longer, shorter
	}
	for length := len(shorter); length >= minChars; length-- {
		for start := 0; start+length <= len(shorter); start++ {
			if strings.Contains(longer, shorter[start:start+length]) {
				return true
			}
		}
	}
	return false
}
