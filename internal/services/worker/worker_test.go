package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"mediapipeline/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[domain.MediaID]domain.MediaRecord
}

func newFakeStore(recs ...domain.MediaRecord) *fakeStore {
	s := &fakeStore{records: make(map[domain.MediaID]domain.MediaRecord)}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) Create(ctx context.Context, rec domain.MediaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) Update(ctx context.Context, rec domain.MediaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) UpdateProgress(ctx context.Context, id domain.MediaID, update domain.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.DownloadedBytes != nil {
		rec.DownloadedBytes = *update.DownloadedBytes
	}
	if update.TotalBytes != nil {
		rec.TotalBytes = *update.TotalBytes
	}
	if update.DownloadPath != nil {
		rec.DownloadPath = *update.DownloadPath
	}
	if update.SourceVideoPath != nil {
		rec.SourceVideoPath = *update.SourceVideoPath
	}
	if update.TranscodeProgress != nil {
		rec.TranscodeProgress = *update.TranscodeProgress
	}
	if update.AvailableRungs != nil {
		rec.AvailableRungs = *update.AvailableRungs
	}
	if update.TranscodedPath != nil {
		rec.TranscodedPath = *update.TranscodedPath
	}
	if update.FullyTranscoded != nil {
		rec.FullyTranscoded = *update.FullyTranscoded
	}
	if update.ErrorMessage != nil {
		rec.ErrorMessage = *update.ErrorMessage
	}
	s.records[id] = rec
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.MediaRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) List(ctx context.Context, filter domain.Filter) ([]domain.MediaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MediaRecord
	for _, r := range s.records {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, id domain.MediaID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeStore) get(id domain.MediaID) domain.MediaRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

type fakeQueue struct {
	pushed []domain.Job
}

func (q *fakeQueue) Push(ctx context.Context, job domain.Job) error {
	q.pushed = append(q.pushed, job)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context, timeout time.Duration) (domain.Job, bool, error) {
	return domain.Job{}, false, nil
}

type fakeLiveStatus struct {
	mu        sync.Mutex
	published []domain.LiveStatus
	heartbeats []domain.Heartbeat
}

func (l *fakeLiveStatus) Publish(ctx context.Context, id domain.MediaID, status domain.LiveStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.published = append(l.published, status)
	return nil
}

func (l *fakeLiveStatus) Get(ctx context.Context, id domain.MediaID) (domain.LiveStatus, bool, error) {
	return domain.LiveStatus{}, false, nil
}

func (l *fakeLiveStatus) PublishHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.heartbeats = append(l.heartbeats, hb)
	return nil
}

type fakeProber struct {
	probe domain.Probe
	err   error
}

func (p *fakeProber) Probe(ctx context.Context, filePath string) (domain.Probe, error) {
	return p.probe, p.err
}

type fakeEncoder struct {
	err       error
	onProgressSamples []int64
}

func (e *fakeEncoder) Run(ctx context.Context, args []string, onProgress func(int64)) error {
	if onProgress != nil {
		for _, s := range e.onProgressSamples {
			onProgress(s)
		}
	}
	return e.err
}

type fakeFS struct {
	mu    sync.Mutex
	sizes map[string]int64
	dirs  map[string][]Entry
}

func newFakeFS() *fakeFS {
	return &fakeFS{sizes: make(map[string]int64), dirs: make(map[string][]Entry)}
}

func (f *fakeFS) Stat(path string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.sizes[path]
	return size, ok
}

func (f *fakeFS) ListDir(path string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, ok := f.dirs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entries, nil
}

func (f *fakeFS) MkdirAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.dirs[path]; !ok {
		f.dirs[path] = nil
	}
	return nil
}

func (f *fakeFS) WriteFile(path string, data []byte) error {
	return nil
}

func (f *fakeFS) Remove(path string) error {
	return nil
}

func (f *fakeFS) Rename(oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size, ok := f.sizes[oldPath]; ok {
		f.sizes[newPath] = size
		delete(f.sizes, oldPath)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunLadderHappyPath(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt1", Status: domain.StatusTranscoding}
	store := newFakeStore(rec)
	live := &fakeLiveStatus{}
	probe := domain.Probe{DurationSeconds: 120, Width: 640, Height: 360}
	prober := &fakeProber{probe: probe}
	encoder := &fakeEncoder{}
	fs := newFakeFS()
	fs.sizes["/in/movie.mkv"] = 50 * 1024 * 1024

	w := New(store, &fakeQueue{}, live, prober, encoder, fs, testLogger(), "/hls", time.Second, time.Minute)

	job := domain.Job{
		Kind:      domain.JobKindHLSLadder,
		ItemID:    "tt1",
		InputPath: "/in/movie.mkv",
		OutputDir: "/hls/tt1_hls",
		Options: domain.JobOptions{
			SegmentSeconds: 10, Preset: "veryfast", CRF: 28,
			Rungs:       []domain.Rung{{Name: "360p", Width: 640, Height: 360, VideoBitrate: "800k", AudioBitrate: "96k"}},
			MaxParallel: 1,
		},
	}

	w.runLadder(context.Background(), job)

	got := store.get("tt1")
	if got.Status != domain.StatusReady {
		t.Errorf("status = %q, want READY", got.Status)
	}
	if got.TranscodeProgress != 100 {
		t.Errorf("transcodeProgress = %v, want 100", got.TranscodeProgress)
	}
	if len(got.AvailableRungs) != 1 || got.AvailableRungs[0] != "360p" {
		t.Errorf("availableRungs = %v", got.AvailableRungs)
	}
}

func TestRunLadderMissingInputFailsJob(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt2", Status: domain.StatusTranscoding}
	store := newFakeStore(rec)
	w := New(store, &fakeQueue{}, &fakeLiveStatus{}, &fakeProber{}, &fakeEncoder{}, newFakeFS(), testLogger(), "/hls", time.Second, time.Minute)

	job := domain.Job{ItemID: "tt2", InputPath: "/missing.mkv", OutputDir: "/hls/tt2_hls"}
	w.runLadder(context.Background(), job)

	got := store.get("tt2")
	if got.Status != domain.StatusError {
		t.Errorf("status = %q, want ERROR", got.Status)
	}
}

func TestRunLadderInvalidProbeFailsJob(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt3", Status: domain.StatusTranscoding}
	store := newFakeStore(rec)
	fs := newFakeFS()
	fs.sizes["/in/movie.mkv"] = 1024
	w := New(store, &fakeQueue{}, &fakeLiveStatus{}, &fakeProber{probe: domain.Probe{}}, &fakeEncoder{}, fs, testLogger(), "/hls", time.Second, time.Minute)

	job := domain.Job{ItemID: "tt3", InputPath: "/in/movie.mkv", OutputDir: "/hls/tt3_hls"}
	w.runLadder(context.Background(), job)

	got := store.get("tt3")
	if got.Status != domain.StatusError {
		t.Errorf("status = %q, want ERROR", got.Status)
	}
}

func TestRunLadderCorruptMP4FailsJobWithMoovAtomMessage(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt9", Status: domain.StatusTranscoding}
	store := newFakeStore(rec)
	fs := newFakeFS()
	fs.sizes["/in/movie.mp4"] = 1024
	probeErr := errors.New(`ffprobe failed: exit status 1: [mov,mp4,m4a,3gp,3g2,mj2 @ 0x0] moov atom not found`)
	w := New(store, &fakeQueue{}, &fakeLiveStatus{}, &fakeProber{err: probeErr}, &fakeEncoder{}, fs, testLogger(), "/hls", time.Second, time.Minute)

	job := domain.Job{ItemID: "tt9", InputPath: "/in/movie.mp4", OutputDir: "/hls/tt9_hls"}
	w.runLadder(context.Background(), job)

	got := store.get("tt9")
	if got.Status != domain.StatusError {
		t.Errorf("status = %q, want ERROR", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "moov atom") {
		t.Errorf("errorMessage = %q, want it to contain %q", got.ErrorMessage, "moov atom")
	}
}

func TestRunLadderNoRungsFitFailsJob(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt4", Status: domain.StatusTranscoding}
	store := newFakeStore(rec)
	fs := newFakeFS()
	fs.sizes["/in/movie.mkv"] = 1024
	probe := domain.Probe{DurationSeconds: 10, Width: 100, Height: 100}
	w := New(store, &fakeQueue{}, &fakeLiveStatus{}, &fakeProber{probe: probe}, &fakeEncoder{}, fs, testLogger(), "/hls", time.Second, time.Minute)

	job := domain.Job{
		ItemID: "tt4", InputPath: "/in/movie.mkv", OutputDir: "/hls/tt4_hls",
		Options: domain.JobOptions{Rungs: domain.DefaultLadder()},
	}
	w.runLadder(context.Background(), job)

	got := store.get("tt4")
	if got.Status != domain.StatusError {
		t.Errorf("status = %q, want ERROR", got.Status)
	}
}

func TestRunSingleMP4HappyPath(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt5", Status: domain.StatusTranscoding}
	store := newFakeStore(rec)
	fs := newFakeFS()
	fs.sizes["/in/movie.mkv"] = 50 * 1024 * 1024
	probe := domain.Probe{DurationSeconds: 100, Width: 1920, Height: 1080}
	encoder := &fakeEncoder{onProgressSamples: []int64{50_000_000}}

	w := New(store, &fakeQueue{}, &fakeLiveStatus{}, &fakeProber{probe: probe}, encoder, fs, testLogger(), "/hls", time.Second, time.Minute)

	job := domain.Job{ItemID: "tt5", InputPath: "/in/movie.mkv", OutputDir: "/hls/tt5_single"}
	w.runSingleMP4(context.Background(), job)

	got := store.get("tt5")
	if got.Status != domain.StatusReady {
		t.Errorf("status = %q, want READY", got.Status)
	}
	if !got.FullyTranscoded {
		t.Error("expected FullyTranscoded = true")
	}
	if got.TranscodedPath == "" {
		t.Error("expected TranscodedPath to be set")
	}
}

func TestRunSingleMP4EncodeFailureMarksError(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt6", Status: domain.StatusTranscoding}
	store := newFakeStore(rec)
	fs := newFakeFS()
	fs.sizes["/in/movie.mkv"] = 50 * 1024 * 1024
	probe := domain.Probe{DurationSeconds: 100, Width: 1920, Height: 1080}
	encoder := &fakeEncoder{err: errors.New("boom")}

	w := New(store, &fakeQueue{}, &fakeLiveStatus{}, &fakeProber{probe: probe}, encoder, fs, testLogger(), "/hls", time.Second, time.Minute)

	job := domain.Job{ItemID: "tt6", InputPath: "/in/movie.mkv", OutputDir: "/hls/tt6_single"}
	w.runSingleMP4(context.Background(), job)

	got := store.get("tt6")
	if got.Status != domain.StatusError {
		t.Errorf("status = %q, want ERROR", got.Status)
	}
}

func TestRecoverySweepResetsOrErrors(t *testing.T) {
	withSource := domain.MediaRecord{ID: "tt7", Status: domain.StatusTranscoding, TranscodeProgress: 40, SourceVideoPath: "/d/movie.mkv"}
	withoutSource := domain.MediaRecord{ID: "tt8", Status: domain.StatusTranscoding, TranscodeProgress: 20}
	store := newFakeStore(withSource, withoutSource)
	fs := newFakeFS()
	queue := &fakeQueue{}
	w := New(store, queue, &fakeLiveStatus{}, &fakeProber{}, &fakeEncoder{}, fs, testLogger(), "/hls", time.Second, time.Minute)

	if err := w.RecoverySweep(context.Background()); err != nil {
		t.Fatalf("RecoverySweep: %v", err)
	}

	got7 := store.get("tt7")
	if got7.TranscodeProgress != 0 {
		t.Errorf("tt7 transcodeProgress = %v, want 0", got7.TranscodeProgress)
	}
	if got7.Status != domain.StatusTranscoding {
		t.Errorf("tt7 status = %q, want TRANSCODING", got7.Status)
	}

	got8 := store.get("tt8")
	if got8.Status != domain.StatusError {
		t.Errorf("tt8 status = %q, want ERROR", got8.Status)
	}

	// E4: recovery must re-enqueue the recovered item itself (the Monitor's
	// single-flight set already believes tt7 is in flight and will no-op).
	if len(queue.pushed) != 1 {
		t.Fatalf("pushed jobs = %d, want 1", len(queue.pushed))
	}
	if queue.pushed[0].ItemID != "tt7" {
		t.Errorf("pushed job ItemID = %q, want tt7", queue.pushed[0].ItemID)
	}
	if queue.pushed[0].InputPath != "/d/movie.mkv" {
		t.Errorf("pushed job InputPath = %q, want /d/movie.mkv", queue.pushed[0].InputPath)
	}
}

func TestHeartbeatLoopPublishes(t *testing.T) {
	live := &fakeLiveStatus{}
	w := New(newFakeStore(), &fakeQueue{}, live, &fakeProber{}, &fakeEncoder{}, newFakeFS(), testLogger(), "/hls", time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	w.heartbeatLoop(ctx)

	live.mu.Lock()
	defer live.mu.Unlock()
	if len(live.heartbeats) == 0 {
		t.Error("expected at least one heartbeat published")
	}
}
