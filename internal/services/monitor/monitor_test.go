package monitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"mediapipeline/internal/domain"
	"mediapipeline/internal/domain/ports"
)

type fakeStore struct {
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
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) Update(ctx context.Context, rec domain.MediaRecord) error {
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) UpdateProgress(ctx context.Context, id domain.MediaID, update domain.ProgressUpdate) error {
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
	s.records[id] = rec
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return domain.MediaRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) List(ctx context.Context, filter domain.Filter) ([]domain.MediaRecord, error) {
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
	delete(s.records, id)
	return nil
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

type fakeDownloader struct {
	active  []ports.DownloadStatus
	stopped []ports.DownloadStatus
}

func (d *fakeDownloader) Add(ctx context.Context, uri string) (ports.Handle, error) { return "", nil }
func (d *fakeDownloader) Status(ctx context.Context, h ports.Handle) (ports.DownloadStatus, error) {
	return ports.DownloadStatus{}, nil
}
func (d *fakeDownloader) Active(ctx context.Context) ([]ports.DownloadStatus, error) {
	return d.active, nil
}
func (d *fakeDownloader) Stopped(ctx context.Context, offset, count int) ([]ports.DownloadStatus, error) {
	return d.stopped, nil
}
func (d *fakeDownloader) Remove(ctx context.Context, h ports.Handle) error { return nil }

type fakeFS struct {
	sizes map[string]int64
	dirs  map[string][]Entry
}

func (f *fakeFS) Stat(path string) (int64, bool) {
	size, ok := f.sizes[path]
	return size, ok
}

func (f *fakeFS) ListDir(path string) ([]Entry, error) {
	entries, ok := f.dirs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entries, nil
}

func TestCrossedThreshold(t *testing.T) {
	cases := []struct {
		name    string
		have    int64
		total   int64
		frac    float64
		minB    int64
		want    bool
	}{
		{"min bytes satisfied", 100 * 1024 * 1024, 10_000_000_000, 0.05, 100 * 1024 * 1024, true},
		{"fraction satisfied", 600, 1000, 0.5, 1_000_000_000, true},
		{"neither satisfied", 10, 1000, 0.5, 1_000_000_000, false},
		{"zero total", 10, 0, 0.5, 1_000_000_000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := crossedThreshold(tc.have, tc.total, tc.frac, tc.minB)
			if got != tc.want {
				t.Errorf("crossedThreshold(%d,%d,%v,%d) = %v, want %v", tc.have, tc.total, tc.frac, tc.minB, got, tc.want)
			}
		})
	}
}

func TestAnnouncedFilesPath(t *testing.T) {
	status := ports.DownloadStatus{
		Files: []ports.DownloadFile{
			{Path: "/d/readme.txt", Length: 1024},
			{Path: "/d/sample.mkv", Length: 1024}, // too small
			{Path: "/d/movie.mkv", Length: 20 * 1024 * 1024},
		},
	}
	got := announcedFilesPath(status)
	if got != "/d/movie.mkv" {
		t.Errorf("announcedFilesPath: got %q", got)
	}
}

func TestOverlapsByAtLeast(t *testing.T) {
	if !overlapsByAtLeast(normalize("The.Shawshank.Redemption.1994"), normalize("The Shawshank Redemption"), 10) {
		t.Error("expected overlap to be detected")
	}
	if overlapsByAtLeast(normalize("Completely Different"), normalize("The Shawshank Redemption"), 10) {
		t.Error("expected no overlap")
	}
}

func TestTransitionToTranscodingEnqueuesOnce(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt1", Status: domain.StatusDownloading, SourceVideoPath: "/d/movie.mkv"}
	store := newFakeStore(rec)
	queue := &fakeQueue{}
	m := New(store, queue, &fakeDownloader{}, &fakeFS{}, testLogger(), "/hls", time.Second)

	m.transitionToTranscoding(context.Background(), rec)
	m.transitionToTranscoding(context.Background(), rec)

	if len(queue.pushed) != 1 {
		t.Fatalf("expected exactly one enqueue, got %d", len(queue.pushed))
	}
	got := store.records["tt1"]
	if got.Status != domain.StatusTranscoding {
		t.Errorf("status: got %q", got.Status)
	}
}

func TestMissedCompletionSweepTransitions(t *testing.T) {
	rec := domain.MediaRecord{
		ID: "tt2", Status: domain.StatusDownloading,
		SourceVideoPath: "/d/movie.mkv", TotalBytes: 1000,
	}
	store := newFakeStore(rec)
	queue := &fakeQueue{}
	fs := &fakeFS{sizes: map[string]int64{"/d/movie.mkv": 999}}
	m := New(store, queue, &fakeDownloader{}, fs, testLogger(), "/hls", time.Second)

	m.missedCompletionSweep(context.Background())

	if len(queue.pushed) != 1 {
		t.Fatalf("expected transcode enqueued, got %d jobs", len(queue.pushed))
	}
}

func TestErrorSweepClearsSingleFlightSet(t *testing.T) {
	errored := domain.MediaRecord{ID: "tt5", Status: domain.StatusError}
	store := newFakeStore(errored)
	m := New(store, &fakeQueue{}, &fakeDownloader{}, &fakeFS{}, testLogger(), "/hls", time.Second)
	m.mu.Lock()
	m.inFlight["tt5"] = struct{}{}
	m.mu.Unlock()

	m.errorSweep(context.Background())

	m.mu.Lock()
	_, ok := m.inFlight["tt5"]
	m.mu.Unlock()
	if ok {
		t.Error("expected tt5 to be cleared from the single-flight set after erroring")
	}
}

func TestRestoreRebuildsSingleFlightSet(t *testing.T) {
	rec := domain.MediaRecord{ID: "tt3", Status: domain.StatusTranscoding}
	store := newFakeStore(rec)
	m := New(store, &fakeQueue{}, &fakeDownloader{}, &fakeFS{}, testLogger(), "/hls", time.Second)

	if err := m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	m.mu.Lock()
	_, ok := m.inFlight["tt3"]
	m.mu.Unlock()
	if !ok {
		t.Error("expected tt3 to be in the restored single-flight set")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
