package domain

import "time"

// MediaID is the external catalog identifier, e.g. "tt0111161".
type MediaID string

// SourceRung is the quality rung the source file was acquired at. It is
// distinct from the output ladder rung names in Rung — this describes what
// was downloaded, not what gets transcoded out.
type SourceRung string

const (
	SourceRung720p  SourceRung = "720p"
	SourceRung1080p SourceRung = "1080p"
	SourceRung2160p SourceRung = "2160p"
	SourceRung3D    SourceRung = "3D"
)

// MediaRecord is the durable per-item record described in §3.1. The Monitor
// owns download_progress/download_path/the DOWNLOADING→TRANSCODING
// transition; the Worker owns transcode_progress/available_rungs/READY. The
// one exception is the Monitor's completion sweep, which also writes READY,
// transcode_progress=100 and available_rungs once every rung playlist on
// disk is closed.
type MediaRecord struct {
	ID                MediaID    `json:"id" bson:"_id"`
	Status            Status     `json:"status" bson:"status"`
	DownloaderHandle  string     `json:"downloaderHandle,omitempty" bson:"downloaderHandle,omitempty"`
	SourceURI         string     `json:"sourceUri,omitempty" bson:"sourceUri,omitempty"`
	Title             string     `json:"title,omitempty" bson:"title,omitempty"`
	SelectedRung      SourceRung `json:"selectedRung,omitempty" bson:"selectedRung,omitempty"`
	TotalBytes        int64      `json:"totalBytes" bson:"totalBytes"`
	DownloadedBytes   int64      `json:"downloadedBytes" bson:"downloadedBytes"`
	DownloadProgress  float64    `json:"downloadProgress" bson:"downloadProgress"`
	DownloadPath      string     `json:"downloadPath,omitempty" bson:"downloadPath,omitempty"`
	SourceVideoPath   string     `json:"sourceVideoPath,omitempty" bson:"sourceVideoPath,omitempty"`
	TranscodeProgress float64    `json:"transcodeProgress" bson:"transcodeProgress"`
	AvailableRungs    []string   `json:"availableRungs,omitempty" bson:"availableRungs,omitempty"`
	TranscodedPath    string     `json:"transcodedPath,omitempty" bson:"transcodedPath,omitempty"`
	FullyTranscoded   bool       `json:"fullyTranscoded,omitempty" bson:"fullyTranscoded,omitempty"`
	ErrorMessage      string     `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`
	LastWatchedAt     *time.Time `json:"lastWatchedAt,omitempty" bson:"lastWatchedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// DownloadProgressOf computes the fixed-point percentage invariant (I1):
// round(downloaded_bytes/total_bytes * 100, 2).
func DownloadProgressOf(downloaded, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(downloaded) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return roundTo2(pct)
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// ProgressUpdate is a partial, field-scoped update. The Monitor sets the
// download-side fields (DownloadedBytes, TotalBytes, SourceVideoPath, and
// the →TRANSCODING Status transition), plus the READY Status from its
// completion sweep; the Worker sets the transcode-side fields
// (TranscodeProgress, AvailableRungs, TranscodedPath, FullyTranscoded,
// ErrorMessage, and the TRANSCODING→READY/ERROR Status transitions).
type ProgressUpdate struct {
	Status            *Status
	DownloadedBytes   *int64
	TotalBytes        *int64
	DownloadPath      *string
	SourceVideoPath   *string
	TranscodeProgress *float64
	AvailableRungs    *[]string
	TranscodedPath    *string
	FullyTranscoded   *bool
	ErrorMessage      *string
}

// Filter selects a subset of records, mirroring the teacher's list-query
// shape (status predicate plus pagination).
type Filter struct {
	Status *Status
	Limit  int
	Offset int
}
