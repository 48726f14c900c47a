package ports

import "context"

// Handle is the opaque, downloader-minted identifier for one active
// download, used in every subsequent RPC call (GLOSSARY).
type Handle string

// DownloadStatusValue is one of the status strings the downloader reports
// (§6.1).
type DownloadStatusValue string

const (
	DownloadActive  DownloadStatusValue = "active"
	DownloadComplete DownloadStatusValue = "complete"
	DownloadPaused  DownloadStatusValue = "paused"
	DownloadError   DownloadStatusValue = "error"
)

// DownloadFile is one entry in the downloader's per-download file list,
// used by the Monitor's announced-files video-location heuristic (§4.2).
type DownloadFile struct {
	Path   string
	Length int64
}

// DownloadStatus is the decoded tellStatus/tellActive/tellStopped response
// shape (§6.1).
type DownloadStatus struct {
	Handle          Handle
	Status          DownloadStatusValue
	TotalLength     int64
	CompletedLength int64
	DownloadSpeed   int64
	Files           []DownloadFile
	Dir             string
	InfoHash        string
}

// Downloader is the thin adapter over the external downloader's JSON-RPC
// surface (§2, §6.1).
type Downloader interface {
	Add(ctx context.Context, uri string) (Handle, error)
	Status(ctx context.Context, h Handle) (DownloadStatus, error)
	Active(ctx context.Context) ([]DownloadStatus, error)
	Stopped(ctx context.Context, offset, count int) ([]DownloadStatus, error)
	Remove(ctx context.Context, h Handle) error
}
