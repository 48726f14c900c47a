package ports

import (
	"context"
	"time"

	"mediapipeline/internal/domain"
)

// MediaRecordStore is the durable per-item record store (§3.1, §6.4). Each
// MediaRecord field names exactly one writer (§5); callers are expected to
// honor that split rather than the store enforcing it.
type MediaRecordStore interface {
	Create(ctx context.Context, rec domain.MediaRecord) error
	Update(ctx context.Context, rec domain.MediaRecord) error
	UpdateProgress(ctx context.Context, id domain.MediaID, update domain.ProgressUpdate) error
	Get(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error)
	List(ctx context.Context, filter domain.Filter) ([]domain.MediaRecord, error)
	Delete(ctx context.Context, id domain.MediaID) error
}

// JobQueue is the FIFO job queue described in §2/§6.2: push to tail,
// blocking pop from head with a timeout.
type JobQueue interface {
	Push(ctx context.Context, job domain.Job) error
	Pop(ctx context.Context, timeout time.Duration) (domain.Job, bool, error)
}

// LiveStatusStore is the ephemeral key-value view described in §3.3/§6.2.
type LiveStatusStore interface {
	Publish(ctx context.Context, id domain.MediaID, status domain.LiveStatus) error
	Get(ctx context.Context, id domain.MediaID) (domain.LiveStatus, bool, error)
	PublishHeartbeat(ctx context.Context, hb domain.Heartbeat) error
}
