package ports

import (
	"context"

	"mediapipeline/internal/domain"
)

// Prober performs the metadata-inspection invocation of §4.3.1 step 2.
type Prober interface {
	Probe(ctx context.Context, filePath string) (domain.Probe, error)
}
