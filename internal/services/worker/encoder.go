package worker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Encoder abstracts invocation of the external video encoder so tests can
// substitute a fake instead of shelling out to ffmpeg, mirroring the
// teacher's hlsManager.run's use of exec.CommandContext.
type Encoder interface {
	// Run blocks until the encoder exits. onProgress, when non-nil, is
	// called with each out_time_us value reported on the encoder's
	// dedicated "-progress pipe:1" stream.
	Run(ctx context.Context, args []string, onProgress func(outTimeUs int64)) error
}

// FFmpegEncoder is the production Encoder, backed by the ffmpeg binary.
type FFmpegEncoder struct {
	Path string
}

func NewFFmpegEncoder(path string) FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	return FFmpegEncoder{Path: path}
}

func (e FFmpegEncoder) Run(ctx context.Context, args []string, onProgress func(int64)) error {
	cmd := exec.CommandContext(ctx, e.Path, args...)

	stderrBuf := &bytes.Buffer{}
	cmd.Stderr = stderrBuf

	var progressPipe io.ReadCloser
	if onProgress != nil {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("ffmpeg stdout pipe: %w", err)
		}
		progressPipe = pipe
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	if progressPipe != nil {
		go parseFFmpegProgress(progressPipe, onProgress)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited: %w: %s", err, strings.TrimSpace(stderrBuf.String()))
	}
	return nil
}

// parseFFmpegProgress reads ffmpeg's "-progress pipe:1" key=value stream and
// reports each out_time_us sample, adapted from the teacher's
// parseFFmpegProgress (internal/api/http/hls_encoding.go).
func parseFFmpegProgress(r io.ReadCloser, onProgress func(int64)) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "out_time_us=") {
			if us, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_us="), 10, 64); err == nil {
				onProgress(us)
			}
		}
	}
}
