// Package ffprobe implements ports.Prober by shelling out to ffprobe,
// adapted from the teacher's track-only ffprobe adapter to additionally
// extract the width/height/bitrate/fps/size fields the Transcode Worker
// needs to validate input and pick a ladder (§4.3.1 step 2, B1).
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mediapipeline/internal/domain"
)

type Prober struct {
	binary string
}

func New(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

const maxProbeTimeout = 30 * time.Second

func (p *Prober) Probe(ctx context.Context, filePath string) (domain.Probe, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return domain.Probe{}, errors.New("file path is required")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-probesize", "100M",
		"-analyzeduration", "100M",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	probe, parseErr := parseProbeOutput(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return domain.Probe{}, fmt.Errorf("ffprobe failed: %w", runErr)
			}
			return domain.Probe{}, fmt.Errorf("ffprobe failed: %w: %s", runErr, msg)
		}
		return domain.Probe{}, fmt.Errorf("ffprobe output parse failed: %w", parseErr)
	}

	// ffprobe can exit non-zero for a partially downloaded file and still
	// print usable metadata; keep it if the probe came out valid (B1).
	if runErr != nil && !probe.Valid() {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return domain.Probe{}, fmt.Errorf("ffprobe failed: %w", runErr)
		}
		return domain.Probe{}, fmt.Errorf("ffprobe failed: %w: %s", runErr, msg)
	}

	if info, err := os.Stat(path); err == nil {
		probe.FileSizeBytes = info.Size()
	}

	return probe, nil
}

type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	BitRate    string `json:"bit_rate"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeFormat struct {
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
	Size       string `json:"size"`
}

// parseProbeOutput parses raw ffprobe JSON output into a domain.Probe,
// taking the first video and first audio stream found.
func parseProbeOutput(data []byte) (domain.Probe, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.Probe{}, err
	}

	probe := domain.Probe{FormatName: payload.Format.FormatName}
	if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil {
		probe.DurationSeconds = d
	}
	if sz, err := strconv.ParseInt(payload.Format.Size, 10, 64); err == nil {
		probe.FileSizeBytes = sz
	}
	if br, err := strconv.ParseInt(payload.Format.BitRate, 10, 64); err == nil {
		probe.BitRate = br
	}

	for _, stream := range payload.Streams {
		switch stream.CodecType {
		case "video":
			if probe.VideoCodec != "" {
				continue
			}
			probe.VideoCodec = stream.CodecName
			probe.Width = stream.Width
			probe.Height = stream.Height
			probe.FPS = parseFrameRate(stream.RFrameRate)
			if probe.BitRate == 0 {
				if br, err := strconv.ParseInt(stream.BitRate, 10, 64); err == nil {
					probe.BitRate = br
				}
			}
		case "audio":
			if probe.AudioCodec == "" {
				probe.AudioCodec = stream.CodecName
			}
		}
	}

	return probe, nil
}

// parseFrameRate converts ffprobe's "num/den" rational frame rate string
// into a float, e.g. "24000/1001" -> 23.976.
func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, errNum := strconv.ParseFloat(parts[0], 64)
	den, errDen := strconv.ParseFloat(parts[1], 64)
	if errNum != nil || errDen != nil || den == 0 {
		return 0
	}
	return num / den
}
