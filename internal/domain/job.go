package domain

// JobKind selects the Transcode Worker's dispatch path (§4.3).
type JobKind string

const (
	JobKindHLSLadder JobKind = "HLS_LADDER"
	JobKindSingleMP4 JobKind = "SINGLE_MP4"
)

// Rung is one entry in an adaptive bitrate ladder: a (resolution,
// video-bitrate, audio-bitrate) triple (§3.2, GLOSSARY).
type Rung struct {
	Name           string `json:"name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	VideoBitrate   string `json:"videoBitrate"`
	AudioBitrate   string `json:"audioBitrate"`
	FilenameSuffix string `json:"filenameSuffix"`
}

// DefaultLadder is the default rung ladder named in §4.3.1 step 4.
func DefaultLadder() []Rung {
	return []Rung{
		{Name: "360p", Width: 640, Height: 360, VideoBitrate: "800k", AudioBitrate: "96k", FilenameSuffix: "360p"},
		{Name: "480p", Width: 854, Height: 480, VideoBitrate: "1.4M", AudioBitrate: "128k", FilenameSuffix: "480p"},
		{Name: "720p", Width: 1280, Height: 720, VideoBitrate: "2.8M", AudioBitrate: "192k", FilenameSuffix: "720p"},
		{Name: "1080p", Width: 1920, Height: 1080, VideoBitrate: "5M", AudioBitrate: "192k", FilenameSuffix: "1080p"},
	}
}

// JobOptions carries the per-job encode parameters (§3.2).
type JobOptions struct {
	SegmentSeconds  int    `json:"segmentSeconds"`
	Rungs           []Rung `json:"rungs,omitempty"`
	Preset          string `json:"preset"`
	CRF             int    `json:"crf"`
	EnableThumbnails bool  `json:"enableThumbnails"`
	EnableParallel  bool   `json:"enableParallel"`
	MaxParallel     int    `json:"maxParallel"`
}

// DefaultJobOptions mirrors the defaults named throughout §4.3.1.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		SegmentSeconds:   10,
		Preset:           "veryfast",
		CRF:              28,
		EnableThumbnails: true,
		EnableParallel:   true,
		MaxParallel:      2,
	}
}

// Job is the ephemeral Transcode Job descriptor placed on the Job Queue
// (§3.2). Created by the Monitor on transition, consumed exactly once by a
// Worker, then discarded.
type Job struct {
	Kind      JobKind    `json:"jobKind"`
	ItemID    MediaID    `json:"itemId"`
	InputPath string     `json:"inputPath"`
	OutputDir string     `json:"outputDir"`
	Options   JobOptions `json:"options"`
}

// SelectRungs applies §4.3.1 step 4's only-downscale rule: a rung whose
// dimensions strictly exceed the source's is omitted.
func SelectRungs(probe Probe, rungs []Rung) []Rung {
	selected := make([]Rung, 0, len(rungs))
	for _, r := range rungs {
		if r.Width > probe.Width || r.Height > probe.Height {
			continue
		}
		selected = append(selected, r)
	}
	return selected
}

// InterleaveOrder applies §4.3.1 step 5: for N rungs ordered lowest→highest,
// execution order is rungs[0], rungs[N-1], rungs[1], rungs[N-2], ...
func InterleaveOrder(rungs []Rung) []Rung {
	n := len(rungs)
	order := make([]Rung, 0, n)
	lo, hi := 0, n-1
	for lo <= hi {
		order = append(order, rungs[lo])
		lo++
		if lo > hi {
			break
		}
		order = append(order, rungs[hi])
		hi--
	}
	return order
}
