package domain

// Probe is the metadata-inspection output described in §4.3.1 step 2 and
// persisted as metadata.json (§3.4). It extends the narrower track-only
// view the teacher's ffprobe adapter produced for subtitle/track selection
// with the fields the Transcode Worker needs to pick a ladder and detect a
// corrupt input: width, height, bitrate, fps, and file size.
type Probe struct {
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	BitRate         int64   `json:"bitRate"`
	FPS             float64 `json:"fps"`
	VideoCodec      string  `json:"videoCodec"`
	AudioCodec      string  `json:"audioCodec"`
	FileSizeBytes   int64   `json:"fileSizeBytes"`
	FormatName      string  `json:"formatName,omitempty"`
}

// Valid reports whether the probe yielded usable stream metadata. A
// duration <= 0 or zero dimensions signals INPUT_CORRUPT (§4.3.1 step 2,
// B1).
func (p Probe) Valid() bool {
	return p.DurationSeconds > 0 && p.Width > 0 && p.Height > 0
}
