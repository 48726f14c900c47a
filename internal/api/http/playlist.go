package apihttp

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mediapipeline/internal/domain"
)

var errNoRungsAvailable = errors.New("no rungs available to synthesize a master playlist")

// rungsByName indexes the known ladder so the master playlist can look up a
// rung's resolution and bitrate from its name alone — AvailableRungs on the
// MediaRecord carries only names (§3.1).
var rungsByName = func() map[string]domain.Rung {
	m := make(map[string]domain.Rung)
	for _, r := range domain.DefaultLadder() {
		m[r.Name] = r
	}
	return m
}()

// buildMasterPlaylist synthesizes an HLS master playlist in memory (§4.4).
// A rung is listed only if it is named in availableRungs, belongs to the
// default ladder, and its output_<rung>.m3u8 exists on disk; playlists on
// disk for rungs not named in availableRungs are not listed. It never
// writes to disk and never shells out — the variant list is recomputed on
// every request from the record's rungs and the files present at that time.
func buildMasterPlaylist(outputDir string, availableRungs []string) (string, error) {
	type variant struct {
		rung      domain.Rung
		bandwidth int
	}

	variants := make([]variant, 0, len(availableRungs))
	for _, name := range availableRungs {
		rung, known := rungsByName[name]
		if !known {
			continue
		}
		playlistPath := filepath.Join(outputDir, fmt.Sprintf("output_%s.m3u8", name))
		if _, err := os.Stat(playlistPath); err != nil {
			continue
		}
		variants = append(variants, variant{rung: rung, bandwidth: bandwidthOf(rung)})
	}
	if len(variants) == 0 {
		return "", errNoRungsAvailable
	}

	sort.Slice(variants, func(i, j int) bool { return variants[i].bandwidth < variants[j].bandwidth })

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", v.bandwidth, v.rung.Width, v.rung.Height)
		fmt.Fprintf(&b, "output_%s.m3u8\n", v.rung.Name)
	}
	return b.String(), nil
}

// bandwidthOf estimates a variant's HLS BANDWIDTH attribute as the sum of
// its video and audio target bitrates in bits per second.
func bandwidthOf(r domain.Rung) int {
	return parseBitrate(r.VideoBitrate) + parseBitrate(r.AudioBitrate)
}

// parseBitrate converts ffmpeg-style bitrate strings ("800k", "1.4M", "5M")
// to bits per second.
func parseBitrate(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	mult := 1.0
	switch suffix := s[len(s)-1]; suffix {
	case 'k', 'K':
		mult = 1000
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1_000_000
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v * mult)
}

// canStream implements the authoritative rule for the library item view's
// can_stream field (§4.4, Open Question): an item is streamable once at
// least one of its available rungs has a playlist on disk containing at
// least one #EXTINF entry. A coarser heuristic — playlist exists and the
// output directory holds >= 30 segment files — was considered and
// rejected: it requires a second directory scan per rung for no accuracy
// gain over parsing the (small) playlist file directly.
func canStream(outputDir string, availableRungs []string) bool {
	for _, name := range availableRungs {
		playlistPath := filepath.Join(outputDir, fmt.Sprintf("output_%s.m3u8", name))
		if playlistHasSegment(playlistPath) {
			return true
		}
	}
	return false
}

func playlistHasSegment(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "#EXTINF") {
			return true
		}
	}
	return false
}
