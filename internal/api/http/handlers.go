package apihttp

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"mediapipeline/internal/domain"
	"mediapipeline/internal/metrics"
)

type itemView struct {
	ID                domain.MediaID `json:"id"`
	Status            domain.Status  `json:"status"`
	Title             string         `json:"title,omitempty"`
	DownloadProgress  float64        `json:"downloadProgress"`
	TranscodeProgress float64        `json:"transcodeProgress"`
	AvailableRungs    []string       `json:"availableRungs,omitempty"`
	CanStream         bool           `json:"canStream"`
	ErrorMessage      string         `json:"errorMessage,omitempty"`
}

func (s *Server) toItemView(rec domain.MediaRecord) itemView {
	outputDir := s.outputDirFor(rec.ID)
	return itemView{
		ID:                rec.ID,
		Status:            rec.Status,
		Title:             rec.Title,
		DownloadProgress:  rec.DownloadProgress,
		TranscodeProgress: rec.TranscodeProgress,
		AvailableRungs:    rec.AvailableRungs,
		CanStream:         canStream(outputDir, rec.AvailableRungs),
		ErrorMessage:      rec.ErrorMessage,
	}
}

func (s *Server) outputDirFor(id domain.MediaID) string {
	return filepath.Join(s.hlsDir, string(id)+"_hls")
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	recs, err := s.store.List(r.Context(), domain.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", "failed to list items")
		return
	}
	views := make([]itemView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, s.toItemView(rec))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.store.Get(r.Context(), domain.MediaID(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "store_error", "failed to load item")
		return
	}
	writeJSON(w, http.StatusOK, s.toItemView(rec))
}

// streamGate implements the §7 status-code rules shared by the master and
// per-rung playlist handlers: 404 if the item doesn't exist, 409 if it
// hasn't reached transcoding yet, 202 (with a progress payload) if it's
// transcoding but no rung has finished yet. A false return means the
// caller already wrote the response and should not serve anything further.
func (s *Server) streamGate(w http.ResponseWriter, r *http.Request, id string) (domain.MediaRecord, bool) {
	rec, err := s.store.Get(r.Context(), domain.MediaID(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "item not found")
			return domain.MediaRecord{}, false
		}
		writeError(w, http.StatusInternalServerError, "store_error", "failed to load item")
		return domain.MediaRecord{}, false
	}

	switch rec.Status {
	case domain.StatusRequested, domain.StatusDownloading, domain.StatusDownloadComplete:
		writeError(w, http.StatusConflict, "still_downloading", "item has not started transcoding yet")
		return domain.MediaRecord{}, false
	case domain.StatusError:
		writeError(w, http.StatusNotFound, "transcode_failed", rec.ErrorMessage)
		return domain.MediaRecord{}, false
	case domain.StatusTranscoding:
		if len(rec.AvailableRungs) == 0 {
			writeJSON(w, http.StatusAccepted, map[string]any{
				"status":   rec.Status,
				"progress": rec.TranscodeProgress,
			})
			return domain.MediaRecord{}, false
		}
	}
	return rec, true
}

func (s *Server) handleMasterPlaylist(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := s.streamGate(w, r, id)
	if !ok {
		return
	}

	outputDir := s.outputDirFor(rec.ID)
	playlist, err := buildMasterPlaylist(outputDir, rec.AvailableRungs)
	if err != nil {
		metrics.HLSPlaylistRequestsTotal.WithLabelValues("master", "not_found").Inc()
		writeError(w, http.StatusNotFound, "not_found", "no rungs available yet")
		return
	}

	metrics.HLSPlaylistRequestsTotal.WithLabelValues("master", "ok").Inc()
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(playlist))
}

func (s *Server) handleRungPlaylist(w http.ResponseWriter, r *http.Request, id, name string) {
	rec, ok := s.streamGate(w, r, id)
	if !ok {
		return
	}

	outputDir := s.outputDirFor(rec.ID)
	path, err := safeSegmentPath(outputDir, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid playlist path")
		return
	}

	body, err := os.ReadFile(path)
	if err != nil {
		metrics.HLSPlaylistRequestsTotal.WithLabelValues("media", "not_found").Inc()
		writeError(w, http.StatusNotFound, "not_found", "playlist not found")
		return
	}

	metrics.HLSPlaylistRequestsTotal.WithLabelValues("media", "ok").Inc()
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request, id, name string) {
	rec, ok := s.streamGate(w, r, id)
	if !ok {
		return
	}

	outputDir := s.outputDirFor(rec.ID)
	path, err := safeSegmentPath(outputDir, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid segment path")
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "segment not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
	metrics.HLSSegmentBytesServedTotal.Add(float64(info.Size()))
}

// handleThumbnail serves thumbnails/thumb_<n>.png (§3.4) for the
// GET /items/<id>/thumbnails/<n>.png route (§6.3); name is the URL's "<n>.png"
// tail, mapped onto the on-disk "thumb_<n>.png" filename.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request, id, name string) {
	rec, err := s.store.Get(r.Context(), domain.MediaID(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "store_error", "failed to load item")
		return
	}

	thumbsDir := filepath.Join(s.outputDirFor(rec.ID), "thumbnails")
	path, err := safeSegmentPath(thumbsDir, "thumb_"+name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid thumbnail path")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "thumbnail not found")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}
